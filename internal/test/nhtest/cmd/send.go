package cmd

//	MIT License
//
//	Copyright (c) Microsoft Corporation. All rights reserved.
//
//	Permission is hereby granted, free of charge, to any person obtaining a copy
//	of this software and associated documentation files (the "Software"), to deal
//	in the Software without restriction, including without limitation the rights
//	to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
//	copies of the Software, and to permit persons to whom the Software is
//	furnished to do so, subject to the following conditions:
//
//	The above copyright notice and this permission notice shall be included in all
//	copies or substantial portions of the Software.
//
//	THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
//	IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
//	FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
//	AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
//	LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
//	OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
//	SOFTWARE

import (
	"context"
	"time"

	nh "github.com/Azure/azure-notification-hubs-go"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func init() {
	sendCmd.Flags().StringVar(&sendPlatform, "platform", "apple", "target platform (apple, fcm, gcm, windows, windowsphone, adm)")
	sendCmd.Flags().StringVar(&sendPayload, "payload", `{"aps":{"alert":"hello"}}`, "notification payload")
	sendCmd.Flags().StringVar(&sendTags, "tags", "", "tag expression to target; empty broadcasts")
	sendCmd.Flags().StringVar(&sendHandle, "device-handle", "", "send directly to this device handle, bypassing registrations")
	rootCmd.AddCommand(sendCmd)
}

var (
	sendPlatform, sendPayload, sendTags, sendHandle string

	sendCmd = &cobra.Command{
		Use:   "send",
		Short: "Send a notification through a Notification Hub",
		Args: func(cmd *cobra.Command, args []string) error {
			if debug {
				log.SetLevel(log.DebugLevel)
			}
			return checkAuthFlags()
		},
		Run: func(cmd *cobra.Command, args []string) {
			hub, err := newHub()
			if err != nil {
				log.Error(err)
				return
			}

			notification, err := nh.NewNotification(nh.Platform(sendPlatform), []byte(sendPayload))
			if err != nil {
				log.Error(err)
				return
			}

			ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
			defer cancel()

			var id string
			switch {
			case sendHandle != "":
				id, err = hub.SendDirect(ctx, notification, sendHandle)
			case sendTags != "":
				id, err = hub.Send(ctx, notification, nh.SendWithTagExpression(sendTags))
			default:
				id, err = hub.Send(ctx, notification)
			}
			if err != nil {
				log.Error(err)
				return
			}

			if id == "" {
				log.Println("notification accepted")
				return
			}
			log.Printf("notification accepted, id %s\n", id)
		},
	}
)
