package cmd

import (
	"context"
	"strings"
	"time"

	nh "github.com/Azure/azure-notification-hubs-go"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func init() {
	registerCmd.Flags().StringVar(&regPlatform, "platform", "apple", "target platform (apple, fcm, gcm, windows, windowsphone, adm)")
	registerCmd.Flags().StringVar(&regHandle, "device-handle", "", "platform specific device handle")
	registerCmd.Flags().StringVar(&regTags, "tags", "", "comma separated tags")
	registrationsCmd.AddCommand(registerCmd)

	listRegistrationsCmd.Flags().StringVar(&regTag, "tag", "", "list only registrations carrying this tag")
	registrationsCmd.AddCommand(listRegistrationsCmd)

	deleteRegistrationCmd.Flags().StringVar(&regID, "id", "", "registration id to delete")
	registrationsCmd.AddCommand(deleteRegistrationCmd)

	rootCmd.AddCommand(registrationsCmd)
}

var (
	regPlatform, regHandle, regTags, regTag, regID string

	registrationsCmd = &cobra.Command{
		Use:   "registrations",
		Short: "Manage device registrations on a Notification Hub",
		Args: func(cmd *cobra.Command, args []string) error {
			if debug {
				log.SetLevel(log.DebugLevel)
			}
			return checkAuthFlags()
		},
	}

	registerCmd = &cobra.Command{
		Use:   "create",
		Short: "Register a device handle with the hub",
		Run: func(cmd *cobra.Command, args []string) {
			hub, err := newHub()
			if err != nil {
				log.Error(err)
				return
			}

			registration := &nh.Registration{
				Platform:  nh.Platform(regPlatform),
				PnsHandle: regHandle,
			}
			if regTags != "" {
				registration.Tags = strings.Split(regTags, ",")
			}

			ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
			defer cancel()

			created, err := hub.CreateOrUpdateRegistration(ctx, registration)
			if err != nil {
				log.Error(err)
				return
			}
			log.Printf("registered with id %s\n", created.RegistrationID)
		},
	}

	listRegistrationsCmd = &cobra.Command{
		Use:   "list",
		Short: "List registrations, following continuation tokens",
		Run: func(cmd *cobra.Command, args []string) {
			hub, err := newHub()
			if err != nil {
				log.Error(err)
				return
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			token := ""
			total := 0
			for {
				opts := []nh.ListOption{nh.ListWithContinuationToken(token)}
				if regTag != "" {
					opts = append(opts, nh.ListWithTag(regTag))
				}
				page, err := hub.ListRegistrations(ctx, opts...)
				if err != nil {
					log.Error(err)
					return
				}
				for _, registration := range page.Registrations {
					total++
					log.Printf("%s %s %s tags=%s\n", registration.RegistrationID, registration.Platform, registration.PnsHandle, strings.Join(registration.Tags, ","))
				}
				if page.ContinuationToken == "" {
					break
				}
				token = page.ContinuationToken
			}
			log.Printf("%d registrations\n", total)
		},
	}

	deleteRegistrationCmd = &cobra.Command{
		Use:   "delete",
		Short: "Delete a registration by id",
		Run: func(cmd *cobra.Command, args []string) {
			if regID == "" {
				log.Error("id is required")
				return
			}
			hub, err := newHub()
			if err != nil {
				log.Error(err)
				return
			}

			ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
			defer cancel()

			if err := hub.DeleteRegistration(ctx, regID, ""); err != nil {
				log.Error(err)
				return
			}
			log.Println("deleted")
		},
	}
)
