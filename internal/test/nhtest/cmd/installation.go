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
	putInstallationCmd.Flags().StringVar(&instID, "id", "", "installation id")
	putInstallationCmd.Flags().StringVar(&instPlatform, "platform", "apple", "target platform (apple, fcm, gcm, windows, windowsphone, adm)")
	putInstallationCmd.Flags().StringVar(&instChannel, "push-channel", "", "platform specific push channel")
	putInstallationCmd.Flags().StringVar(&instTags, "tags", "", "comma separated tags")
	installationsCmd.AddCommand(putInstallationCmd)

	getInstallationCmd.Flags().StringVar(&instID, "id", "", "installation id")
	installationsCmd.AddCommand(getInstallationCmd)

	deleteInstallationCmd.Flags().StringVar(&instID, "id", "", "installation id")
	installationsCmd.AddCommand(deleteInstallationCmd)

	rootCmd.AddCommand(installationsCmd)
}

var (
	instID, instPlatform, instChannel, instTags string

	installationsCmd = &cobra.Command{
		Use:   "installations",
		Short: "Manage installations on a Notification Hub",
		Args: func(cmd *cobra.Command, args []string) error {
			if debug {
				log.SetLevel(log.DebugLevel)
			}
			return checkAuthFlags()
		},
	}

	putInstallationCmd = &cobra.Command{
		Use:   "put",
		Short: "Create or overwrite an installation",
		Run: func(cmd *cobra.Command, args []string) {
			if instID == "" {
				log.Error("id is required")
				return
			}
			hub, err := newHub()
			if err != nil {
				log.Error(err)
				return
			}

			installation := &nh.Installation{
				InstallationID: instID,
				Platform:       nh.Platform(instPlatform),
				PushChannel:    instChannel,
			}
			if instTags != "" {
				installation.Tags = strings.Split(instTags, ",")
			}

			ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
			defer cancel()

			if err := hub.CreateOrUpdateInstallation(ctx, installation); err != nil {
				log.Error(err)
				return
			}
			log.Println("installation stored")
		},
	}

	getInstallationCmd = &cobra.Command{
		Use:   "get",
		Short: "Fetch an installation by id",
		Run: func(cmd *cobra.Command, args []string) {
			if instID == "" {
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

			installation, err := hub.GetInstallation(ctx, instID)
			if err != nil {
				log.Error(err)
				return
			}
			log.Printf("%s %s %s tags=%s\n", installation.InstallationID, installation.Platform, installation.PushChannel, strings.Join(installation.Tags, ","))
		},
	}

	deleteInstallationCmd = &cobra.Command{
		Use:   "delete",
		Short: "Delete an installation by id",
		Run: func(cmd *cobra.Command, args []string) {
			if instID == "" {
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

			if err := hub.DeleteInstallation(ctx, instID); err != nil {
				log.Error(err)
				return
			}
			log.Println("deleted")
		},
	}
)
