package cmd

import (
	"fmt"
	"os"

	nh "github.com/Azure/azure-notification-hubs-go"
	"github.com/Azure/azure-notification-hubs-go/sas"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.PersistentFlags().StringVar(&namespace, "namespace", os.Getenv("NOTIFICATIONHUB_NAMESPACE"), "namespace of the Notification Hub")
	rootCmd.PersistentFlags().StringVar(&hubName, "hub", os.Getenv("NOTIFICATIONHUB_NAME"), "name of the Notification Hub")
	rootCmd.PersistentFlags().StringVar(&sasKeyName, "key-name", os.Getenv("NOTIFICATIONHUB_KEY_NAME"), "SAS key name for the Notification Hub")
	rootCmd.PersistentFlags().StringVar(&sasKey, "key", os.Getenv("NOTIFICATIONHUB_KEY_VALUE"), "SAS key for the key-name")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "debug level logging")
}

var (
	namespace, hubName, sasKeyName, sasKey string
	debug                                  bool

	rootCmd = &cobra.Command{
		Use:              "nhtest",
		Short:            "nhtest is a simple command line testing tool for the Notification Hubs library",
		TraverseChildren: true,
	}
)

// Execute kicks off the command line
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func checkAuthFlags() error {
	if namespace == "" {
		return errors.New("namespace is required")
	}

	if hubName == "" {
		return errors.New("hub is required")
	}

	if sasKey == "" {
		return errors.New("key is required")
	}

	if sasKeyName == "" {
		return errors.New("key-name is required")
	}
	return nil
}

func newHub() (*nh.Hub, error) {
	provider, err := sas.NewTokenProvider(sas.TokenProviderWithKey(sasKeyName, sasKey))
	if err != nil {
		return nil, err
	}
	return nh.NewHub(namespace, hubName, provider)
}
