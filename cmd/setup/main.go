package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/botfuse/twitter-adapter/pkg/setup"
	"github.com/botfuse/twitter-adapter/pkg/webhook"
)

var (
	success = color.New(color.FgGreen).SprintFunc()
	fail    = color.New(color.FgRed).SprintFunc()
	info    = color.New(color.FgCyan).SprintFunc()
)

func runSetup(configPath, webhookURL string) error {
	ctx := context.Background()

	config, err := setup.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if webhookURL == "" {
		webhookURL = config.WebhookURL
	}
	if webhookURL == "" {
		return fmt.Errorf("no webhook URL given; set --url or %s", setup.WebhookURLKey)
	}

	manager, err := webhook.NewManager(&webhook.ManagerConfig{
		Credentials: config.Credentials(),
		Environment: config.Environment,
	})
	if err != nil {
		return fmt.Errorf("create webhook manager: %w", err)
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)

	fmt.Printf("\n%s Setting up environment %q\n", info("🔧"), config.Environment)

	s.Suffix = " Verifying credentials..."
	s.Start()
	profile, err := manager.VerifyCredentials(ctx)
	s.Stop()
	if err != nil {
		fmt.Printf("%s Credential check failed\n", fail("❌"))
		return err
	}
	fmt.Printf("%s Authenticated as @%s (id %s)\n", success("✓"), profile.ScreenName, profile.IDStr)

	s.Suffix = " Removing stale webhooks, registering " + webhookURL + ", subscribing..."
	s.Start()
	err = setup.Bootstrap(ctx, manager, webhookURL)
	s.Stop()
	if err != nil {
		fmt.Printf("%s Webhook setup failed\n", fail("❌"))
		return err
	}
	fmt.Printf("%s Webhook registered and user subscribed\n", success("✓"))

	quota, err := manager.RefreshSubscriptionCount(ctx)
	if err != nil {
		slog.Warn("could not fetch subscription quota", "error", err)
		return nil
	}
	fmt.Printf("%s Subscriptions in use: %d of %d\n", info("ℹ"), quota.Subscriptions, quota.Provisioned)
	return nil
}

func main() {
	var (
		configPath string
		webhookURL string
	)

	rootCmd := &cobra.Command{
		Use:   "setup",
		Short: "Register the Account Activity webhook and subscribe the bot user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetup(configPath, webhookURL)
		},
	}

	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	rootCmd.Flags().StringVarP(&webhookURL, "url", "u", "", "public https webhook URL (overrides config)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Printf("\n%s %v\n", fail("❌"), err)
		os.Exit(1)
	}
}
