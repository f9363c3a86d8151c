package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"tgrelay/internal/channel"
	"tgrelay/internal/config"
)

func webhookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Manage the Telegram webhook registration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set [url]",
		Short: "Register the webhook (default: telegram.externalURL + telegram.webhookPath)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, tg, err := webhookClient()
			if err != nil {
				return err
			}
			link := cfg.WebhookURL()
			if len(args) == 1 {
				link = args[0]
			}
			if link == "" {
				return errors.New("no webhook URL: pass one or set telegram.externalURL (RENDER_EXTERNAL_URL)")
			}
			if err := tg.SetWebhook(link); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Webhook set to: %s\n", link)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "info",
		Short: "Show the current webhook registration",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, tg, err := webhookClient()
			if err != nil {
				return err
			}
			info, err := tg.WebhookInfo()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "URL:             %s\n", orNone(info.URL))
			fmt.Fprintf(out, "Pending updates: %d\n", info.PendingUpdateCount)
			fmt.Fprintf(out, "Max connections: %d\n", info.MaxConnections)
			if info.LastErrorMessage != "" {
				fmt.Fprintf(out, "Last error:      %s\n", info.LastErrorMessage)
			}
			return nil
		},
	})

	var dropPending bool
	deleteCmd := &cobra.Command{
		Use:   "delete",
		Short: "Remove the webhook registration",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, tg, err := webhookClient()
			if err != nil {
				return err
			}
			if err := tg.DeleteWebhook(dropPending); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Webhook deleted")
			return nil
		},
	}
	deleteCmd.Flags().BoolVar(&dropPending, "drop-pending", false, "discard updates queued while no webhook was set")
	cmd.AddCommand(deleteCmd)

	return cmd
}

func webhookClient() (*config.Config, *channel.Telegram, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if err := config.RequireCredentials(cfg, false); err != nil {
		return nil, nil, err
	}
	tg, err := newTelegram(cfg, nil)
	if err != nil {
		return nil, nil, err
	}
	return cfg, tg, nil
}
