package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"tgrelay/internal/config"
)

func initCmd() *cobra.Command {
	var interactive, force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file",
		Long: `Writes a config file whose credentials reference environment variables
(TELEGRAM_BOT_TOKEN, FACEBOOK_PAGE_ID, FACEBOOK_PAGE_ACCESS_TOKEN).
With --interactive, prompts for the values instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := config.ExpandPath(resolveConfigPath())
			if _, err := os.Stat(cfgPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", cfgPath)
			}

			cfg := config.Template()
			if interactive {
				if err := promptCredentials(cmd.InOrStdin(), cmd.OutOrStdout(), cfg); err != nil {
					return err
				}
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "prompt for credentials and the public URL")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}

// promptCredentials asks for each credential; an empty answer keeps the
// environment reference already in cfg.
func promptCredentials(in io.Reader, out io.Writer, cfg *config.Config) error {
	reader := bufio.NewReader(in)
	prompt := func(label, def string) (string, error) {
		fmt.Fprintf(out, "%s [%s]: ", label, def)
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return "", err
		}
		if s := strings.TrimSpace(line); s != "" {
			return s, nil
		}
		return def, nil
	}

	steps := []struct {
		label string
		field *string
	}{
		{"Telegram bot token", &cfg.Telegram.Token},
		{"Facebook page ID", &cfg.Facebook.PageID},
		{"Facebook page access token", &cfg.Facebook.AccessToken},
		{"Public base URL (e.g. https://relay.onrender.com)", &cfg.Telegram.ExternalURL},
	}
	for _, s := range steps {
		v, err := prompt(s.label, *s.field)
		if err != nil {
			return err
		}
		*s.field = v
	}

	if cfg.Telegram.ExternalURL != "" {
		v, err := prompt("Register the webhook on start? (y/n)", "y")
		if err != nil {
			return err
		}
		cfg.Telegram.SetWebhookOnStart = strings.HasPrefix(strings.ToLower(v), "y")
	}
	return nil
}
