package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"tgrelay/internal/config"
)

var (
	version    = "0.1.0"
	logger     = slog.Default()
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "tgrelay",
		Short: "tgrelay: relay Telegram videos to a Facebook Page",
		Long:  "tgrelay receives Telegram bot updates over a webhook and republishes the videos it is sent to a Facebook Page.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (default: ~/.tgrelay/config.yaml)")

	root.AddCommand(initCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(webhookCmd())
	root.AddCommand(configCmd())
	root.AddCommand(daemonCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

// loadConfig loads the config file, falling back to environment-only
// configuration when the default file does not exist.
func loadConfig() (*config.Config, error) {
	path := resolveConfigPath()
	if configPath == "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			logger.Debug("no config file, using defaults and environment", "path", path)
			path = ""
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// setupLogger replaces the bootstrap logger with one at the configured level,
// teeing to general.logFile when set. The returned closer releases the file.
func setupLogger(cfg *config.Config) (io.Closer, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.General.LogLevel)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	var out io.Writer = os.Stderr
	var closer io.Closer = io.NopCloser(nil)
	if cfg.General.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.General.LogFile), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.General.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out = io.MultiWriter(os.Stderr, f)
		closer = f
	}

	logger = slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return closer, nil
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Verify the bot token and show the webhook registration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := config.RequireCredentials(cfg, false); err != nil {
				return err
			}
			tg, err := newTelegram(cfg, nil)
			if err != nil {
				return err
			}
			info, err := tg.WebhookInfo()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Bot:             @%s\n", tg.Username())
			fmt.Fprintf(out, "Webhook URL:     %s\n", orNone(info.URL))
			fmt.Fprintf(out, "Expected URL:    %s\n", orNone(cfg.WebhookURL()))
			fmt.Fprintf(out, "Pending updates: %d\n", info.PendingUpdateCount)
			if info.LastErrorMessage != "" {
				fmt.Fprintf(out, "Last error:      %s\n", info.LastErrorMessage)
			}
			if cfg.Facebook.PageID != "" {
				fmt.Fprintf(out, "Facebook page:   %s\n", cfg.Facebook.PageID)
			}
			return nil
		},
	}
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View configuration",
		Long:  "Inspect the effective configuration: file values with environment overrides applied. Credentials are masked.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. server.port)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			val, err := config.GetByPath(config.Sanitize(cfg), args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			keys, values := config.ListPaths(config.Sanitize(cfg))
			for _, k := range keys {
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", k, values[k])
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), resolveConfigPath())
		},
	})

	return cmd
}
