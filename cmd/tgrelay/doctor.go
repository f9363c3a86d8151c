package main

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"tgrelay/internal/config"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your tgrelay installation",
		Long: `Verifies that the configuration, credentials, staging directory and
listen port are usable, and that the bot token is accepted by Telegram.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("tgrelay doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			var passed, failed, warned int
			pass := func(check, detail string) { printPass(check, detail); passed++ }
			fail := func(check, detail string) { printFail(check, detail); failed++ }
			warn := func(check, detail string) { printWarn(check, detail); warned++ }

			cfgPath := config.ExpandPath(resolveConfigPath())
			if _, err := os.Stat(cfgPath); err != nil {
				warn("Config file", fmt.Sprintf("not found at %s (environment only)", cfgPath))
			} else {
				pass("Config file", cfgPath)
			}

			cfg, err := loadConfig()
			if err != nil {
				fail("Config validation", err.Error())
				fmt.Printf("\n%d passed, %d failed\n", passed, failed)
				return fmt.Errorf("%d check(s) failed", failed)
			}
			pass("Config validation", "valid")

			if err := config.RequireCredentials(cfg, true); err != nil {
				fail("Credentials", err.Error())
			} else {
				pass("Credentials", "telegram and facebook configured")
			}

			tempDir := cfg.General.TempDir
			if tempDir == "" {
				tempDir = os.TempDir()
			}
			if err := checkWritable(tempDir); err != nil {
				fail("Staging dir", err.Error())
			} else {
				pass("Staging dir", tempDir)
			}

			if err := checkPort(cfg.Server.Host, cfg.Server.Port); err != nil {
				warn("Listen port", fmt.Sprintf("port %d may be in use: %v", cfg.Server.Port, err))
			} else {
				pass("Listen port", fmt.Sprintf(":%d available", cfg.Server.Port))
			}

			if cfg.General.LogFile != "" {
				if err := os.MkdirAll(filepath.Dir(cfg.General.LogFile), 0o755); err != nil {
					warn("Log file", fmt.Sprintf("cannot create log directory: %v", err))
				} else {
					pass("Log file", cfg.General.LogFile)
				}
			}

			if cfg.Telegram.SetWebhookOnStart {
				pass("Webhook URL", cfg.WebhookURL())
			} else if cfg.Telegram.ExternalURL == "" {
				warn("Webhook URL", "telegram.externalURL not set; register the webhook manually")
			}

			if config.RequireCredentials(cfg, false) == nil {
				if tg, err := newTelegram(cfg, nil); err != nil {
					fail("Telegram", err.Error())
				} else {
					pass("Telegram", "@"+tg.Username())
				}
			}

			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				fmt.Printf("\nPlease fix the failed checks before running tgrelay serve.\n")
				return fmt.Errorf("%d check(s) failed", failed)
			}
			fmt.Printf("\ntgrelay is ready to run.\n")
			return nil
		},
	}
}

func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("cannot create: %w", err)
	}
	f, err := os.CreateTemp(dir, ".tgrelay-doctor-*")
	if err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

func checkPort(host string, port int) error {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}
