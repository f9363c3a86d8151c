package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for tgrelay.
type Config struct {
	General  GeneralConfig  `json:"general" yaml:"general"`
	Server   ServerConfig   `json:"server" yaml:"server"`
	Telegram TelegramConfig `json:"telegram" yaml:"telegram"`
	Facebook FacebookConfig `json:"facebook" yaml:"facebook"`
	Metrics  MetricsConfig  `json:"metrics" yaml:"metrics"`
}

type GeneralConfig struct {
	LogLevel               string `json:"logLevel" yaml:"logLevel" validate:"oneof=debug info warn error"`
	LogFile                string `json:"logFile,omitempty" yaml:"logFile,omitempty"` // optional log file path
	TempDir                string `json:"tempDir,omitempty" yaml:"tempDir,omitempty"` // staging directory (default: OS temp dir)
	MaxFileBytes           int64  `json:"maxFileBytes" yaml:"maxFileBytes" validate:"min=1"`
	MaxConcurrentRelays    int    `json:"maxConcurrentRelays" yaml:"maxConcurrentRelays" validate:"min=0,max=1000"` // 0 = unbounded
	ShutdownTimeoutSeconds int    `json:"shutdownTimeoutSeconds" yaml:"shutdownTimeoutSeconds" validate:"min=1,max=3600"`
}

type ServerConfig struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port" validate:"min=1,max=65535"`
}

type TelegramConfig struct {
	Token             string `json:"token" yaml:"token"`
	APIEndpoint       string `json:"apiEndpoint,omitempty" yaml:"apiEndpoint,omitempty"`
	FileEndpoint      string `json:"fileEndpoint,omitempty" yaml:"fileEndpoint,omitempty"`
	ParseMode         string `json:"parseMode" yaml:"parseMode" validate:"omitempty,oneof=Markdown MarkdownV2 HTML"`
	WebhookPath       string `json:"webhookPath" yaml:"webhookPath" validate:"startswith=/"`
	ExternalURL       string `json:"externalURL,omitempty" yaml:"externalURL,omitempty" validate:"omitempty,url"`
	SetWebhookOnStart bool   `json:"setWebhookOnStart" yaml:"setWebhookOnStart"`
}

type FacebookConfig struct {
	PageID                 string `json:"pageID" yaml:"pageID"`
	AccessToken            string `json:"accessToken" yaml:"accessToken"`
	GraphBase              string `json:"graphBase" yaml:"graphBase" validate:"url"`
	APIVersion             string `json:"apiVersion" yaml:"apiVersion" validate:"startswith=v"`
	TimeoutSeconds         int    `json:"timeoutSeconds" yaml:"timeoutSeconds" validate:"min=0"` // 0 = no overall timeout
	BreakerFailures        int    `json:"breakerFailures" yaml:"breakerFailures" validate:"min=0"`  // 0 disables the breaker
	BreakerCooldownSeconds int    `json:"breakerCooldownSeconds" yaml:"breakerCooldownSeconds" validate:"min=1"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Endpoint string `json:"endpoint" yaml:"endpoint" validate:"startswith=/"`
}

// WebhookURL is the public URL the Bot API should deliver updates to.
func (c *Config) WebhookURL() string {
	if c.Telegram.ExternalURL == "" {
		return ""
	}
	return strings.TrimRight(c.Telegram.ExternalURL, "/") + c.Telegram.WebhookPath
}

// DefaultConfigDir returns the default config directory (~/.tgrelay).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tgrelay"
	}
	return filepath.Join(home, ".tgrelay")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Load reads the config file at path, applies environment overrides and
// validates the result. A missing file is not an error when the environment
// alone can configure the service; pass an empty path for that.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("cannot load .env: %w", err)
	}

	cfg := Defaults()
	if path != "" {
		path = ExpandPath(path)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
		}

		// Substitute environment variables: ${VAR} and ${VAR:-default}
		data = []byte(ExpandEnvVars(string(data)))

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)
	cfg.General.TempDir = ExpandPath(cfg.General.TempDir)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// applyEnv lets the deployment's well-known variables override file values.
func applyEnv(cfg *Config) error {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("RENDER_EXTERNAL_URL"); v != "" {
		cfg.Telegram.ExternalURL = v
	}
	if v := os.Getenv("FACEBOOK_PAGE_ID"); v != "" {
		cfg.Facebook.PageID = v
	}
	if v := os.Getenv("FACEBOOK_PAGE_ACCESS_TOKEN"); v != "" {
		cfg.Facebook.AccessToken = v
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("SET_WEBHOOK_ON_START"); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid SET_WEBHOOK_ON_START %q: %w", v, err)
		}
		cfg.Telegram.SetWebhookOnStart = on
	}
	return nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// ${VAR:-default} uses "default" when VAR is unset or empty; an unset
// variable without a default is left as written.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		hasDefault := strings.Contains(match, ":-")

		val, exists := os.LookupEnv(groups[1])
		if !exists || val == "" {
			if hasDefault {
				return groups[2]
			}
			return match
		}
		return val
	})
}

// Save writes cfg as YAML. The file holds credentials, so it is owner-only.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report fields by their config key, not the Go name.
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks that the config has valid values. Every problem found is
// reported in a single error.
func Validate(cfg *Config) error {
	var errs []string

	if err := structValidator().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			errs = append(errs, describe(fe))
		}
	}

	if cfg.Telegram.SetWebhookOnStart && cfg.Telegram.ExternalURL == "" {
		errs = append(errs, "telegram.externalURL is required when telegram.setWebhookOnStart is true")
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Endpoint == cfg.Telegram.WebhookPath {
		errs = append(errs, "metrics.endpoint must differ from telegram.webhookPath")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// RequireCredentials reports missing secrets needed to talk to Telegram and,
// when publish is set, to the Facebook page.
func RequireCredentials(cfg *Config, publish bool) error {
	var missing []string
	if cfg.Telegram.Token == "" || strings.HasPrefix(cfg.Telegram.Token, "${") {
		missing = append(missing, "telegram.token (TELEGRAM_BOT_TOKEN)")
	}
	if publish {
		if cfg.Facebook.PageID == "" || strings.HasPrefix(cfg.Facebook.PageID, "${") {
			missing = append(missing, "facebook.pageID (FACEBOOK_PAGE_ID)")
		}
		if cfg.Facebook.AccessToken == "" || strings.HasPrefix(cfg.Facebook.AccessToken, "${") {
			missing = append(missing, "facebook.accessToken (FACEBOOK_PAGE_ACCESS_TOKEN)")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing credentials: %s", strings.Join(missing, ", "))
	}
	return nil
}

// describe turns a validator failure into "section.key must ..." text.
func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min":
		return fmt.Sprintf("%s must be >= %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be <= %s", field, fe.Param())
	case "url":
		return fmt.Sprintf("%s must be an absolute URL", field)
	case "startswith":
		return fmt.Sprintf("%s must start with %q", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
