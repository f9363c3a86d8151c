package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:               "info",
			MaxFileBytes:           50 << 20,
			MaxConcurrentRelays:    0,
			ShutdownTimeoutSeconds: 30,
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 3000,
		},
		Telegram: TelegramConfig{
			ParseMode:   "Markdown",
			WebhookPath: "/webhook/telegram",
		},
		Facebook: FacebookConfig{
			GraphBase:              "https://graph-video.facebook.com",
			APIVersion:             "v19.0",
			TimeoutSeconds:         600,
			BreakerFailures:        5,
			BreakerCooldownSeconds: 60,
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Endpoint: "/metrics",
		},
	}
}

// Template returns the config written by `tgrelay init`: defaults with the
// secrets left as environment references.
func Template() *Config {
	cfg := Defaults()
	cfg.Telegram.Token = "${TELEGRAM_BOT_TOKEN}"
	cfg.Facebook.PageID = "${FACEBOOK_PAGE_ID}"
	cfg.Facebook.AccessToken = "${FACEBOOK_PAGE_ACCESS_TOKEN}"
	return cfg
}
