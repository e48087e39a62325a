package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:              "info",
			DataDir:               "~/.agribot",
			MaxConcurrentMessages: 5,
			HistoryTurns:          5,
			DefaultLanguage:       "en",
		},
		Model: ModelConfig{
			Model:          "claude-3-haiku-20240307",
			MaxTokens:      500,
			TimeoutSeconds: 60,
		},
		Vision: VisionConfig{
			APIURL:         "https://api-inference.huggingface.co/models/wambugu71/crop_leaf_diseases_vit",
			TimeoutSeconds: 30,
		},
		Weather: WeatherConfig{
			TimeoutSeconds:  10,
			CacheTTLMinutes: 30,
		},
		Redis: RedisConfig{
			Enabled: false,
		},
		Channels: ChannelsConfig{
			WhatsApp: WhatsAppConfig{
				Enabled:     false,
				WebhookPath: "/webhook/whatsapp",
			},
			Telegram: TelegramConfig{
				Enabled:   false,
				ParseMode: "Markdown",
			},
			CLI: CLIConfig{
				Enabled: true,
			},
			Web: WebConfig{
				Enabled: false,
				Host:    "127.0.0.1",
				Port:    8080,
			},
		},
		Store: StoreConfig{
			DBPath: "~/.agribot/agribot.db",
		},
		Advisory: AdvisoryConfig{},
		Metrics: MetricsConfig{
			Enabled:  false,
			Endpoint: "/metrics",
		},
	}
}
