package config

import "github.com/caarlos0/env/v10"

// Secrets holds environment-only configuration that must never pass
// through the viper file watcher in Manager: bot credentials and the
// hosting-provider redeploy credentials the restart governor uses.
type Secrets struct {
	DatabaseURL            string `env:"DATABASE_URL"`
	RedisURL               string `env:"REDIS_URL"`
	Port                   int    `env:"PORT" envDefault:"8080"`
	TelegramBotToken       string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID         int64  `env:"TELEGRAM_CHAT_ID"`
	RailwayToken           string `env:"RAILWAY_TOKEN"`
	RailwayProjectID       string `env:"RAILWAY_PROJECT_ID"`
	RailwayServiceID       string `env:"RAILWAY_SERVICE_ID"`
	RailwayRedeployWebhook string `env:"RAILWAY_REDEPLOY_WEBHOOK"`
	AllowEmergencyExit     bool   `env:"ALLOW_EMERGENCY_EXIT" envDefault:"true"`
}

// LoadSecrets parses environment-only secrets into a Secrets struct.
func LoadSecrets() (*Secrets, error) {
	var s Secrets
	if err := env.Parse(&s); err != nil {
		return nil, err
	}
	return &s, nil
}
