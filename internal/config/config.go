package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode               string        `mapstructure:"mode"`
	Port               int           `mapstructure:"port"`
	Secret             string        `mapstructure:"secret"`
	TokenTTL           time.Duration `mapstructure:"token_ttl"`
	STUNServers        []string      `mapstructure:"stun_servers"`
	KeepAlive          time.Duration `mapstructure:"keepalive"`
	NegotiationTimeout time.Duration `mapstructure:"negotiation_timeout"`
	EventQueueSize     int           `mapstructure:"event_queue_size"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8000)
	v.SetDefault("secret", "dev-only-secret")
	v.SetDefault("token_ttl", "24h")
	v.SetDefault("stun_servers", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("keepalive", "20s")
	v.SetDefault("negotiation_timeout", "15s")
	v.SetDefault("event_queue_size", 32)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
