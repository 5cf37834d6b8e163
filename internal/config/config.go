package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type Config struct {
	BotToken        string        `mapstructure:"bot_token"`
	VerifyChannelID int64         `mapstructure:"verify_channel_id"`
	Mongo           MongoConfig   `mapstructure:"mongo"`
	Logging         LoggingConfig `mapstructure:"logging"`
}

// Load reads config.yaml from path and lets environment variables override
// any key (BOT_TOKEN, MONGO_URI, ...).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(path)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "gatekeeper")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	if err := v.ReadInConfig(); err != nil {
		// env-only deployments are fine, a missing file is not
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("bot_token is required")
	}
	if cfg.VerifyChannelID == 0 {
		return nil, fmt.Errorf("verify_channel_id is required")
	}
	return &cfg, nil
}

func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}
