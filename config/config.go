package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Port             string `mapstructure:"PORT"`
	RedisAddr        string `mapstructure:"REDIS_ADDR"`
	RedisPassword    string `mapstructure:"REDIS_PASSWORD"`
	RedisDB          int    `mapstructure:"REDIS_DB"`
	EndpointsFile    string `mapstructure:"ENDPOINTS_FILE"`
	SweepSchedule    string `mapstructure:"SWEEP_SCHEDULE"`
	SweepLimit       int    `mapstructure:"SWEEP_LIMIT"`
	FailureThreshold int    `mapstructure:"FAILURE_THRESHOLD"`
}

func GetConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("toml")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("ENDPOINTS_FILE", "endpoints.yaml")

	err := viper.ReadInConfig()
	if err != nil {
		// Config file is optional; env vars and defaults still apply
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}
	var config Config
	err = viper.Unmarshal(&config)
	if err != nil {
		return nil, fmt.Errorf("parsing config data: %w", err)
	}
	return &config, nil
}
