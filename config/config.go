package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Inverter InverterConfig `mapstructure:"inverter"`
	Watch    WatchConfig    `mapstructure:"watch"`
	Log      LogConfig      `mapstructure:"log"`
}

type InverterConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	Timeout        time.Duration `mapstructure:"timeout"`
	Retries        int           `mapstructure:"retries"`
}

type WatchConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func Load(configPath string) (*Config, error) {
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/givenergy")
	}

	viper.SetDefault("inverter.host", "")
	viper.SetDefault("inverter.port", 8899)
	viper.SetDefault("inverter.connect_timeout", "10s")
	viper.SetDefault("inverter.timeout", "2s")
	viper.SetDefault("inverter.retries", 3)
	viper.SetDefault("watch.interval", "30s")
	viper.SetDefault("log.level", "INFO")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
