package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds the configuration for the application.
type Config struct {
	Server struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"server"`
	DB struct {
		URL string `mapstructure:"url"`
	} `mapstructure:"db"`
	Storage struct {
		Endpoint      string `mapstructure:"endpoint"`
		AccessKey     string `mapstructure:"access_key"`
		SecretKey     string `mapstructure:"secret_key"`
		Bucket        string `mapstructure:"bucket"`
		UseSSL        bool   `mapstructure:"use_ssl"`
		ExpireMinutes int    `mapstructure:"expire_minutes"`
	} `mapstructure:"storage"`
	Auth struct {
		JWTSecret        string `mapstructure:"jwt_secret"`
		TokenExpireHours int    `mapstructure:"token_expire_hours"`
	} `mapstructure:"auth"`
	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
}

// Load reads configuration from config.yaml and the environment. Environment
// variables use the DOCFLOW prefix with underscores, e.g. DOCFLOW_DB_URL.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.SetEnvPrefix("docflow")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("storage.expire_minutes", 60)
	viper.SetDefault("auth.token_expire_hours", 24)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")

	if err := viper.ReadInConfig(); err != nil {
		// A missing file is fine as long as the environment fills the gaps.
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
