package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config - структура для хранения конфигураций приложения
type Config struct {
	ServerAddress        string        `mapstructure:"SERVER_ADDRESS"`
	PostgresConn         string        `mapstructure:"POSTGRES_CONN"`
	RunMigrations        bool          `mapstructure:"RUN_MIGRATIONS"`
	LogLevel             string        `mapstructure:"LOG_LEVEL"`
	RequestTimeout       time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	BidServiceFeePercent float64       `mapstructure:"BID_SERVICE_FEE_PERCENT"`
	RevealFee            float64       `mapstructure:"REVEAL_FEE"`
	RoleSessionTTL       time.Duration `mapstructure:"ROLE_SESSION_TTL"`
	RoleSessionSweep     time.Duration `mapstructure:"ROLE_SESSION_SWEEP_INTERVAL"`
}

var defaults = map[string]any{
	"SERVER_ADDRESS":              "0.0.0.0:8080",
	"POSTGRES_CONN":               "",
	"RUN_MIGRATIONS":              true,
	"LOG_LEVEL":                   "info",
	"REQUEST_TIMEOUT":             "5s",
	"BID_SERVICE_FEE_PERCENT":     1.5,
	"REVEAL_FEE":                  499.0,
	"ROLE_SESSION_TTL":            "15m",
	"ROLE_SESSION_SWEEP_INTERVAL": "30s",
}

// LoadConfig загружает конфигурацию из app.env в каталоге path (если есть)
// и из переменных окружения; окружение имеет приоритет.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate проверяет диапазоны значений
func (c Config) Validate() error {
	if c.ServerAddress == "" {
		return errors.New("SERVER_ADDRESS must not be empty")
	}
	if c.BidServiceFeePercent < 0 || c.BidServiceFeePercent > 100 {
		return fmt.Errorf("BID_SERVICE_FEE_PERCENT out of range: %v", c.BidServiceFeePercent)
	}
	if c.RevealFee < 0 {
		return fmt.Errorf("REVEAL_FEE must not be negative: %v", c.RevealFee)
	}
	if c.RoleSessionTTL <= 0 || c.RoleSessionSweep <= 0 {
		return errors.New("ROLE_SESSION_TTL and ROLE_SESSION_SWEEP_INTERVAL must be positive")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT must be positive")
	}
	return nil
}
