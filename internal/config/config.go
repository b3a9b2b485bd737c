// Package config содержит логику чтения конфигурации сервиса импортадора.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса импортадора.
type Config struct {
	RunAddress            string        `env:"RUN_ADDRESS"`
	DatabaseURI           string        `env:"DATABASE_URI"`
	MarketRateURL         string        `env:"MARKET_RATE_URL"`
	MarketRateFallbackURL string        `env:"MARKET_RATE_FALLBACK_URL"`
	CustomsRateURL        string        `env:"CUSTOMS_RATE_URL"`
	CustomsRateInterval   time.Duration `env:"CUSTOMS_RATE_INTERVAL"`
	AuthSecret            string        `env:"AUTH_SECRET"`
}

// Значения по умолчанию соответствуют публичным чилийским источникам курса.
const (
	defaultMarketRateURL         = "https://mindicador.cl/api/dolar"
	defaultMarketRateFallbackURL = "https://api.gael.cloud/general/public/monedas/USD"
	defaultCustomsRateURL        = "https://www.pollmann.cl/parametros.php?tipo=5"
	defaultCustomsRateInterval   = 12 * time.Hour
)

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envMarketRateURL := cfg.MarketRateURL
	envMarketRateFallbackURL := cfg.MarketRateFallbackURL
	envCustomsRateURL := cfg.CustomsRateURL
	envCustomsRateInterval := cfg.CustomsRateInterval
	envAuthSecret := cfg.AuthSecret

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.MarketRateURL, "m", defaultMarketRateURL, "primary market rate source URL")
	flag.StringVar(&cfg.MarketRateFallbackURL, "f", defaultMarketRateFallbackURL, "fallback market rate source URL")
	flag.StringVar(&cfg.CustomsRateURL, "c", defaultCustomsRateURL, "customs rate source URL")
	flag.DurationVar(&cfg.CustomsRateInterval, "i", defaultCustomsRateInterval, "customs rate refresh interval")
	flag.StringVar(&cfg.AuthSecret, "s", "importadora-secret", "secret key for auth cookies")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envMarketRateURL != "" {
		cfg.MarketRateURL = envMarketRateURL
	}
	if envMarketRateFallbackURL != "" {
		cfg.MarketRateFallbackURL = envMarketRateFallbackURL
	}
	if envCustomsRateURL != "" {
		cfg.CustomsRateURL = envCustomsRateURL
	}
	if envCustomsRateInterval != 0 {
		cfg.CustomsRateInterval = envCustomsRateInterval
	}
	if envAuthSecret != "" {
		cfg.AuthSecret = envAuthSecret
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.CustomsRateInterval <= 0 {
		cfg.CustomsRateInterval = defaultCustomsRateInterval
	}

	return cfg, nil
}
