package config

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	JWTSecret   string `env:"JWT_SECRET,required"`
	Port        int    `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv      string `env:"APP_ENV" envDefault:"production"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"false"`

	QMoney QMoneyConfig `envPrefix:"QMONEY_"`

	// Outstanding payments allowed per policy at any time.
	MaxOutstandingTransactions int `env:"MAX_OUTSTANDING_TRANSACTIONS" envDefault:"1"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

type QMoneyConfig struct {
	URL        string        `env:"URL,required"`
	Username   string        `env:"USERNAME,required"`
	Password   string        `env:"PASSWORD,required"`
	LoginToken string        `env:"TOKEN,required"`
	Payee      string        `env:"PAYEE,required"`
	PayeePin   string        `env:"PAYEE_PIN_CODE,required"`
	Timeout    time.Duration `env:"TIMEOUT" envDefault:"100s"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if cfg.MaxOutstandingTransactions < 1 {
		return nil, fmt.Errorf("config.Load: MAX_OUTSTANDING_TRANSACTIONS must be at least 1, got %d", cfg.MaxOutstandingTransactions)
	}
	return &cfg, nil
}
