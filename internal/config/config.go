package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
)

type Config struct {
	Primary      Primary            `koanf:"primary"`
	Server       ServerConfig       `koanf:"server"`
	Database     DatabaseConfig     `koanf:"database"`
	OrderService OrderServiceConfig `koanf:"order_service"`
	Gateway      GatewayConfig      `koanf:"gateway"`
	Limits       LimitsConfig       `koanf:"limits"`
	Settlement   SettlementConfig   `koanf:"settlement"`
	Expiration   ExpirationConfig   `koanf:"expiration"`
	Logger       LoggerConfig       `koanf:"logger"`
}

type Primary struct {
	Env string `koanf:"env" validate:"required"`
}

type ServerConfig struct {
	Port         string        `koanf:"port" validate:"required"`
	ReadTimeout  time.Duration `koanf:"read_timeout" validate:"required"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"required"`
	IdleTimeout  time.Duration `koanf:"idle_timeout" validate:"required"`
}

type DatabaseConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"required"`
	User            string        `koanf:"user" validate:"required"`
	Password        string        `koanf:"password" validate:"required"`
	Name            string        `koanf:"name" validate:"required"`
	SSLMode         string        `koanf:"ssl_mode" validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"required"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"required"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime" validate:"required"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time" validate:"required"`
}

type OrderServiceConfig struct {
	BaseURL     string        `koanf:"base_url" validate:"required"`
	ConnTimeout time.Duration `koanf:"conn_timeout" validate:"required"`
}

type GatewayConfig struct {
	PaymentSuccessRate float64 `koanf:"payment_success_rate" validate:"gte=0,lte=1"`
	RefundSuccessRate  float64 `koanf:"refund_success_rate" validate:"gte=0,lte=1"`
	CardFeeRate        string  `koanf:"card_fee_rate" validate:"required"`
	CardFeeFixed       string  `koanf:"card_fee_fixed" validate:"required"`
}

type LimitsConfig struct {
	MinAmount  string `koanf:"min_amount" validate:"required"`
	MaxAmount  string `koanf:"max_amount" validate:"required"`
	DailyLimit string `koanf:"daily_limit" validate:"required"`
}

type SettlementConfig struct {
	Workers   int `koanf:"workers" validate:"required,gte=1"`
	QueueSize int `koanf:"queue_size" validate:"required,gte=1"`
}

type ExpirationConfig struct {
	Interval  time.Duration `koanf:"interval" validate:"required"`
	BatchSize int           `koanf:"batch_size" validate:"required"`
}

type LoggerConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// defaults cover local development; any key can be overridden through
// PAYMENT_-prefixed environment variables (double underscore nests keys).
var defaults = map[string]interface{}{
	"primary.env":                  "development",
	"server.port":                  "8084",
	"server.read_timeout":          "15s",
	"server.write_timeout":         "15s",
	"server.idle_timeout":          "60s",
	"database.host":                "localhost",
	"database.port":                5432,
	"database.user":                "payments",
	"database.password":            "payments",
	"database.name":                "bakery_payments",
	"database.ssl_mode":            "disable",
	"database.max_open_conns":      10,
	"database.max_idle_conns":      2,
	"database.conn_max_lifetime":   "30m",
	"database.conn_max_idle_time":  "5m",
	"order_service.base_url":       "http://localhost:8082",
	"order_service.conn_timeout":   "10s",
	"gateway.payment_success_rate": 0.90,
	"gateway.refund_success_rate":  0.95,
	"gateway.card_fee_rate":        "0.029",
	"gateway.card_fee_fixed":       "0.30",
	"limits.min_amount":            "0.50",
	"limits.max_amount":            "10000",
	"limits.daily_limit":           "50000",
	"settlement.workers":           4,
	"settlement.queue_size":        256,
	"expiration.interval":          "1m",
	"expiration.batch_size":        100,
	"logger.level":                 "info",
	"logger.format":                "text",
}

func LoadConfig() (*Config, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		logger.Error("failed to load defaults", "error", err)
		return nil, err
	}

	err := k.Load(env.Provider("PAYMENT_", ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, "PAYMENT_")),
			"__",
			".",
		)
	}), nil)
	if err != nil {
		logger.Error("failed to load environment variables", "error", err)
		return nil, err
	}

	mainConfig := &Config{}

	if err := k.Unmarshal("", mainConfig); err != nil {
		logger.Error("could not unmarshal main config", "error", err)
		return nil, err
	}

	validate := validator.New()

	if err := validate.Struct(mainConfig); err != nil {
		logger.Error("config validation failed", "error", err)
		return nil, err
	}

	return mainConfig, nil
}
