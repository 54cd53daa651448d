package app

import (
	"os"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/service/payment"
)

// StorageDriver выбирает реализацию хранилища.
type StorageDriver string

const (
	StorageDriverMemory   StorageDriver = "memory"
	StorageDriverPostgres StorageDriver = "postgres"
)

// Config описывает настройки запуска приложения.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	StorageDriver       StorageDriver
	PostgresDSN         string
	PostgresAutoMigrate bool

	KafkaBrokers []string

	Gateway payment.GatewayConfig

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	NoticeCleanupInterval  time.Duration
	NoticeCleanupBatchSize int
}

// DefaultConfig возвращает базовые настройки для локального запуска.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:            ":8080",
		MetricsAddr:         ":9090",
		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,

		OutboxPollInterval: time.Second,
		OutboxBatchSize:    100,
		OutboxMaxAttempts:  3,
		OutboxRetryDelay:   200 * time.Millisecond,

		NoticeCleanupInterval:  time.Minute,
		NoticeCleanupBatchSize: 500,
	}
}

// ConfigFromEnv строит конфигурацию из DefaultConfig с переопределениями
// через переменные окружения. Наличие STOREFRONT_PG_DSN переключает
// хранилище на PostgreSQL.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if v := os.Getenv("STOREFRONT_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("STOREFRONT_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("STOREFRONT_PG_DSN")); v != "" {
		cfg.PostgresDSN = v
		cfg.StorageDriver = StorageDriverPostgres
	}
	if v := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); v != "" {
		cfg.KafkaBrokers = strings.Split(v, ",")
	}

	cfg.Gateway = payment.GatewayConfig{
		TmnCode:    os.Getenv("GATEWAY_TMN_CODE"),
		HashSecret: os.Getenv("GATEWAY_HASH_SECRET"),
		PayURL:     os.Getenv("GATEWAY_PAY_URL"),
		ReturnURL:  os.Getenv("GATEWAY_RETURN_URL"),
	}

	return cfg
}
