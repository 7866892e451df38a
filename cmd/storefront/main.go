package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/app"
)

// Имена переменных окружения, управляющих конфигурацией приложения.
const (
	envHTTPAddr                    = "STOREFRONT_HTTP_ADDR"
	envMetricsAddr                 = "STOREFRONT_METRICS_ADDR"
	envStorageDriver               = "STOREFRONT_STORAGE_DRIVER"
	envPostgresDSN                 = "STOREFRONT_POSTGRES_DSN"
	envPostgresAutoMigrate         = "STOREFRONT_POSTGRES_AUTO_MIGRATE"
	envKafkaBrokers                = "KAFKA_BROKERS"
	envOutboxPollInterval          = "STOREFRONT_OUTBOX_POLL_INTERVAL"
	envOutboxBatchSize             = "STOREFRONT_OUTBOX_BATCH_SIZE"
	envOutboxMaxAttempts           = "STOREFRONT_OUTBOX_MAX_ATTEMPTS"
	envOutboxRetryDelay            = "STOREFRONT_OUTBOX_RETRY_DELAY"
	envOutboxMaxPending            = "STOREFRONT_OUTBOX_MAX_PENDING"
	envIdempotencyTTL              = "STOREFRONT_IDEMPOTENCY_TTL"
	envIdempotencyCleanupInterval  = "STOREFRONT_IDEMPOTENCY_CLEANUP_INTERVAL"
	envIdempotencyCleanupBatchSize = "STOREFRONT_IDEMPOTENCY_CLEANUP_BATCH_SIZE"
)

// envLookup позволяет подменить источник переменных окружения в тестах.
type envLookup func(key string) (string, bool)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)
}

// readConfigFromEnv формирует конфигурацию приложения из окружения.
// Невалидные значения не останавливают запуск: поле остаётся дефолтным,
// а предупреждение возвращается вызывающему для логирования.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string

	warn := func(key, value string, err error) {
		warnings = append(warnings, fmt.Sprintf("%s=%q ignored: %v", key, value, err))
	}

	if value, ok := lookup(envHTTPAddr); ok && strings.TrimSpace(value) != "" {
		cfg.HTTPAddr = strings.TrimSpace(value)
	}
	if value, ok := lookup(envMetricsAddr); ok && strings.TrimSpace(value) != "" {
		cfg.MetricsAddr = strings.TrimSpace(value)
	}
	if value, ok := lookup(envStorageDriver); ok && strings.TrimSpace(value) != "" {
		cfg.StorageDriver = strings.ToLower(strings.TrimSpace(value))
	}
	if value, ok := lookup(envPostgresDSN); ok && strings.TrimSpace(value) != "" {
		cfg.PostgresDSN = strings.TrimSpace(value)
	}
	if value, ok := lookup(envPostgresAutoMigrate); ok {
		parsed, err := parseBool(value)
		if err != nil {
			warn(envPostgresAutoMigrate, value, err)
		} else {
			cfg.PostgresAutoMigrate = parsed
		}
	}
	if value, ok := lookup(envKafkaBrokers); ok && strings.TrimSpace(value) != "" {
		cfg.KafkaBrokers = strings.TrimSpace(value)
	}
	if value, ok := lookup(envOutboxPollInterval); ok {
		parsed, err := parseDuration(value, func(v time.Duration) bool { return v > 0 }, "must be > 0")
		if err != nil {
			warn(envOutboxPollInterval, value, err)
		} else {
			cfg.OutboxPollInterval = parsed
		}
	}
	if value, ok := lookup(envOutboxBatchSize); ok {
		parsed, err := parseInt(value, func(v int) bool { return v > 0 }, "must be > 0")
		if err != nil {
			warn(envOutboxBatchSize, value, err)
		} else {
			cfg.OutboxBatchSize = parsed
		}
	}
	if value, ok := lookup(envOutboxMaxAttempts); ok {
		parsed, err := parseInt(value, func(v int) bool { return v > 0 }, "must be > 0")
		if err != nil {
			warn(envOutboxMaxAttempts, value, err)
		} else {
			cfg.OutboxMaxAttempts = parsed
		}
	}
	if value, ok := lookup(envOutboxRetryDelay); ok {
		parsed, err := parseDuration(value, func(v time.Duration) bool { return v >= 0 }, "must be >= 0")
		if err != nil {
			warn(envOutboxRetryDelay, value, err)
		} else {
			cfg.OutboxRetryDelay = parsed
		}
	}
	if value, ok := lookup(envOutboxMaxPending); ok {
		parsed, err := parseInt(value, func(v int) bool { return v >= 0 }, "must be >= 0")
		if err != nil {
			warn(envOutboxMaxPending, value, err)
		} else {
			cfg.OutboxMaxPending = parsed
		}
	}
	if value, ok := lookup(envIdempotencyTTL); ok {
		parsed, err := parseDuration(value, func(v time.Duration) bool { return v > 0 }, "must be > 0")
		if err != nil {
			warn(envIdempotencyTTL, value, err)
		} else {
			cfg.IdempotencyTTL = parsed
		}
	}
	if value, ok := lookup(envIdempotencyCleanupInterval); ok {
		parsed, err := parseDuration(value, func(v time.Duration) bool { return v > 0 }, "must be > 0")
		if err != nil {
			warn(envIdempotencyCleanupInterval, value, err)
		} else {
			cfg.IdempotencyCleanupInterval = parsed
		}
	}
	if value, ok := lookup(envIdempotencyCleanupBatchSize); ok {
		parsed, err := parseInt(value, func(v int) bool { return v > 0 }, "must be > 0")
		if err != nil {
			warn(envIdempotencyCleanupBatchSize, value, err)
		} else {
			cfg.IdempotencyCleanupBatchSize = parsed
		}
	}

	return cfg, warnings
}

func parseBool(raw string) (bool, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value")
	}
}

func parseInt(raw string, valid func(int) bool, constraint string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid int value")
	}
	if !valid(value) {
		return 0, fmt.Errorf("%s", constraint)
	}
	return value, nil
}

func parseDuration(raw string, valid func(time.Duration) bool, constraint string) (time.Duration, error) {
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid duration value")
	}
	if !valid(value) {
		return 0, fmt.Errorf("%s", constraint)
	}
	return value, nil
}

func main() {
	setupLogger()

	// .env опционален, переменные окружения имеют приоритет.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("failed to load .env file")
	}

	cfg, warnings := readConfigFromEnv(os.LookupEnv)
	for _, warning := range warnings {
		log.Warn(warning)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"http_addr":      cfg.HTTPAddr,
		"metrics_addr":   cfg.MetricsAddr,
		"storage_driver": cfg.StorageDriver,
	}).Info("запускаем storefront")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("storefront остановлен")
}
