package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix — префикс переменных окружения сервиса.
const EnvPrefix = "ORDERDESK"

// Драйверы хранилища записей.
const (
	DriverMemory     = "memory"
	DriverPocketBase = "pocketbase"
	DriverPostgres   = "postgres"
)

// ErrInvalidConfig возвращается, если конфигурация не прошла проверку.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config описывает настройки запуска сервиса.
type Config struct {
	HTTPAddr    string
	GRPCAddr    string
	MetricsAddr string

	Store     StoreConfig
	Breaker   BreakerConfig
	Kafka     KafkaConfig
	Outbox    OutboxConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Log       LogConfig

	// ItemConcurrency — параллелизм создания позиций; 1 означает последовательные вызовы.
	ItemConcurrency int
	// RequireSession включает проверку сессии на HTTP API.
	RequireSession bool
	// SessionToken — общий секрет для входа через POST /session.
	SessionToken string
}

type StoreConfig struct {
	Driver            string
	PocketBaseURL     string
	PocketBaseToken   string
	PocketBaseTimeout time.Duration
	PostgresDSN       string
	AutoMigrate       bool
}

type BreakerConfig struct {
	MaxFailures  int
	ResetTimeout time.Duration
}

// KafkaConfig — публикация событий заказов; пустой список брокеров отключает публикацию.
type KafkaConfig struct {
	Brokers  []string
	ClientID string
	Topic    string
	DLQTopic string
}

type OutboxConfig struct {
	PollInterval   time.Duration
	BatchSize      int
	MaxAttempts    int
	RetryBaseDelay time.Duration
}

// RateLimitConfig — глобальный лимит HTTP-запросов; RPS <= 0 отключает лимит.
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// Load читает .env-файлы (если они есть) и переменные окружения ORDERDESK_*.
// Уже заданные переменные окружения не перезаписываются значениями из файлов.
func Load(envFiles ...string) (Config, error) {
	if err := loadEnvFiles(envFiles); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := Config{
		HTTPAddr:    v.GetString("http.addr"),
		GRPCAddr:    v.GetString("grpc.addr"),
		MetricsAddr: v.GetString("metrics.addr"),
		Store: StoreConfig{
			Driver:            strings.ToLower(strings.TrimSpace(v.GetString("store.driver"))),
			PocketBaseURL:     v.GetString("pocketbase.url"),
			PocketBaseToken:   v.GetString("pocketbase.token"),
			PocketBaseTimeout: v.GetDuration("pocketbase.timeout"),
			PostgresDSN:       v.GetString("postgres.dsn"),
			AutoMigrate:       v.GetBool("postgres.auto_migrate"),
		},
		Breaker: BreakerConfig{
			MaxFailures:  v.GetInt("breaker.max_failures"),
			ResetTimeout: v.GetDuration("breaker.reset_timeout"),
		},
		Kafka: KafkaConfig{
			Brokers:  splitList(v.GetString("kafka.brokers")),
			ClientID: v.GetString("kafka.client_id"),
			Topic:    v.GetString("kafka.topic"),
			DLQTopic: v.GetString("kafka.dlq_topic"),
		},
		Outbox: OutboxConfig{
			PollInterval:   v.GetDuration("outbox.poll_interval"),
			BatchSize:      v.GetInt("outbox.batch_size"),
			MaxAttempts:    v.GetInt("outbox.max_attempts"),
			RetryBaseDelay: v.GetDuration("outbox.retry_base_delay"),
		},
		RateLimit: RateLimitConfig{
			RPS:   v.GetFloat64("rate_limit.rps"),
			Burst: v.GetInt("rate_limit.burst"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(v.GetString("cors.allowed_origins")),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		ItemConcurrency: v.GetInt("item_concurrency"),
		RequireSession:  v.GetBool("require_session"),
		SessionToken:    v.GetString("session_token"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case DriverMemory:
	case DriverPocketBase:
		if c.Store.PocketBaseURL == "" {
			errs = append(errs, errors.New("pocketbase url is required for pocketbase driver"))
		}
	case DriverPostgres:
		if c.Store.PostgresDSN == "" {
			errs = append(errs, errors.New("postgres dsn is required for postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}

	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("http addr is required"))
	}
	if c.ItemConcurrency < 1 {
		errs = append(errs, errors.New("item concurrency must be at least 1"))
	}
	if c.Breaker.MaxFailures < 1 {
		errs = append(errs, errors.New("breaker max failures must be at least 1"))
	}
	if c.Outbox.BatchSize < 1 || c.Outbox.MaxAttempts < 1 {
		errs = append(errs, errors.New("outbox batch size and max attempts must be positive"))
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst < 1 {
		errs = append(errs, errors.New("rate limit burst must be positive when rps is set"))
	}
	if c.RequireSession && c.SessionToken == "" {
		errs = append(errs, errors.New("session token is required when session is enforced"))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("grpc.addr", ":50051")
	v.SetDefault("metrics.addr", ":9090")

	v.SetDefault("store.driver", DriverMemory)
	v.SetDefault("pocketbase.url", "")
	v.SetDefault("pocketbase.token", "")
	v.SetDefault("pocketbase.timeout", "10s")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.auto_migrate", false)

	v.SetDefault("breaker.max_failures", 5)
	v.SetDefault("breaker.reset_timeout", "30s")

	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.client_id", "orderdesk")
	v.SetDefault("kafka.topic", "orderdesk.order.events")
	v.SetDefault("kafka.dlq_topic", "orderdesk.dlq")

	v.SetDefault("outbox.poll_interval", "1s")
	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.max_attempts", 3)
	v.SetDefault("outbox.retry_base_delay", "50ms")

	v.SetDefault("rate_limit.rps", 0)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("cors.allowed_origins", "*")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("item_concurrency", 1)
	v.SetDefault("require_session", false)
	v.SetDefault("session_token", "")
}

func loadEnvFiles(files []string) error {
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("stat env file %s: %w", f, err)
		}
		existing = append(existing, f)
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}
	return nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
