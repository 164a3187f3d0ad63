package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Ticket status policies.
const (
	TicketPolicyPermissive = "permissive"
	TicketPolicyGuarded    = "guarded"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Kafka    KafkaConfig
	Workflow WorkflowConfig
	Chat     ChatConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines bearer token parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// KafkaConfig configures the optional domain event sink.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// WorkflowConfig holds the tunables of the article and ticket engines.
type WorkflowConfig struct {
	CreateSlugAttempts int
	UpdateSlugAttempts int
	TicketStatusPolicy string
	DefaultPageSize    int
	MaxPageSize        int
}

// ChatConfig configures live fan-out.
type ChatConfig struct {
	SubscriberBuffer int
	ChannelPrefix    string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "support-desk"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnv("KAFKA_TOPIC", "support-desk.events"),
		},
		Workflow: WorkflowConfig{
			CreateSlugAttempts: getEnvAsInt("ARTICLE_CREATE_SLUG_ATTEMPTS", 20),
			UpdateSlugAttempts: getEnvAsInt("ARTICLE_UPDATE_SLUG_ATTEMPTS", 100),
			TicketStatusPolicy: strings.ToLower(getEnv("TICKET_STATUS_POLICY", TicketPolicyPermissive)),
			DefaultPageSize:    getEnvAsInt("SEARCH_DEFAULT_PAGE_SIZE", 20),
			MaxPageSize:        getEnvAsInt("SEARCH_MAX_PAGE_SIZE", 100),
		},
		Chat: ChatConfig{
			SubscriberBuffer: getEnvAsInt("CHAT_SUBSCRIBER_BUFFER", 32),
			ChannelPrefix:    getEnv("CHAT_CHANNEL_PREFIX", "chat:session"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the workflow engines cannot run with.
func (c *Config) Validate() error {
	switch c.Workflow.TicketStatusPolicy {
	case TicketPolicyPermissive, TicketPolicyGuarded:
	default:
		return fmt.Errorf("invalid TICKET_STATUS_POLICY %q", c.Workflow.TicketStatusPolicy)
	}
	if c.Workflow.CreateSlugAttempts <= 0 || c.Workflow.UpdateSlugAttempts <= 0 {
		return fmt.Errorf("slug attempt bounds must be positive")
	}
	if c.Workflow.DefaultPageSize <= 0 || c.Workflow.MaxPageSize < c.Workflow.DefaultPageSize {
		return fmt.Errorf("invalid search page sizes: default=%d max=%d", c.Workflow.DefaultPageSize, c.Workflow.MaxPageSize)
	}
	if c.Chat.SubscriberBuffer <= 0 {
		return fmt.Errorf("CHAT_SUBSCRIBER_BUFFER must be positive")
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// TokenTTL returns the lifetime of issued access tokens.
func (a AuthConfig) TokenTTL() time.Duration {
	if a.AccessTokenTTLMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
