package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Guard        GuardConfig
	Identity     IdentityConfig
	RateLimit    RateLimitConfig
	Reconcile    ReconcileConfig
	Notification NotificationConfig
	Metrics      MetricsConfig
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
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines parameters for locally issued sessions.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// GuardConfig feeds the request guard allow-list.
type GuardConfig struct {
	SiteURL        string
	PreviewURL     string
	LocalhostPorts []string
	MarkerHeader   string
	MarkerValue    string
}

// IdentityConfig selects and configures the credential store.
type IdentityConfig struct {
	Provider       string
	RemoteURL      string
	ServiceKey     string
	TimeoutSeconds int
	ListPageSize   int
}

// RateLimitConfig bounds the email availability endpoint per client.
type RateLimitConfig struct {
	EmailCheckRate  float64
	EmailCheckBurst int
}

// ReconcileConfig drives the orphaned identity sweeper.
type ReconcileConfig struct {
	Enabled         bool
	IntervalSeconds int
	GraceMinutes    int
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
}

// MetricsConfig controls the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// Identity provider names.
const (
	IdentityProviderLocal  = "local"
	IdentityProviderRemote = "remote"
)

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	emailCheckRate, err := strconv.ParseFloat(getEnv("RATE_LIMIT_EMAIL_CHECK_PER_SECOND", "2"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_EMAIL_CHECK_PER_SECOND: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "marketplace-accounts"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 0),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
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
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Guard: GuardConfig{
			SiteURL:        strings.TrimRight(os.Getenv("SITE_URL"), "/"),
			PreviewURL:     strings.TrimRight(os.Getenv("PREVIEW_URL"), "/"),
			LocalhostPorts: getEnvAsList("GUARD_LOCALHOST_PORTS", []string{"3000"}),
			MarkerHeader:   getEnv("GUARD_MARKER_HEADER", "X-Requested-With"),
			MarkerValue:    getEnv("GUARD_MARKER_VALUE", "XMLHttpRequest"),
		},
		Identity: IdentityConfig{
			Provider:       getEnv("IDENTITY_PROVIDER", IdentityProviderLocal),
			RemoteURL:      strings.TrimRight(os.Getenv("IDENTITY_REMOTE_URL"), "/"),
			ServiceKey:     os.Getenv("IDENTITY_SERVICE_KEY"),
			TimeoutSeconds: getEnvAsInt("IDENTITY_TIMEOUT_SECONDS", 0),
			ListPageSize:   getEnvAsInt("IDENTITY_LIST_PAGE_SIZE", 100),
		},
		RateLimit: RateLimitConfig{
			EmailCheckRate:  emailCheckRate,
			EmailCheckBurst: getEnvAsInt("RATE_LIMIT_EMAIL_CHECK_BURST", 10),
		},
		Reconcile: ReconcileConfig{
			Enabled:         getEnvAsBool("RECONCILE_ENABLED", false),
			IntervalSeconds: getEnvAsInt("RECONCILE_INTERVAL_SECONDS", 600),
			GraceMinutes:    getEnvAsInt("RECONCILE_GRACE_MINUTES", 30),
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvAsBool("METRICS_ENABLED", true),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Identity.Provider {
	case IdentityProviderLocal:
	case IdentityProviderRemote:
		if c.Identity.RemoteURL == "" {
			return fmt.Errorf("IDENTITY_REMOTE_URL required when IDENTITY_PROVIDER=%s", IdentityProviderRemote)
		}
	default:
		return fmt.Errorf("unknown IDENTITY_PROVIDER %q", c.Identity.Provider)
	}
	if c.Guard.MarkerHeader == "" || c.Guard.MarkerValue == "" {
		return fmt.Errorf("guard marker header and value must be set")
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

// Timeout returns the outbound timeout for the remote provider; zero means none.
func (i IdentityConfig) Timeout() time.Duration {
	if i.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(i.TimeoutSeconds) * time.Second
}

// Interval returns the sweep period.
func (r ReconcileConfig) Interval() time.Duration {
	if r.IntervalSeconds <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(r.IntervalSeconds) * time.Second
}

// Grace returns the minimum identity age before it can be considered orphaned.
func (r ReconcileConfig) Grace() time.Duration {
	if r.GraceMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(r.GraceMinutes) * time.Minute
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

func getEnvAsList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
