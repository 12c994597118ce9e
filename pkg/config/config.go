package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is applied to every environment variable envconfig reads.
const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

const (
	EnvDBDSN  = "STOREFRONT_DB_DSN"
	EnvDBHost = "STOREFRONT_DB_HOST"
	EnvDBUser = "STOREFRONT_DB_USER"
	EnvDBName = "STOREFRONT_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Square    SquareConfig
	Cart      CartConfig
	Checkout  CheckoutConfig
	Eventing  EventingConfig
	PubSub    PubSubConfig
	GCP       GCPConfig
	Outbox    OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"STOREFRONT_DB_DSN"`
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"STOREFRONT_DB_HOST"`
	LegacyPort     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STOREFRONT_DB_USER"`
	LegacyPassword string `envconfig:"STOREFRONT_DB_PASSWORD"`
	LegacyName     string `envconfig:"STOREFRONT_DB_NAME"`
	LegacySSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret          string        `envconfig:"STOREFRONT_JWT_SECRET"`
	Issuer          string        `envconfig:"STOREFRONT_JWT_ISSUER" default:"storefront-backend"`
	AccessTokenTTL  time.Duration `envconfig:"STOREFRONT_JWT_ACCESS_TOKEN_TTL" default:"1h"`
	ClockSkewLeeway time.Duration `envconfig:"STOREFRONT_JWT_CLOCK_SKEW_LEEWAY" default:"30s"`
}

type RateLimitConfig struct {
	CheckoutWindow     time.Duration `envconfig:"STOREFRONT_RATE_LIMIT_CHECKOUT_WINDOW" default:"1m"`
	CheckoutIPLimit    int           `envconfig:"STOREFRONT_RATE_LIMIT_CHECKOUT_IP_LIMIT" default:"20"`
	CheckoutEmailLimit int           `envconfig:"STOREFRONT_RATE_LIMIT_CHECKOUT_EMAIL_LIMIT" default:"10"`
}

type SquareConfig struct {
	AccessToken   string `envconfig:"STOREFRONT_SQUARE_ACCESS_TOKEN"`
	Env           string `envconfig:"STOREFRONT_SQUARE_ENV" default:"sandbox"`
	WebhookSecret string `envconfig:"STOREFRONT_SQUARE_WEBHOOK_SECRET"`
	LocationID    string `envconfig:"STOREFRONT_SQUARE_LOCATION_ID"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type CartConfig struct {
	// AbandonAfter is how long an active cart may sit untouched before the
	// worker sweep flips it to abandoned.
	AbandonAfter time.Duration `envconfig:"STOREFRONT_CART_ABANDON_AFTER" default:"24h"`
	// AbandonSweepInterval is how often the worker runs the sweep.
	AbandonSweepInterval time.Duration `envconfig:"STOREFRONT_CART_ABANDON_SWEEP_INTERVAL" default:"15m"`
}

type CheckoutConfig struct {
	// AllowUnsignedWebhooks tolerates unsigned completion events. The flag is
	// honored only outside production; see webhook controller.
	AllowUnsignedWebhooks bool `envconfig:"STOREFRONT_CHECKOUT_ALLOW_UNSIGNED_WEBHOOKS" default:"false"`
	// TotalToleranceCents bounds the acceptable divergence between the
	// authorized amount and the server-side recomputed total.
	TotalToleranceCents int `envconfig:"STOREFRONT_CHECKOUT_TOTAL_TOLERANCE_CENTS" default:"1"`
}

type EventingConfig struct {
	WebhookIdempotencyTTL time.Duration `envconfig:"STOREFRONT_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"STOREFRONT_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"STOREFRONT_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"STOREFRONT_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"STOREFRONT_PUBSUB_ORDERS_TOPIC" default:"sf-order-events"`
	OrdersSubscription string `envconfig:"STOREFRONT_PUBSUB_ORDERS_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"STOREFRONT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"STOREFRONT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"STOREFRONT_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
