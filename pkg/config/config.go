package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App         AppConfig
	DB          DBConfig
	Redis       RedisConfig
	JWT         JWTConfig
	Square      SquareConfig
	PubSub      PubSubConfig
	Reservation ReservationConfig
	Payment     PaymentConfig
	GCP         GCPConfig
	Cron        CronConfig
	Flags       FeatureFlagsConfig
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
	Env          string `envconfig:"AGROFARM_APP_ENV" required:"true"`
	Port         string `envconfig:"AGROFARM_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"AGROFARM_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"AGROFARM_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"AGROFARM_DB_DSN"`
	Driver string `envconfig:"AGROFARM_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"AGROFARM_DB_HOST"`
	LegacyPort     int    `envconfig:"AGROFARM_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"AGROFARM_DB_USER"`
	LegacyPassword string `envconfig:"AGROFARM_DB_PASSWORD"`
	LegacyName     string `envconfig:"AGROFARM_DB_NAME"`
	LegacySSLMode  string `envconfig:"AGROFARM_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"AGROFARM_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"AGROFARM_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"AGROFARM_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"AGROFARM_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"AGROFARM_REDIS_URL" required:"true"`
	Address      string        `envconfig:"AGROFARM_REDIS_ADDR"`
	Password     string        `envconfig:"AGROFARM_REDIS_PASSWORD"`
	DB           int           `envconfig:"AGROFARM_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"AGROFARM_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"AGROFARM_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"AGROFARM_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"AGROFARM_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"AGROFARM_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"AGROFARM_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"AGROFARM_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"AGROFARM_JWT_EXPIRATION_MINUTES" default:"60"`
}

// Expiration returns the access token lifetime.
func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type SquareConfig struct {
	AccessToken   string `envconfig:"AGROFARM_SQUARE_ACCESS_TOKEN"`
	Env           string `envconfig:"AGROFARM_SQUARE_ENV" default:"sandbox"`
	LocationID    string `envconfig:"AGROFARM_SQUARE_LOCATION_ID"`
	WebhookSecret string `envconfig:"AGROFARM_SQUARE_WEBHOOK_SECRET"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type GCPConfig struct {
	ProjectID              string `envconfig:"AGROFARM_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"AGROFARM_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"AGROFARM_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	PaymentRequestTopic string        `envconfig:"AGROFARM_PUBSUB_PAYMENT_REQUEST_TOPIC" default:"agrofarm-payment-requests"`
	PaymentRequestSub   string        `envconfig:"AGROFARM_PUBSUB_PAYMENT_REQUEST_SUBSCRIPTION" default:"agrofarm-payment-requests-sub"`
	PaymentReplyTopic   string        `envconfig:"AGROFARM_PUBSUB_PAYMENT_REPLY_TOPIC" default:"agrofarm-payment-replies"`
	PaymentEventsTopic  string        `envconfig:"AGROFARM_PUBSUB_PAYMENT_EVENTS_TOPIC" default:"agrofarm-payment-events"`
	PaymentEventsSub    string        `envconfig:"AGROFARM_PUBSUB_PAYMENT_EVENTS_SUBSCRIPTION" default:"agrofarm-payment-events-sub"`
	ReplyRetention      time.Duration `envconfig:"AGROFARM_PUBSUB_REPLY_RETENTION" default:"10m"`
	ReplyExpiration     time.Duration `envconfig:"AGROFARM_PUBSUB_REPLY_EXPIRATION" default:"24h"`
}

type ReservationConfig struct {
	HoldTTL       time.Duration `envconfig:"AGROFARM_RESERVATION_HOLD_TTL" default:"15m"`
	SweepInterval time.Duration `envconfig:"AGROFARM_RESERVATION_SWEEP_INTERVAL" default:"15m"`
	LockTTL       time.Duration `envconfig:"AGROFARM_RESERVATION_LOCK_TTL" default:"5s"`
	LockRetry     time.Duration `envconfig:"AGROFARM_RESERVATION_LOCK_RETRY" default:"25ms"`
}

type PaymentConfig struct {
	// Mode selects the gateway bridge: "square" (synchronous provider call)
	// or "broker" (request/reply over Pub/Sub).
	Mode         string        `envconfig:"AGROFARM_PAYMENT_MODE" default:"square"`
	ReplyTimeout time.Duration `envconfig:"AGROFARM_PAYMENT_REPLY_TIMEOUT" default:"15s"`
	Currency     string        `envconfig:"AGROFARM_PAYMENT_CURRENCY" default:"USD"`
}

type CronConfig struct {
	LockKey string        `envconfig:"AGROFARM_CRON_LOCK_KEY" default:"cron-worker"`
	LockTTL time.Duration `envconfig:"AGROFARM_CRON_LOCK_TTL" default:"20m"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"AGROFARM_AUTO_MIGRATE" default:"false"`
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
