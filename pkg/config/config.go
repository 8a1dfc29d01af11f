package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "RESELLHUB"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "RESELLHUB_DB_DSN"
	EnvDBHost = "RESELLHUB_DB_HOST"
	EnvDBUser = "RESELLHUB_DB_USER"
	EnvDBName = "RESELLHUB_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	HTTP         HTTPConfig
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
	Env          string `envconfig:"RESELLHUB_APP_ENV" required:"true"`
	Port         string `envconfig:"RESELLHUB_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"RESELLHUB_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"RESELLHUB_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"RESELLHUB_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"RESELLHUB_DB_DSN"`
	Driver string `envconfig:"RESELLHUB_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"RESELLHUB_DB_HOST"`
	LegacyPort     int    `envconfig:"RESELLHUB_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"RESELLHUB_DB_USER"`
	LegacyPassword string `envconfig:"RESELLHUB_DB_PASSWORD"`
	LegacyName     string `envconfig:"RESELLHUB_DB_NAME"`
	LegacySSLMode  string `envconfig:"RESELLHUB_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"RESELLHUB_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"RESELLHUB_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"RESELLHUB_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"RESELLHUB_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	TxRetryAttempts int           `envconfig:"RESELLHUB_DB_TX_RETRY_ATTEMPTS" default:"3"`
	TxRetryBackoff  time.Duration `envconfig:"RESELLHUB_DB_TX_RETRY_BACKOFF" default:"50ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"RESELLHUB_REDIS_URL" required:"true"`
	Address      string        `envconfig:"RESELLHUB_REDIS_ADDR"`
	Password     string        `envconfig:"RESELLHUB_REDIS_PASSWORD"`
	DB           int           `envconfig:"RESELLHUB_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"RESELLHUB_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"RESELLHUB_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"RESELLHUB_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"RESELLHUB_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"RESELLHUB_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"RESELLHUB_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"RESELLHUB_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"RESELLHUB_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"RESELLHUB_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"RESELLHUB_GOOGLE_APPLICATION_CREDENTIALS"`
}

// PubSubConfig names the notification channels. Admin events fan out to the
// administrator dashboard, reseller events to the owning reseller's feed.
type PubSubConfig struct {
	AdminTopic           string `envconfig:"RESELLHUB_PUBSUB_ADMIN_TOPIC" default:"rh-admin-events"`
	AdminSubscription    string `envconfig:"RESELLHUB_PUBSUB_ADMIN_SUBSCRIPTION"`
	ResellerTopic        string `envconfig:"RESELLHUB_PUBSUB_RESELLER_TOPIC" default:"rh-reseller-events"`
	ResellerSubscription string `envconfig:"RESELLHUB_PUBSUB_RESELLER_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"RESELLHUB_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"RESELLHUB_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"RESELLHUB_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type HTTPConfig struct {
	AllowedOrigins []string `envconfig:"RESELLHUB_HTTP_ALLOWED_ORIGINS" default:"http://localhost:3000"`
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
