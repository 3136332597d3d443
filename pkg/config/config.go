package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "KEYDECK"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "KEYDECK_DB_DSN"
	EnvDBHost = "KEYDECK_DB_HOST"
	EnvDBUser = "KEYDECK_DB_USER"
	EnvDBName = "KEYDECK_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Pix          PixConfig
	Chat         ChatConfig
	Billing      BillingConfig
	Jobs         JobsConfig
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
	Env          string `envconfig:"KEYDECK_APP_ENV" required:"true"`
	Port         string `envconfig:"KEYDECK_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"KEYDECK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"KEYDECK_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"KEYDECK_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"KEYDECK_DB_DSN"`
	Driver string `envconfig:"KEYDECK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"KEYDECK_DB_HOST"`
	LegacyPort     int    `envconfig:"KEYDECK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"KEYDECK_DB_USER"`
	LegacyPassword string `envconfig:"KEYDECK_DB_PASSWORD"`
	LegacyName     string `envconfig:"KEYDECK_DB_NAME"`
	LegacySSLMode  string `envconfig:"KEYDECK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"KEYDECK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"KEYDECK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"KEYDECK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"KEYDECK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"KEYDECK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"KEYDECK_REDIS_ADDR"`
	Password     string        `envconfig:"KEYDECK_REDIS_PASSWORD"`
	DB           int           `envconfig:"KEYDECK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"KEYDECK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"KEYDECK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"KEYDECK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"KEYDECK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"KEYDECK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"KEYDECK_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"KEYDECK_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"KEYDECK_JWT_EXPIRATION_MINUTES" default:"720"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"KEYDECK_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"KEYDECK_AUTO_MIGRATE" default:"false"`
}

// PixConfig points at the instant-payment gateway used for buyer charges.
type PixConfig struct {
	Provider  string        `envconfig:"KEYDECK_PIX_PROVIDER" default:"mercadopago"`
	BaseURL   string        `envconfig:"KEYDECK_PIX_BASE_URL"`
	APIKey    string        `envconfig:"KEYDECK_PIX_API_KEY"`
	Timeout   time.Duration `envconfig:"KEYDECK_PIX_TIMEOUT" default:"10s"`
	ExpiresIn time.Duration `envconfig:"KEYDECK_PIX_CHARGE_EXPIRY" default:"30m"`
}

// ChatConfig points at the guild chat platform's REST API.
type ChatConfig struct {
	BaseURL  string        `envconfig:"KEYDECK_CHAT_BASE_URL"`
	BotToken string        `envconfig:"KEYDECK_CHAT_BOT_TOKEN"`
	Timeout  time.Duration `envconfig:"KEYDECK_CHAT_TIMEOUT" default:"10s"`
}

// BillingConfig carries platform fee and seller plan bonus parameters.
type BillingConfig struct {
	FeePercent       float64 `envconfig:"KEYDECK_BILLING_FEE_PERCENT" default:"5"`
	BonusUnitCents   int     `envconfig:"KEYDECK_BILLING_BONUS_UNIT_CENTS" default:"100000"`
	BonusDaysPerUnit int     `envconfig:"KEYDECK_BILLING_BONUS_DAYS_PER_UNIT" default:"1"`
}

// JobsConfig controls the background sweeps run by cmd/worker.
type JobsConfig struct {
	CartIdleTTL             time.Duration `envconfig:"KEYDECK_JOBS_CART_IDLE_TTL" default:"5m"`
	ReaperInterval          time.Duration `envconfig:"KEYDECK_JOBS_REAPER_INTERVAL" default:"1m"`
	PaymentSyncInterval     time.Duration `envconfig:"KEYDECK_JOBS_PAYMENT_SYNC_INTERVAL" default:"30s"`
	StockRetryInterval      time.Duration `envconfig:"KEYDECK_JOBS_STOCK_RETRY_INTERVAL" default:"1m"`
	WalletReconcileInterval time.Duration `envconfig:"KEYDECK_JOBS_WALLET_RECONCILE_INTERVAL" default:"10m"`
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
