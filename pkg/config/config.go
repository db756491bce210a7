package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "creatorsats"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv = "CREATORSATS_APP_ENV"
	EnvDBDSN  = "CREATORSATS_DB_DSN"
	EnvDBHost = "CREATORSATS_DB_HOST"
	EnvDBUser = "CREATORSATS_DB_USER"
	EnvDBName = "CREATORSATS_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Payments     PaymentsConfig
	Withdrawals  WithdrawalsConfig
	Webhooks     WebhooksConfig
	Gateway      GatewayConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	PriceFeed    PriceFeedConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"CREATORSATS_APP_ENV" required:"true"`
	Port         string `envconfig:"CREATORSATS_APP_PORT" required:"true"`
	BaseURL      string `envconfig:"CREATORSATS_APP_BASE_URL" default:"https://creatorsats.app"`
	LogLevel     string `envconfig:"CREATORSATS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CREATORSATS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CREATORSATS_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"CREATORSATS_DB_DSN"`
	Driver string `envconfig:"CREATORSATS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CREATORSATS_DB_HOST"`
	LegacyPort     int    `envconfig:"CREATORSATS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CREATORSATS_DB_USER"`
	LegacyPassword string `envconfig:"CREATORSATS_DB_PASSWORD"`
	LegacyName     string `envconfig:"CREATORSATS_DB_NAME"`
	LegacySSLMode  string `envconfig:"CREATORSATS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CREATORSATS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CREATORSATS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CREATORSATS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CREATORSATS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CREATORSATS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CREATORSATS_REDIS_ADDR"`
	Password     string        `envconfig:"CREATORSATS_REDIS_PASSWORD"`
	DB           int           `envconfig:"CREATORSATS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CREATORSATS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CREATORSATS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CREATORSATS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CREATORSATS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CREATORSATS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// PaymentsConfig tunes payment validation and confirmation tracking.
type PaymentsConfig struct {
	DustFloorSats       int64         `envconfig:"CREATORSATS_PAYMENTS_DUST_FLOOR_SATS" default:"50"`
	MicroCeilingSats    int64         `envconfig:"CREATORSATS_PAYMENTS_MICRO_CEILING_SATS" default:"100000"`
	BatchThresholdSats  int64         `envconfig:"CREATORSATS_PAYMENTS_BATCH_THRESHOLD_SATS" default:"10000"`
	MinConfirmations    int           `envconfig:"CREATORSATS_PAYMENTS_MIN_CONFIRMATIONS" default:"1"`
	TrackerInterval     time.Duration `envconfig:"CREATORSATS_PAYMENTS_TRACKER_INTERVAL" default:"30s"`
	TrackerCheckCap     int           `envconfig:"CREATORSATS_PAYMENTS_TRACKER_CHECK_CAP" default:"20"`
	TrackerPendingLimit int           `envconfig:"CREATORSATS_PAYMENTS_TRACKER_PENDING_LIMIT" default:"10000"`
	// Scans between ledger re-syncs of the pending set. Picks up unconfirmed
	// rows written by other processes while the worker is running.
	TrackerRehydrateEvery int           `envconfig:"CREATORSATS_PAYMENTS_TRACKER_REHYDRATE_EVERY" default:"10"`
	BalanceTTL            time.Duration `envconfig:"CREATORSATS_PAYMENTS_BALANCE_TTL" default:"60s"`
}

type WithdrawalsConfig struct {
	NetworkFeeSats int64 `envconfig:"CREATORSATS_WITHDRAWALS_NETWORK_FEE_SATS" default:"250"`
	DefaultFeeBPS  int   `envconfig:"CREATORSATS_WITHDRAWALS_DEFAULT_FEE_BPS" default:"100"`
}

type WebhooksConfig struct {
	DeliveryTimeout  time.Duration `envconfig:"CREATORSATS_WEBHOOKS_DELIVERY_TIMEOUT" default:"10s"`
	FailureThreshold int           `envconfig:"CREATORSATS_WEBHOOKS_FAILURE_THRESHOLD" default:"10"`
}

// GatewayConfig points at the blockchain data provider.
type GatewayConfig struct {
	BaseURL string        `envconfig:"CREATORSATS_GATEWAY_BASE_URL" required:"true"`
	Timeout time.Duration `envconfig:"CREATORSATS_GATEWAY_TIMEOUT" default:"10s"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"CREATORSATS_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"CREATORSATS_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"CREATORSATS_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	PaymentEventsTopic        string `envconfig:"CREATORSATS_PUBSUB_PAYMENT_EVENTS_TOPIC" default:"cs-payment-events"`
	PaymentEventsSubscription string `envconfig:"CREATORSATS_PUBSUB_PAYMENT_EVENTS_SUBSCRIPTION"`
}

// PriceFeedConfig seeds the static fiat price feed. RateUSD is the price of
// one whole coin in USD.
type PriceFeedConfig struct {
	RateUSD string `envconfig:"CREATORSATS_PRICE_FEED_RATE_USD" default:"250"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"CREATORSATS_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"CREATORSATS_AUTO_MIGRATE" default:"false"`
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
