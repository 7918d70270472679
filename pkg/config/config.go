package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Cashfree     CashfreeConfig
	ShipRate     ShipRateConfig
	Reservation  ReservationConfig
	Sweeper      SweeperConfig
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
	Env          string `envconfig:"BRANDKART_APP_ENV" required:"true"`
	Port         string `envconfig:"BRANDKART_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BRANDKART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BRANDKART_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"BRANDKART_DB_DSN"`
	Driver string `envconfig:"BRANDKART_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BRANDKART_DB_HOST"`
	LegacyPort     int    `envconfig:"BRANDKART_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BRANDKART_DB_USER"`
	LegacyPassword string `envconfig:"BRANDKART_DB_PASSWORD"`
	LegacyName     string `envconfig:"BRANDKART_DB_NAME"`
	LegacySSLMode  string `envconfig:"BRANDKART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BRANDKART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BRANDKART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BRANDKART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BRANDKART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BRANDKART_REDIS_URL"`
	Address      string        `envconfig:"BRANDKART_REDIS_ADDR"`
	Password     string        `envconfig:"BRANDKART_REDIS_PASSWORD"`
	DB           int           `envconfig:"BRANDKART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BRANDKART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BRANDKART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BRANDKART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BRANDKART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BRANDKART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret string `envconfig:"BRANDKART_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"BRANDKART_JWT_ISSUER" required:"true"`
}

type CashfreeConfig struct {
	BaseURL        string        `envconfig:"BRANDKART_CASHFREE_BASE_URL" default:"https://sandbox.cashfree.com/pg"`
	APIVersion     string        `envconfig:"BRANDKART_CASHFREE_API_VERSION" default:"2023-08-01"`
	Timeout        time.Duration `envconfig:"BRANDKART_CASHFREE_TIMEOUT" default:"10s"`
	ReturnURL      string        `envconfig:"BRANDKART_CASHFREE_RETURN_URL"`
	NotifyURL      string        `envconfig:"BRANDKART_CASHFREE_NOTIFY_URL"`
	WebhookSecret  string        `envconfig:"BRANDKART_CASHFREE_WEBHOOK_SECRET" required:"true"`
	MaxRetries     int           `envconfig:"BRANDKART_CASHFREE_MAX_RETRIES" default:"3"`
	RetryBaseDelay time.Duration `envconfig:"BRANDKART_CASHFREE_RETRY_BASE_DELAY" default:"250ms"`
}

type ShipRateConfig struct {
	BaseURL         string        `envconfig:"BRANDKART_SHIPRATE_BASE_URL"`
	Token           string        `envconfig:"BRANDKART_SHIPRATE_TOKEN"`
	Timeout         time.Duration `envconfig:"BRANDKART_SHIPRATE_TIMEOUT" default:"8s"`
	FlatFallbackFee int64         `envconfig:"BRANDKART_SHIPRATE_FLAT_FALLBACK_FEE" default:"0"`
	UseFlatFallback bool          `envconfig:"BRANDKART_SHIPRATE_USE_FLAT_FALLBACK" default:"false"`
}

type ReservationConfig struct {
	TTL time.Duration `envconfig:"BRANDKART_RESERVATION_TTL" default:"90m"`
}

type SweeperConfig struct {
	Interval time.Duration `envconfig:"BRANDKART_SWEEPER_INTERVAL" default:"5m"`
	LockTTL  time.Duration `envconfig:"BRANDKART_SWEEPER_LOCK_TTL" default:"10m"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"BRANDKART_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"BRANDKART_AUTO_MIGRATE" default:"false"`
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
