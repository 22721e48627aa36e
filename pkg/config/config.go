package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Booking       BookingConfig
	Media         MediaConfig
	GCP           GCPConfig
	Sheets        SheetsConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = "sqlite"
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Booking.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"RENTALS_APP_ENV" required:"true"`
	Port         string `envconfig:"RENTALS_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"RENTALS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"RENTALS_LOG_WARN_STACK" default:"false"`
	Version      string `envconfig:"RENTALS_APP_VERSION" default:"dev"`

	CORSOrigins []string `envconfig:"RENTALS_CORS_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"RENTALS_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"RENTALS_DB_DSN"`
	Driver string `envconfig:"RENTALS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"RENTALS_DB_HOST"`
	LegacyPort     int    `envconfig:"RENTALS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"RENTALS_DB_USER"`
	LegacyPassword string `envconfig:"RENTALS_DB_PASSWORD"`
	LegacyName     string `envconfig:"RENTALS_DB_NAME"`
	LegacySSLMode  string `envconfig:"RENTALS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"RENTALS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"RENTALS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"RENTALS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"RENTALS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"RENTALS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"RENTALS_REDIS_ADDR"`
	Password     string        `envconfig:"RENTALS_REDIS_PASSWORD"`
	DB           int           `envconfig:"RENTALS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"RENTALS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"RENTALS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"RENTALS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"RENTALS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"RENTALS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"RENTALS_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"RENTALS_JWT_ISSUER" default:"rentals-backend"`
	ExpirationMinutes int    `envconfig:"RENTALS_JWT_EXPIRATION_MINUTES" default:"480"`
}

// AccessTokenTTL returns the access token lifetime.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 8 * time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"RENTALS_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"RENTALS_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"RENTALS_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"RENTALS_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"RENTALS_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"RENTALS_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginUsernameLimit int           `envconfig:"RENTALS_AUTH_RATE_LIMIT_LOGIN_USERNAME_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"RENTALS_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"RENTALS_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"RENTALS_AUTO_MIGRATE" default:"false"`
}

const (
	LockBackendLocal = "local"
	LockBackendRedis = "redis"
)

// BookingConfig tunes how bookings for the same variant are serialized.
type BookingConfig struct {
	LockBackend string        `envconfig:"RENTALS_BOOKING_LOCK_BACKEND" default:"redis"`
	LockWait    time.Duration `envconfig:"RENTALS_BOOKING_LOCK_WAIT" default:"2s"`
	LockTTL     time.Duration `envconfig:"RENTALS_BOOKING_LOCK_TTL" default:"15s"`
}

func (b BookingConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(b.LockBackend)) {
	case LockBackendLocal, LockBackendRedis:
	default:
		return fmt.Errorf("%s must be %q or %q", EnvBookingLockBackend, LockBackendLocal, LockBackendRedis)
	}
	if b.LockWait <= 0 {
		return fmt.Errorf("%s must be positive", EnvBookingLockWait)
	}
	return nil
}

type MediaConfig struct {
	UploadDir     string `envconfig:"RENTALS_MEDIA_UPLOAD_DIR" default:"./uploads"`
	PublicBaseURL string `envconfig:"RENTALS_MEDIA_PUBLIC_BASE_URL" default:"/static"`
	MaxUploadMB   int    `envconfig:"RENTALS_MAX_UPLOAD_MB" default:"10"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"RENTALS_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"RENTALS_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"RENTALS_GOOGLE_APPLICATION_CREDENTIALS"`
}

// SheetsConfig points the catalog importer at the legacy inventory spreadsheet.
type SheetsConfig struct {
	SpreadsheetID string `envconfig:"RENTALS_SHEETS_SPREADSHEET_ID"`
	StockPerSize  int    `envconfig:"RENTALS_SHEETS_STOCK_PER_SIZE" default:"1"`
}

type PubSubConfig struct {
	BookingTopic    string `envconfig:"RENTALS_PUBSUB_BOOKING_TOPIC" default:"rentals-booking-events"`
	BookingDLQTopic string `envconfig:"RENTALS_PUBSUB_BOOKING_DLQ_TOPIC"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"RENTALS_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"RENTALS_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"RENTALS_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if strings.EqualFold(db.Driver, "sqlite") {
		return fmt.Errorf("%s is required when the sqlite driver is selected", EnvDBDSN)
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
