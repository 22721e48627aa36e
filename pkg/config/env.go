package config

// EnvPrefix is the namespace every configuration variable lives under.
const EnvPrefix = "RENTALS"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "RENTALS_APP_ENV"
	EnvPort     = "RENTALS_APP_PORT"
	EnvLogLevel = "RENTALS_LOG_LEVEL"

	EnvDBDSN      = "RENTALS_DB_DSN"
	EnvDBHost     = "RENTALS_DB_HOST"
	EnvDBPort     = "RENTALS_DB_PORT"
	EnvDBUser     = "RENTALS_DB_USER"
	EnvDBPassword = "RENTALS_DB_PASSWORD"
	EnvDBName     = "RENTALS_DB_NAME"

	EnvRedisURL = "RENTALS_REDIS_URL"

	EnvJWTSecret  = "RENTALS_JWT_SECRET"
	EnvJWTIssuer  = "RENTALS_JWT_ISSUER"
	EnvJWTExpMins = "RENTALS_JWT_EXPIRATION_MINUTES"

	EnvBookingLockBackend = "RENTALS_BOOKING_LOCK_BACKEND"
	EnvBookingLockWait    = "RENTALS_BOOKING_LOCK_WAIT"

	EnvGCPProjectID        = "RENTALS_GCP_PROJECT_ID"
	EnvPubSubBookingTopic  = "RENTALS_PUBSUB_BOOKING_TOPIC"
	EnvPubSubBookingDLQ    = "RENTALS_PUBSUB_BOOKING_DLQ_TOPIC"
	EnvMediaUploadDir      = "RENTALS_MEDIA_UPLOAD_DIR"
	EnvMediaPublicBaseURL  = "RENTALS_MEDIA_PUBLIC_BASE_URL"
	EnvOutboxMaxAttempts   = "RENTALS_OUTBOX_MAX_ATTEMPTS"
	EnvOutboxPollIntervalM = "RENTALS_OUTBOX_PUBLISH_POLL_MS"
)

// legacyDBEnvVars are required when no DSN is supplied.
var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
