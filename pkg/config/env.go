package config

// EnvPrefix is empty because every field carries its fully qualified variable name.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "PACKFINDERZ_APP_ENV"
	EnvPort     = "PACKFINDERZ_APP_PORT"
	EnvLogLevel = "PACKFINDERZ_LOG_LEVEL"

	EnvDBDSN  = "PACKFINDERZ_DB_DSN"
	EnvDBHost = "PACKFINDERZ_DB_HOST"
	EnvDBUser = "PACKFINDERZ_DB_USER"
	EnvDBName = "PACKFINDERZ_DB_NAME"

	EnvUseSQLite = "PACKFINDERZ_USE_SQLITE"
	EnvRedisURL  = "PACKFINDERZ_REDIS_URL"

	EnvGCPProjectID    = "PACKFINDERZ_GCP_PROJECT_ID"
	EnvPubSubOrdersSub = "PACKFINDERZ_PUBSUB_ORDERS_SUBSCRIPTION"
	EnvPubSubWallet    = "PACKFINDERZ_PUBSUB_WALLET_TOPIC"

	EnvWalletReturnWindowDays = "PACKFINDERZ_WALLET_RETURN_WINDOW_DAYS"
	EnvWalletUnlockBatchSize  = "PACKFINDERZ_WALLET_UNLOCK_BATCH_SIZE"
	EnvWalletUnlockBatchMax   = "PACKFINDERZ_WALLET_UNLOCK_BATCH_MAX"
	EnvWalletMaxAttempts      = "PACKFINDERZ_WALLET_MAX_ATTEMPTS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
