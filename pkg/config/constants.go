package config

// EnvPrefix is passed to envconfig; individual fields carry the full
// variable name so the prefix stays empty.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// Environment variable names shared with tests and deploy tooling.
const (
	EnvAppEnv   = "LUMORA_APP_ENV"
	EnvPort     = "LUMORA_APP_PORT"
	EnvLogLevel = "LUMORA_LOG_LEVEL"

	EnvDBDSN      = "LUMORA_DB_DSN"
	EnvDBHost     = "LUMORA_DB_HOST"
	EnvDBUser     = "LUMORA_DB_USER"
	EnvDBName     = "LUMORA_DB_NAME"
	EnvRedisURL   = "LUMORA_REDIS_URL"
	EnvJWTSecret  = "LUMORA_JWT_SECRET"
	EnvJWTIssuer  = "LUMORA_JWT_ISSUER"
	EnvJWTExpMins = "LUMORA_JWT_EXPIRATION_MINUTES"

	EnvGCPProjectID   = "LUMORA_GCP_PROJECT_ID"
	EnvPubSubPayTopic = "LUMORA_PUBSUB_PAYMENTS_TOPIC"
	EnvPubSubPaySub   = "LUMORA_PUBSUB_PAYMENTS_SUBSCRIPTION"

	EnvOpenAIAPIKey       = "LUMORA_OPENAI_API_KEY"
	EnvImageProviderKey   = "LUMORA_IMAGE_PROVIDER_API_KEY"
	EnvMonthlyCostCeiling = "LUMORA_BUDGET_MONTHLY_COST_CEILING"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
