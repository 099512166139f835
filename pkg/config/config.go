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
	FeatureFlags  FeatureFlagsConfig
	Plans         PlansConfig
	Budget        BudgetConfig
	OpenAI        OpenAIConfig
	ImageProvider ImageProviderConfig
	RateLimit     RateLimitConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
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
	Env          string `envconfig:"LUMORA_APP_ENV" required:"true"`
	Port         string `envconfig:"LUMORA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"LUMORA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LUMORA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"LUMORA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"LUMORA_DB_DSN"`
	Driver string `envconfig:"LUMORA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LUMORA_DB_HOST"`
	LegacyPort     int    `envconfig:"LUMORA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LUMORA_DB_USER"`
	LegacyPassword string `envconfig:"LUMORA_DB_PASSWORD"`
	LegacyName     string `envconfig:"LUMORA_DB_NAME"`
	LegacySSLMode  string `envconfig:"LUMORA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LUMORA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LUMORA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LUMORA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LUMORA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LUMORA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LUMORA_REDIS_ADDR"`
	Password     string        `envconfig:"LUMORA_REDIS_PASSWORD"`
	DB           int           `envconfig:"LUMORA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LUMORA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LUMORA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LUMORA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LUMORA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LUMORA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"LUMORA_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"LUMORA_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"LUMORA_JWT_EXPIRATION_MINUTES" required:"true"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"LUMORA_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"LUMORA_AUTO_MIGRATE" default:"false"`
}

type PlansConfig struct {
	CacheTTL time.Duration `envconfig:"LUMORA_PLANS_CACHE_TTL" default:"5m"`
}

type BudgetConfig struct {
	MonthlyCostCeiling   string  `envconfig:"LUMORA_BUDGET_MONTHLY_COST_CEILING" default:"1000"`
	MonthlyMessageCap    int64   `envconfig:"LUMORA_BUDGET_MONTHLY_MESSAGE_CAP" default:"50000"`
	MonthlyImageCap      int64   `envconfig:"LUMORA_BUDGET_MONTHLY_IMAGE_CAP" default:"2000"`
	WarningRatio         float64 `envconfig:"LUMORA_BUDGET_WARNING_RATIO" default:"0.8"`
	EnforcePremiumBypass bool    `envconfig:"LUMORA_BUDGET_PREMIUM_BYPASS" default:"true"`
}

type OpenAIConfig struct {
	APIKey           string        `envconfig:"LUMORA_OPENAI_API_KEY"`
	BaseURL          string        `envconfig:"LUMORA_OPENAI_BASE_URL"`
	PrimaryModel     string        `envconfig:"LUMORA_OPENAI_PRIMARY_MODEL" default:"gpt-4o"`
	SecondaryAPIKey  string        `envconfig:"LUMORA_OPENAI_SECONDARY_API_KEY"`
	SecondaryBaseURL string        `envconfig:"LUMORA_OPENAI_SECONDARY_BASE_URL"`
	SecondaryModel   string        `envconfig:"LUMORA_OPENAI_SECONDARY_MODEL" default:"gpt-4o-mini"`
	RequestTimeout   time.Duration `envconfig:"LUMORA_OPENAI_REQUEST_TIMEOUT" default:"60s"`
}

type ImageProviderConfig struct {
	BaseURL      string        `envconfig:"LUMORA_IMAGE_PROVIDER_BASE_URL"`
	APIKey       string        `envconfig:"LUMORA_IMAGE_PROVIDER_API_KEY"`
	Model        string        `envconfig:"LUMORA_IMAGE_PROVIDER_MODEL" default:"flux-dev"`
	PollInterval time.Duration `envconfig:"LUMORA_IMAGE_POLL_INTERVAL" default:"2s"`
	MaxAttempts  int           `envconfig:"LUMORA_IMAGE_POLL_MAX_ATTEMPTS" default:"90"`

	// lower-fidelity fallback used when the primary refuses a submit;
	// base url and key default to the primary's
	FallbackBaseURL string `envconfig:"LUMORA_IMAGE_FALLBACK_BASE_URL"`
	FallbackAPIKey  string `envconfig:"LUMORA_IMAGE_FALLBACK_API_KEY"`
	FallbackModel   string `envconfig:"LUMORA_IMAGE_FALLBACK_MODEL" default:"flux-schnell"`
}

type RateLimitConfig struct {
	ChatWindow time.Duration `envconfig:"LUMORA_RATE_LIMIT_CHAT_WINDOW" default:"1m"`
	ChatLimit  int           `envconfig:"LUMORA_RATE_LIMIT_CHAT_LIMIT" default:"20"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"LUMORA_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"LUMORA_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"LUMORA_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	PaymentsTopic        string `envconfig:"LUMORA_PUBSUB_PAYMENTS_TOPIC"`
	PaymentsSubscription string `envconfig:"LUMORA_PUBSUB_PAYMENTS_SUBSCRIPTION"`
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
