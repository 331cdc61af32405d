package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	Port        string
	Env         string
	LogMode     string
	FrontendURL string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	DBTimeZone string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// JWT
	JWTSecret               string
	JWTAccessTokenDuration  time.Duration
	JWTRefreshTokenDuration time.Duration

	// Payments. PaymentProvider is "stripe" or "paypal".
	PaymentProvider     string
	StripeSecretKey     string
	StripeWebhookSecret string
	PayPalClientID      string
	PayPalSecret        string
	PayPalMode          string

	// Task generation (OpenAI-compatible endpoint, Groq by default)
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenAIModel       string
	GenerationTimeout time.Duration

	// Campaign policy
	CampaignBatchSize         int
	CampaignEstimateIncrement int
	CampaignSummaryLimit      int

	// Release asset storage (S3-compatible). Empty endpoint and keys means local storage.
	AssetsS3Endpoint        string
	AssetsS3Region          string
	AssetsS3AccessKeyID     string
	AssetsS3SecretAccessKey string
	AssetsS3UsePathStyle    bool
	AssetsBucket            string
	AssetURLTTL             time.Duration
	LocalAssetsPath         string

	// Uploads
	UploadMaxBytes int64
	UploadsPerDay  int

	// Security
	BcryptCost        int
	RateLimitRequests int
	RateLimitDuration time.Duration

	// CORS
	AllowedOrigins []string
}

func New() *Config {
	return &Config{
		// Server
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		LogMode:     getEnv("LOG_MODE", "development"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),

		// Database
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "releasedesk"),
		DBPassword: getEnv("DB_PASSWORD", "password"),
		DBName:     getEnv("DB_NAME", "releasedesk"),
		DBSSLMode:  getEnv("DB_SSL_MODE", "disable"),
		DBTimeZone: getEnv("DB_TIMEZONE", "UTC"),

		// Redis
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// JWT
		JWTSecret:               getEnv("JWT_SECRET", "your-secret-key"),
		JWTAccessTokenDuration:  getEnvAsDuration("JWT_ACCESS_TOKEN_DURATION", "1h"),
		JWTRefreshTokenDuration: getEnvAsDuration("JWT_REFRESH_TOKEN_DURATION", "168h"),

		// Payments
		PaymentProvider:     getEnv("PAYMENT_PROVIDER", "stripe"),
		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		PayPalClientID:      getEnv("PAYPAL_CLIENT_ID", ""),
		PayPalSecret:        getEnv("PAYPAL_SECRET", ""),
		PayPalMode:          getEnv("PAYPAL_MODE", "sandbox"),

		// Task generation
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", "https://api.groq.com/openai/v1"),
		OpenAIModel:       getEnv("OPENAI_MODEL", "llama-3.3-70b-versatile"),
		GenerationTimeout: getEnvAsDuration("GENERATION_TIMEOUT", "20s"),

		// Campaign policy
		CampaignBatchSize:         getEnvAsInt("CAMPAIGN_BATCH_SIZE", 3),
		CampaignEstimateIncrement: getEnvAsInt("CAMPAIGN_ESTIMATE_INCREMENT", 10),
		CampaignSummaryLimit:      getEnvAsInt("CAMPAIGN_SUMMARY_LIMIT", 30),

		// Release asset storage
		AssetsS3Endpoint:        getEnv("ASSETS_S3_ENDPOINT", ""),
		AssetsS3Region:          getEnv("ASSETS_S3_REGION", "us-east-1"),
		AssetsS3AccessKeyID:     getEnv("ASSETS_S3_ACCESS_KEY_ID", ""),
		AssetsS3SecretAccessKey: getEnv("ASSETS_S3_SECRET_ACCESS_KEY", ""),
		AssetsS3UsePathStyle:    getEnv("ASSETS_S3_USE_PATH_STYLE", "true") == "true",
		AssetsBucket:            getEnv("ASSETS_BUCKET", "releasedesk-assets"),
		AssetURLTTL:             getEnvAsDuration("ASSET_URL_TTL", "30m"),
		LocalAssetsPath:         getEnv("LOCAL_ASSETS_PATH", "/data/assets"),

		// Uploads
		UploadMaxBytes: int64(getEnvAsInt("UPLOAD_MAX_MB", 500)) * 1024 * 1024,
		UploadsPerDay:  getEnvAsInt("UPLOADS_PER_DAY", 50),

		// Security
		BcryptCost:        getEnvAsInt("BCRYPT_COST", 12),
		RateLimitRequests: getEnvAsInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitDuration: getEnvAsDuration("RATE_LIMIT_DURATION", "1m"),

		// CORS
		AllowedOrigins: getEnvAsSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
	}
}

// S3Enabled reports whether remote asset storage is configured.
func (c *Config) S3Enabled() bool {
	return c.AssetsS3AccessKeyID != "" && c.AssetsS3SecretAccessKey != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	if duration, err := time.ParseDuration(defaultValue); err == nil {
		return duration
	}
	return time.Hour
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
