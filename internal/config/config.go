package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port           string
	Env            string
	PublicBaseURL  string
	LogLevel       string
	UseMemoryQueue bool
	WorkerCount    int
	DatabaseURL    string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	ConversationQueueURL  string
	ConversationJobsTable string

	// AI gateway
	AIProvider       string
	BedrockModelID   string
	GeminiAPIKey     string
	GeminiModelID    string
	AIMinInterval    time.Duration
	AIMaxAttempts    int
	AIRetryBaseDelay time.Duration
	AICallTimeout    time.Duration

	// Meta channels. Each channel carries its own verify token, app secret
	// and page/bearer token; the shop maps resolve external business ids
	// (phone number id, page id) to shop ids.
	GraphBaseURL           string
	WhatsAppVerifyToken    string
	WhatsAppAppSecret      string
	WhatsAppAccessToken    string
	WhatsAppPhoneNumberID  string
	WhatsAppShopMapJSON    string
	InstagramVerifyToken   string
	InstagramAppSecret     string
	InstagramAccessToken   string
	InstagramShopMapJSON   string
	MessengerVerifyToken   string
	MessengerAppSecret     string
	MessengerAccessToken   string
	MessengerShopMapJSON   string
	DefaultShopID          string
	OutboundRequestTimeout time.Duration

	AdminJWTSecret     string
	DashboardJWTSecret string

	// Billing
	BillingWebhookSecret string
	BillingSweepInterval time.Duration
	BillingPeriodDays    int

	// Events outbox deliverer
	OutboxBatchSize int
	OutboxInterval  time.Duration

	// Email
	EmailProvider     string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string
	SESFromName       string

	ArchiveBucket string

	RateLimitPerSecond float64
	RateLimitBurst     int
	CORSAllowedOrigins string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		PublicBaseURL:  getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		UseMemoryQueue: getEnvAsBool("USE_MEMORY_QUEUE", false),
		WorkerCount:    getEnvAsInt("WORKER_COUNT", 2),
		DatabaseURL:    getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		ConversationQueueURL:  getEnv("CONVERSATION_QUEUE_URL", ""),
		ConversationJobsTable: getEnv("CONVERSATION_JOBS_TABLE", "conversation_jobs"),

		AIProvider:       strings.ToLower(strings.TrimSpace(getEnv("AI_PROVIDER", "auto"))),
		BedrockModelID:   getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:    getEnv("GEMINI_MODEL_ID", "gemini-1.5-flash"),
		AIMinInterval:    getEnvAsDuration("AI_MIN_INTERVAL", 1500*time.Millisecond),
		AIMaxAttempts:    getEnvAsInt("AI_MAX_ATTEMPTS", 3),
		AIRetryBaseDelay: getEnvAsDuration("AI_RETRY_BASE_DELAY", 500*time.Millisecond),
		AICallTimeout:    getEnvAsDuration("AI_CALL_TIMEOUT", 30*time.Second),

		GraphBaseURL:           getEnv("GRAPH_BASE_URL", ""),
		WhatsAppVerifyToken:    getEnv("WHATSAPP_VERIFY_TOKEN", ""),
		WhatsAppAppSecret:      getEnv("WHATSAPP_APP_SECRET", ""),
		WhatsAppAccessToken:    getEnv("WHATSAPP_ACCESS_TOKEN", ""),
		WhatsAppPhoneNumberID:  getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
		WhatsAppShopMapJSON:    getEnv("WHATSAPP_SHOP_MAP_JSON", ""),
		InstagramVerifyToken:   getEnv("INSTAGRAM_VERIFY_TOKEN", ""),
		InstagramAppSecret:     getEnv("INSTAGRAM_APP_SECRET", ""),
		InstagramAccessToken:   getEnv("INSTAGRAM_ACCESS_TOKEN", ""),
		InstagramShopMapJSON:   getEnv("INSTAGRAM_SHOP_MAP_JSON", ""),
		MessengerVerifyToken:   getEnv("MESSENGER_VERIFY_TOKEN", ""),
		MessengerAppSecret:     getEnv("MESSENGER_APP_SECRET", ""),
		MessengerAccessToken:   getEnv("MESSENGER_ACCESS_TOKEN", ""),
		MessengerShopMapJSON:   getEnv("MESSENGER_SHOP_MAP_JSON", ""),
		DefaultShopID:          getEnv("DEFAULT_SHOP_ID", ""),
		OutboundRequestTimeout: getEnvAsDuration("OUTBOUND_REQUEST_TIMEOUT", 10*time.Second),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		DashboardJWTSecret: getEnv("DASHBOARD_JWT_SECRET", ""),

		BillingWebhookSecret: getEnv("BILLING_WEBHOOK_SECRET", ""),
		BillingSweepInterval: getEnvAsDuration("BILLING_SWEEP_INTERVAL", time.Hour),
		BillingPeriodDays:    getEnvAsInt("BILLING_PERIOD_DAYS", 30),

		OutboxBatchSize: getEnvAsInt("OUTBOX_BATCH_SIZE", 50),
		OutboxInterval:  getEnvAsDuration("OUTBOX_INTERVAL", 2*time.Second),

		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "auto"))),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Tajir"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
		SESFromName:       getEnv("SES_FROM_NAME", "Tajir"),

		ArchiveBucket: getEnv("ARCHIVE_BUCKET", ""),

		RateLimitPerSecond: getEnvAsFloat("RATE_LIMIT_PER_SECOND", 20),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 40),
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", ""),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
