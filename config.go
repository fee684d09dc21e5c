package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	awspkg "github.com/yashrajoria/shopswift-api/pkg/aws"
)

// Secret names read when AWS_USE_SECRETS=true. Each holds a JSON object
// keyed by the env var it overrides.
const (
	secretDBCredentials = "shopswift/DB_CREDENTIALS"
	secretAuth          = "shopswift/AUTH"
	secretPayments      = "shopswift/PAYMENT_PROVIDERS"
)

type Config struct {
	Env            string
	Port           string
	RequestTimeout time.Duration
	CORSOrigins    string
	AutoMigrate    bool

	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string

	RedisURL string

	JWTSecret      string
	AccessTokenTTL time.Duration
	AdminEmails    []string

	ExchangeRateURL    string
	ExchangeRateAPIKey string
	ExchangeRateTTL    time.Duration
	ProviderTimeout    time.Duration

	RazorpayURL           string
	RazorpayKeyID         string
	RazorpayKeySecret     string
	RazorpayWebhookSecret string

	PolarURL           string
	PolarAccessToken   string
	PolarProductID     string
	PolarSuccessURL    string
	PolarWebhookSecret string

	UseSecrets         bool
	SNSTopicArn        string
	CloudWatchEnabled  bool
	CloudWatchLogGroup string
	MetricsNamespace   string

	OTLPEndpoint string
	OTLPInsecure bool
}

// secretSource is satisfied by *awspkg.SecretsClient.
type secretSource interface {
	GetSecretMap(ctx context.Context, name string) (map[string]string, error)
}

func LoadConfig(ctx context.Context) (*Config, error) {
	cfg := &Config{
		Env:            getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		RequestTimeout: getDuration("REQUEST_TIMEOUT", 30*time.Second),
		CORSOrigins:    getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		AutoMigrate:    getBool("AUTO_MIGRATE", true),

		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone: getEnv("POSTGRES_TIMEZONE", "Asia/Kolkata"),

		RedisURL: os.Getenv("REDIS_URL"),

		JWTSecret:      os.Getenv("JWT_SECRET"),
		AccessTokenTTL: getDuration("ACCESS_TOKEN_TTL", 24*time.Hour),
		AdminEmails:    splitList(os.Getenv("ADMIN_EMAILS")),

		ExchangeRateURL:    getEnv("EXCHANGE_RATE_API_URL", "https://v6.exchangerate-api.com"),
		ExchangeRateAPIKey: os.Getenv("EXCHANGE_RATE_API_KEY"),
		ExchangeRateTTL:    getDuration("EXCHANGE_RATE_TTL", time.Hour),
		ProviderTimeout:    getDuration("PROVIDER_TIMEOUT", 10*time.Second),

		RazorpayURL:           getEnv("RAZORPAY_API_URL", "https://api.razorpay.com"),
		RazorpayKeyID:         os.Getenv("RAZORPAY_KEY_ID"),
		RazorpayKeySecret:     os.Getenv("RAZORPAY_KEY_SECRET"),
		RazorpayWebhookSecret: os.Getenv("RAZORPAY_WEBHOOK_SECRET"),

		PolarURL:           getEnv("POLAR_API_URL", "https://api.polar.sh"),
		PolarAccessToken:   os.Getenv("POLAR_ACCESS_TOKEN"),
		PolarProductID:     os.Getenv("POLAR_PRODUCT_ID"),
		PolarSuccessURL:    getEnv("POLAR_SUCCESS_URL", "http://localhost:3000/checkout/success"),
		PolarWebhookSecret: os.Getenv("POLAR_WEBHOOK_SECRET"),

		UseSecrets:         getBool("AWS_USE_SECRETS", false),
		SNSTopicArn:        os.Getenv("SNS_TOPIC_ARN"),
		CloudWatchEnabled:  getBool("CLOUDWATCH_ENABLED", false),
		CloudWatchLogGroup: getEnv("CLOUDWATCH_LOG_GROUP", "/shopswift/api"),
		MetricsNamespace:   getEnv("METRICS_NAMESPACE", "ShopSwift"),

		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTLPInsecure: getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
	}

	if cfg.UseSecrets {
		awsCfg, err := awspkg.LoadAWSConfig(ctx)
		if err != nil {
			return nil, err
		}
		applySecrets(ctx, cfg, awspkg.NewSecretsClient(awsCfg))
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applySecrets overrides env values with any non-empty secret entries.
// Missing secrets leave the env configuration in place.
func applySecrets(ctx context.Context, cfg *Config, src secretSource) {
	overrides := map[string][]struct {
		key string
		dst *string
	}{
		secretDBCredentials: {
			{"POSTGRES_USER", &cfg.PostgresUser},
			{"POSTGRES_PASSWORD", &cfg.PostgresPassword},
			{"POSTGRES_DB", &cfg.PostgresDB},
			{"POSTGRES_HOST", &cfg.PostgresHost},
			{"POSTGRES_PORT", &cfg.PostgresPort},
		},
		secretAuth: {
			{"JWT_SECRET", &cfg.JWTSecret},
		},
		secretPayments: {
			{"RAZORPAY_KEY_ID", &cfg.RazorpayKeyID},
			{"RAZORPAY_KEY_SECRET", &cfg.RazorpayKeySecret},
			{"RAZORPAY_WEBHOOK_SECRET", &cfg.RazorpayWebhookSecret},
			{"POLAR_ACCESS_TOKEN", &cfg.PolarAccessToken},
			{"POLAR_WEBHOOK_SECRET", &cfg.PolarWebhookSecret},
			{"EXCHANGE_RATE_API_KEY", &cfg.ExchangeRateAPIKey},
		},
	}

	for name, fields := range overrides {
		m, err := src.GetSecretMap(ctx, name)
		if err != nil {
			continue
		}
		for _, f := range fields {
			if v, ok := m[f.key]; ok && v != "" {
				*f.dst = v
			}
		}
	}
}

func (c *Config) validate() error {
	if c.PostgresUser == "" || c.PostgresDB == "" || c.PostgresHost == "" {
		return fmt.Errorf("database config incomplete")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.IsProduction() && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
