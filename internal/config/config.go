package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type SMTPConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	From     string
}

type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	RedisURL    string

	GatewayBaseURL     string
	GatewayAccessToken string
	GatewayTimeout     time.Duration
	CurrencyID         string

	// PlatformFeePercent is the platform's cut of every sale, 0-100.
	PlatformFeePercent decimal.Decimal

	FrontendURL string
	BackendURL  string

	SMTP SMTPConfig

	WahaBaseURL string
	WahaAPIKey  string

	KafkaBrokers []string
	KafkaTopic   string

	FirebaseCredentialsPath string
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("GATEWAY_BASE_URL", "https://api.mercadopago.com")
	v.SetDefault("GATEWAY_TIMEOUT", "10s")
	v.SetDefault("CURRENCY_ID", "BRL")
	v.SetDefault("PLATFORM_FEE_PERCENT", "3")
	v.SetDefault("WAHA_BASE_URL", "http://waha:3000")
	v.SetDefault("KAFKA_TOPIC", "payment.reconciled")
	v.SetDefault("FIREBASE_CREDENTIALS_PATH", "./firebase-service-account.json")

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	fee, err := decimal.NewFromString(v.GetString("PLATFORM_FEE_PERCENT"))
	if err != nil {
		return nil, fmt.Errorf("invalid PLATFORM_FEE_PERCENT: %w", err)
	}
	if fee.IsNegative() || fee.GreaterThan(decimal.NewFromInt(100)) {
		return nil, fmt.Errorf("PLATFORM_FEE_PERCENT must be between 0 and 100, got %s", fee)
	}

	timeout, err := time.ParseDuration(v.GetString("GATEWAY_TIMEOUT"))
	if err != nil {
		return nil, fmt.Errorf("invalid GATEWAY_TIMEOUT: %w", err)
	}

	var brokers []string
	for _, b := range strings.Split(v.GetString("KAFKA_BROKERS"), ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}

	return &Config{
		AppEnv:             v.GetString("APP_ENV"),
		Port:               v.GetString("PORT"),
		DatabaseURL:        v.GetString("DATABASE_URL"),
		RedisURL:           v.GetString("REDIS_URL"),
		GatewayBaseURL:     strings.TrimRight(v.GetString("GATEWAY_BASE_URL"), "/"),
		GatewayAccessToken: v.GetString("GATEWAY_ACCESS_TOKEN"),
		GatewayTimeout:     timeout,
		CurrencyID:         v.GetString("CURRENCY_ID"),
		PlatformFeePercent: fee,
		FrontendURL:        strings.TrimRight(v.GetString("FRONTEND_URL"), "/"),
		BackendURL:         strings.TrimRight(v.GetString("BACKEND_URL"), "/"),
		SMTP: SMTPConfig{
			Host:     v.GetString("SMTP_HOST"),
			Port:     v.GetString("SMTP_PORT"),
			User:     v.GetString("SMTP_USER"),
			Password: v.GetString("SMTP_PASS"),
			From:     v.GetString("EMAIL_FROM"),
		},
		WahaBaseURL:             v.GetString("WAHA_BASE_URL"),
		WahaAPIKey:              v.GetString("WAHA_API_KEY"),
		KafkaBrokers:            brokers,
		KafkaTopic:              v.GetString("KAFKA_TOPIC"),
		FirebaseCredentialsPath: v.GetString("FIREBASE_CREDENTIALS_PATH"),
	}, nil
}

// EarnerPercent is the instructor's fraction of a sale, e.g. 0.97 for a 3% platform fee.
func (c *Config) EarnerPercent() decimal.Decimal {
	hundred := decimal.NewFromInt(100)
	return hundred.Sub(c.PlatformFeePercent).Div(hundred)
}

// RequireDatabase returns an error when DATABASE_URL is missing.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is not set")
	}
	return nil
}
