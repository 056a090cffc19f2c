package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// AppConfig holds the global application configuration
var AppConfig *Config

// Config holds the application configuration
type Config struct {
	StripeSecretKey     string `envconfig:"STRIPE_SECRET_KEY" required:"true" validate:"startswith=sk_|startswith=rk_"`
	StripeWebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET" required:"true"`
	// Base URL of the storefront. Used for checkout redirects and as the only
	// allowed CORS origin. Empty means any origin.
	FrontendURL string `envconfig:"FRONTEND_URL" validate:"omitempty,url"`
	// Empty disables the /admin routes entirely.
	AdminAPIKey   string        `envconfig:"ADMIN_API_KEY"`
	Currency      string        `envconfig:"CURRENCY" default:"usd" validate:"len=3,lowercase"`
	StripeTimeout time.Duration `envconfig:"STRIPE_TIMEOUT" default:"10s" validate:"gt=0"`
	LogLevel      string        `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	// Optional: base URL for running remote HTTP integration tests (e.g., https://api.example.com)
	IntegrationBaseURL string `envconfig:"INTEGRATION_BASE_URL"`
	// Server ports
	HTTPPort        string        `envconfig:"PORT" default:"8080"`
	GRPCPort        string        `envconfig:"GRPC_PORT" default:"50051"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s" validate:"gt=0"`
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	config := &Config{}
	if err := envconfig.Process("", config); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// loadDotEnv loads the nearest .env file from the current directory or any
// parent. Variables already present in the environment win.
func loadDotEnv() error {
	currentDir, _ := os.Getwd()
	for currentDir != "/" && currentDir != "." {
		envPath := filepath.Join(currentDir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			if err := godotenv.Load(envPath); err != nil {
				return fmt.Errorf("failed to load .env file: %v", err)
			}
			return nil
		}
		currentDir = filepath.Dir(currentDir)
	}
	return nil
}

// RedirectBaseURL is the base used to build checkout success and cancel URLs.
func (c *Config) RedirectBaseURL() string {
	if c.FrontendURL == "" {
		return DefaultFrontendURL
	}
	return c.FrontendURL
}

// AllowedOrigin is the CORS origin the router advertises.
func (c *Config) AllowedOrigin() string {
	if c.FrontendURL == "" {
		return "*"
	}
	return c.FrontendURL
}
