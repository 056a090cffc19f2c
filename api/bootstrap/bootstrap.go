package bootstrap

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"google.golang.org/grpc/health"

	"github.com/tbeaudouin05/stripe-checkout-relay/api/config"
	stripeapp "github.com/tbeaudouin05/stripe-checkout-relay/api/services/stripe/app"
	stripegw "github.com/tbeaudouin05/stripe-checkout-relay/api/services/stripe/gateway/stripe"
)

// ServiceName is reported by the health endpoints.
const ServiceName = "stripe-checkout-relay"

var stripeService stripeapp.Service
var healthServer = health.NewServer()
var initOnce sync.Once
var initErr error

// Init loads config, configures logging, and wires the Stripe service.
func Init() error {
	// If a service has already been injected (e.g., tests), do not override it.
	if stripeService != nil {
		return nil
	}
	var err error
	if config.AppConfig == nil {
		config.AppConfig, err = config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	}
	cfg := config.AppConfig

	logger := NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if cfg.AdminAPIKey == "" {
		logger.Warn("ADMIN_API_KEY is not set; admin endpoints are disabled")
	}

	processor := stripegw.New(stripegw.Config{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		Timeout:       cfg.StripeTimeout,
		Logger:        logger.With("component", "stripe"),
	})
	stripeService = stripeapp.NewService(processor, stripeapp.Options{
		FrontendURL: cfg.RedirectBaseURL(),
		Currency:    cfg.Currency,
		Logger:      logger,
	})
	return nil
}

// NewLogger returns a JSON logger on stdout at the given level
// (debug, info, warn, error). Unknown levels fall back to info.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func GetStripeService() stripeapp.Service { return stripeService }

// SetStripeService allows tests to inject a stub implementation.
func SetStripeService(s stripeapp.Service) { stripeService = s }

// GetHealthServer returns the process-wide health server shared by the gRPC
// listener and GET /.
func GetHealthServer() *health.Server { return healthServer }

// Ensure runs Init() once per process and returns any initialization error.
func Ensure() error {
	initOnce.Do(func() {
		initErr = Init()
	})
	return initErr
}
