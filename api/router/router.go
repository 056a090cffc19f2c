package router

import (
	"log/slog"
	"net/http"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	bootstrap "github.com/tbeaudouin05/stripe-checkout-relay/api/bootstrap"
	"github.com/tbeaudouin05/stripe-checkout-relay/api/config"
	"github.com/tbeaudouin05/stripe-checkout-relay/api/middleware"
	stripeapp "github.com/tbeaudouin05/stripe-checkout-relay/api/services/stripe/app"
	"github.com/tbeaudouin05/stripe-checkout-relay/api/services/stripe/handler"
)

// Options configures New.
type Options struct {
	// AdminAPIKey guards /admin/. Empty disables those routes.
	AdminAPIKey   string
	AllowedOrigin string
	Health        *health.Server
	Logger        *slog.Logger
}

// NewRouter returns the central HTTP router for the API, wired from the
// process-wide bootstrap.
func NewRouter() http.Handler {
	// Non-fatal here; routes that need Stripe fail with 500 instead.
	if err := bootstrap.Ensure(); err != nil {
		slog.Error("bootstrap ensure failed", "err", err)
	}

	opts := Options{AllowedOrigin: "*", Health: bootstrap.GetHealthServer(), Logger: slog.Default()}
	if cfg := config.AppConfig; cfg != nil {
		opts.AdminAPIKey = cfg.AdminAPIKey
		opts.AllowedOrigin = cfg.AllowedOrigin()
	}
	return New(bootstrap.GetStripeService(), opts)
}

// New maps the Stripe service onto HTTP. GET / answers from the health
// server; everything else goes through the grpc-gateway mux.
func New(svc stripeapp.Service, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	hs := opts.Health
	if hs == nil {
		hs = health.NewServer()
	}

	gwMux := runtime.NewServeMux(
		runtime.WithRoutingErrorHandler(handler.RoutingErrorHandler),
		runtime.WithMarshalerOption(runtime.MIMEWildcard, handler.Marshaler),
	)
	if err := handler.New(svc, logger).Register(gwMux); err != nil {
		logger.Error("failed to register routes", "err", err)
	}

	root := http.NewServeMux()
	root.Handle("GET /{$}", healthHandler(hs))
	root.Handle("/", gwMux)

	return middleware.Chain(root,
		middleware.RequestID,
		middleware.Recoverer(logger),
		middleware.RequestLogger(logger),
		middleware.CORS(opts.AllowedOrigin),
		middleware.RequireAdminKey(opts.AdminAPIKey, "/admin/"),
	)
}

func healthHandler(hs *health.Server) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := map[string]string{"status": "ok", "service": bootstrap.ServiceName}
		status := http.StatusOK
		resp, err := hs.Check(r.Context(), &healthpb.HealthCheckRequest{})
		if err != nil || resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
			body = map[string]string{"status": "unavailable"}
			status = http.StatusServiceUnavailable
		}
		b, _ := handler.Marshaler.Marshal(body)
		w.Header().Set("Content-Type", handler.Marshaler.ContentType(body))
		w.WriteHeader(status)
		_, _ = w.Write(b)
	})
}
