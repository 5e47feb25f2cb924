package apihttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"gas-billing/internal/auth"
	billinghttp "gas-billing/internal/billing/interfaces"
	"gas-billing/internal/observability/logging"
)

const healthTimeout = 2 * time.Second

// Pinger reports whether the database is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RouterConfig wires the HTTP surface.
type RouterConfig struct {
	Billing      *billinghttp.Handler
	DB           Pinger
	Logger       *zap.Logger
	JWTSecret    []byte
	AuthDisabled bool
	// Metrics defaults to the Prometheus default registry handler.
	Metrics http.Handler
}

// NewRouter builds the chi router with access logging, auth and the billing routes.
func NewRouter(cfg RouterConfig) (http.Handler, error) {
	if cfg.Billing == nil {
		return nil, errors.New("router: nil billing handler")
	}
	if !cfg.AuthDisabled && len(cfg.JWTSecret) == 0 {
		return nil, errors.New("router: empty jwt secret")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metricsHandler := cfg.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.AccessLog(logger))
	r.Use(middleware.Recoverer)
	if !cfg.AuthDisabled {
		policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
		r.Use(auth.NewMiddleware(cfg.JWTSecret, policy).Wrap)
	}

	r.Method(http.MethodGet, "/metrics", metricsHandler)
	r.Get("/healthz", healthHandler(cfg.DB))
	cfg.Billing.Register(r)
	return r, nil
}

func healthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				http.Error(w, "db unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
