package server

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/qj0r9j0vc2/chat-relay/internal/adapter/handler"
	"github.com/qj0r9j0vc2/chat-relay/internal/adapter/handler/middleware"
	"github.com/qj0r9j0vc2/chat-relay/internal/infrastructure/config"
	"github.com/qj0r9j0vc2/chat-relay/internal/infrastructure/observability"
)

// Handlers holds all HTTP handlers.
type Handlers struct {
	Events        *handler.EventsHandler
	GenerateCheck *handler.GenerateCheckHandler
	Health        *handler.HealthHandler
	Ready         *handler.ReadyHandler
}

// RouterDeps holds the middleware collaborators the router wires in.
type RouterDeps struct {
	Verifier middleware.SignatureVerifier
	Metrics  *observability.Metrics
	Logger   *slog.Logger
}

// NewRouter creates the HTTP router with all handlers.
//
// The events endpoint gets its own inner chain: signature verification and
// rate limiting apply to platform deliveries only, not to health probes or
// metrics scrapes.
func NewRouter(cfg config.ServerConfig, handlers *Handlers, deps *RouterDeps) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/health", handlers.Health)
	mux.Handle("/ready", handlers.Ready)
	mux.Handle("/metrics", promhttp.Handler())

	if handlers.Events != nil {
		var events http.Handler = handlers.Events
		events = middleware.SlackAuth(deps.Verifier, deps.Logger)(events)
		events = middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst)(events)
		mux.Handle("/webhook/events", events)
		// The platform is commonly configured with the bare host as the
		// request URL; serve deliveries on the root path too.
		mux.Handle("/", events)
	}

	if cfg.GenerateCheck && handlers.GenerateCheck != nil {
		mux.Handle("/generate-check", handlers.GenerateCheck)
	}

	// Apply middleware stack
	var h http.Handler = mux
	if deps.Metrics != nil {
		h = middleware.Observability(deps.Metrics)(h)
	}
	h = middleware.RequestID(h)
	h = middleware.Logging(deps.Logger)(h)
	h = middleware.Recovery(deps.Logger)(h)

	return h
}
