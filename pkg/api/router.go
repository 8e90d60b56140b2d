package api

import (
	"github.com/gorilla/mux"

	"github.com/mesplatform/schedopt/pkg/metrics"
	"github.com/mesplatform/schedopt/pkg/ratelimit"
	"github.com/mesplatform/schedopt/pkg/tracing"
)

// RouterOptions selects the middleware wrapped around the API routes.
// Nil fields are skipped.
type RouterOptions struct {
	Metrics *metrics.Metrics
	Tracer  *tracing.Provider
	Limiter *ratelimit.Limiter
}

// NewRouter builds the HTTP router: API routes plus /metrics when metrics are enabled
func NewRouter(h *Handler, opts RouterOptions) *mux.Router {
	r := mux.NewRouter()

	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics.Handler()).Methods("GET")
	}

	sub := r.NewRoute().Subrouter()
	if opts.Tracer != nil {
		sub.Use(tracing.HTTPMiddleware(opts.Tracer))
	}
	if opts.Metrics != nil {
		sub.Use(opts.Metrics.Middleware)
	}
	if opts.Limiter != nil {
		sub.Use(opts.Limiter.Middleware(ratelimit.IPKeyFunc))
	}
	h.RegisterRoutes(sub)

	return r
}
