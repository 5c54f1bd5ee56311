package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/acredia/acredia/pkg/httputil"
	"github.com/acredia/acredia/pkg/identity"
	"github.com/acredia/acredia/pkg/observability"
)

// Server assembles the router and middleware stack
type Server struct {
	handler http.Handler
}

// NewServer builds the HTTP surface. Auth runs in optional mode: the
// gate, not the transport, decides what anonymous callers may do (which
// is nothing, but uniformly so).
func NewServer(handlers *Handlers, auth *identity.AuthMiddleware, logger *observability.Logger, metrics *observability.Metrics) *Server {
	router := mux.NewRouter()
	handlers.RegisterRoutes(router)

	if metrics != nil {
		router.Use(func(next http.Handler) http.Handler {
			return metrics.InstrumentHandler("api", next)
		})
	}

	var handler http.Handler = router
	handler = auth.Handler(handler)
	handler = httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(logger),
		httputil.RecoveryMiddleware(logger),
	)(handler)

	// Outermost so every request gets a server span. A no-op until
	// InitOTel installs a tracer provider.
	handler = otelhttp.NewHandler(handler, "acredia.api")

	return &Server{handler: handler}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
