// v0
// internal/httpapi/router.go
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/HashimCodeDev/STVE/internal/aggregation"
	"github.com/HashimCodeDev/STVE/internal/broadcast"
	"github.com/HashimCodeDev/STVE/internal/config"
	"github.com/HashimCodeDev/STVE/internal/httpapi/auth"
	"github.com/HashimCodeDev/STVE/internal/httpapi/ratelimit"
	"github.com/HashimCodeDev/STVE/internal/ingest"
	"github.com/HashimCodeDev/STVE/internal/metrics"
	"github.com/HashimCodeDev/STVE/internal/store"
	"github.com/HashimCodeDev/STVE/internal/tickets"
)

// Server bundles the engine's collaborators with the router built
// over them, generalizing an api.Server shape (which wires a store
// and a downstream client into one http.Server) to the diagnostic
// pipeline's five collaborators plus the live-feed hub.
type Server struct {
	cfg     config.Config
	log     *slog.Logger
	store   *store.Store
	ingest  *ingest.Ingestor
	tickets *tickets.Manager
	hub     *broadcast.Hub
	agg     *aggregation.Aggregator
	metrics *metrics.Registry
	limiter *ratelimit.Limiter
}

// New wires a Server from its collaborators. Call Handler to obtain the
// fully-decorated http.Handler to run.
func New(cfg config.Config, log *slog.Logger, st *store.Store, in *ingest.Ingestor, tm *tickets.Manager, hub *broadcast.Hub, agg *aggregation.Aggregator, reg *metrics.Registry) *Server {
	return &Server{
		cfg:     cfg,
		log:     log,
		store:   st,
		ingest:  in,
		tickets: tm,
		hub:     hub,
		agg:     agg,
		metrics: reg,
		limiter: ratelimit.New(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst),
	}
}

// Close releases resources held by the Server (the rate limiter's
// background refill goroutine).
func (s *Server) Close() {
	s.limiter.Close()
}

// Handler builds the full route table wrapped in the middleware
// chain, outermost first: panic-recovery ->
// structured access logging -> CORS -> rate limiting -> API-key/JWT
// auth -> route handler. gorilla/mux is used for path-variable routing
// ({sensorRef}, {ticketRef}), grounded on the pack's
// GVCUTV-NRG-CHAMP/mape/execute and Flamware-CapIot.influxDB routers,
// both of which route with mux rather than a bare http.ServeMux.
func (s *Server) Handler() (http.Handler, error) {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReadyz).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/live", s.handleLive).Methods(http.MethodGet)

	ingestionKeys := apiKeyMiddleware(s.cfg.APIKeys)
	r.Handle("/sensors", ingestionKeys(http.HandlerFunc(s.handleRegisterSensor))).Methods(http.MethodPost)
	r.Handle("/sensors/{sensorRef}/readings", ingestionKeys(http.HandlerFunc(s.handleIngestReading))).Methods(http.MethodPost)
	r.Handle("/sensors/{sensorRef}/readings/batch", ingestionKeys(http.HandlerFunc(s.handleIngestBatch))).Methods(http.MethodPost)

	jwtAuth, err := auth.JWTAuth(s.cfg.JWTSecret)
	if err != nil {
		return nil, err
	}
	dashboard := mux.MiddlewareFunc(jwtAuth)
	r.Handle("/sensors", negotiate(dashboard, s.handleListSensors)).Methods(http.MethodGet)
	r.Handle("/sensors/{sensorRef}", negotiate(dashboard, s.handleGetSensor)).Methods(http.MethodGet)
	r.Handle("/sensors/{sensorRef}", negotiate(dashboard, s.handleDeleteSensor)).Methods(http.MethodDelete)
	r.Handle("/sensors/{sensorRef}/trust-history", negotiate(dashboard, s.handleTrustHistory)).Methods(http.MethodGet)
	r.Handle("/dashboard/summary", negotiate(dashboard, s.handleDashboardSummary)).Methods(http.MethodGet)
	r.Handle("/dashboard/zones", negotiate(dashboard, s.handleZoneStatistics)).Methods(http.MethodGet)
	r.Handle("/tickets", negotiate(dashboard, s.handleListTickets)).Methods(http.MethodGet)
	r.Handle("/tickets/{ticketRef}", negotiate(dashboard, s.handleUpdateTicket)).Methods(http.MethodPatch)

	var handler http.Handler = r
	handler = rateLimitMiddleware(s.limiter)(handler)
	handler = cors.New(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-API-Key"},
		AllowCredentials: true,
	}).Handler(handler)
	handler = loggingMiddleware(s.log)(handler)
	handler = recoveryMiddleware(s.log)(handler)

	return handler, nil
}

// negotiate wraps handler with mw — a small helper so every
// dashboard/admin route shares one readable call site instead of
// repeating mw(http.HandlerFunc(handler)) everywhere.
func negotiate(mw mux.MiddlewareFunc, handler http.HandlerFunc) http.Handler {
	return mw(http.HandlerFunc(handler))
}

func apiKeyMiddleware(keys []string) mux.MiddlewareFunc {
	return auth.APIKeyAuth(keys)
}
