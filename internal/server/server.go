// Package server exposes the provenance ledger over HTTP/JSON. Every response
// body is an envelope of the form {success, data | error}.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/HerbTrace/internal/config"
	"github.com/dharsanguruparan/HerbTrace/internal/ledger"
	"github.com/dharsanguruparan/HerbTrace/internal/model"
	"github.com/dharsanguruparan/HerbTrace/internal/signing"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// Server hosts the HTTP handlers for the ledger.
type Server struct {
	cfg     *config.Config
	ledger  *ledger.Ledger
	signer  *signing.Signer
	limiter *rateLimiter
	log     *zap.SugaredLogger
}

// New creates a configured server.
func New(cfg *config.Config, l *ledger.Ledger, signer *signing.Signer, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Server{
		cfg:     cfg,
		ledger:  l,
		signer:  signer,
		limiter: newRateLimiter(cfg.RateLimit, cfg.RateBurst),
		log:     log,
	}
}

// Serve runs the HTTP server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.Handler(),
		ReadTimeout:       7 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}
	go s.limiter.janitor(ctx, 10*time.Minute)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()
	s.log.Infow("server listening", "addr", s.cfg.Address)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler returns the full middleware stack wrapped around the router.
func (s *Server) Handler() http.Handler {
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}).Handler(s.routes())
	return s.logging(corsHandler)
}

func (s *Server) routes() *httprouter.Router {
	router := httprouter.New()
	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "Route not found")
	})
	// httprouter sets the Allow header before calling this handler.
	router.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	router.PanicHandler = func(w http.ResponseWriter, r *http.Request, v interface{}) {
		s.log.Errorw("handler panic", "path", r.URL.Path, "panic", v)
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}

	router.GET("/api/blockchain/health", instrument("health", s.handleHealth))
	router.GET("/api/blockchain/network/status", instrument("network_status", s.handleNetworkStatus))
	router.POST("/api/blockchain/collection", instrument("collection", s.limiter.limit(s.handleRecord(model.EventCollection))))
	router.POST("/api/blockchain/processing", instrument("processing", s.limiter.limit(s.handleRecord(model.EventProcessing))))
	router.POST("/api/blockchain/testing", instrument("testing", s.limiter.limit(s.handleRecord(model.EventTesting))))
	router.GET("/api/blockchain/provenance/:productId", instrument("provenance", s.handleProvenance))
	router.GET("/api/blockchain/provenance/:productId/label", instrument("label", s.limiter.limit(s.handleLabel)))
	router.GET("/api/blockchain/verify", instrument("verify", s.handleVerify))
	router.GET("/api/blockchain/products/user/:userId", instrument("user_products", s.handleUserProducts))
	router.GET("/api/blockchain/analytics", instrument("analytics", s.handleAnalytics))
	router.Handler(http.MethodGet, "/metrics", promhttp.Handler())
	return router
}
