package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"staybook/internal/auth"
	"staybook/internal/config"
	"staybook/internal/logging"
	"staybook/internal/metrics"
	"staybook/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Services is what both transports call into.
type Services struct {
	Reservations *service.ReservationService
	Inventory    *service.InventoryService
	Gate         *auth.Gate
	// Ready backs /readyz; nil means always ready.
	Ready func(ctx context.Context) error
}

// HTTPServer exposes the reservation and inventory API over JSON.
type HTTPServer struct {
	cfg    config.APIConfig
	svc    Services
	server *http.Server
	mux    *http.ServeMux
	log    zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, svc Services, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		cfg: cfg,
		svc: svc,
		mux: http.NewServeMux(),
		log: logging.Component(logger, "http"),
	}
	srv.routes()

	httpAuth := NewHTTPAuth(svc.Gate, newRateLimiter(cfg.RateLimit))
	handler := srv.loggingMiddleware(httpAuth.Wrap(srv.mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	return srv
}

func (s *HTTPServer) routes() {
	s.handle("GET /healthz", s.handleHealth)
	s.handle("GET /readyz", s.handleReady)

	s.handle("POST /api/v1/reservations", s.handleCreateReservation)
	s.handle("GET /api/v1/reservations", s.handleListReservations)
	s.handle("GET /api/v1/reservations/export", s.handleExportReservations)
	s.handle("PATCH /api/v1/reservations/{id}/cancel", s.handleCancelReservation)
	s.handle("GET /api/v1/rooms/{id}/booked-dates", s.handleBookedDates)

	s.handle("GET /api/v1/accommodations", s.handleListAccommodations)
	s.handle("POST /api/v1/accommodations", s.handleCreateAccommodation)
	s.handle("GET /api/v1/accommodations/{id}", s.handleGetAccommodation)
	s.handle("PATCH /api/v1/accommodations/{id}", s.handleUpdateAccommodation)
	s.handle("DELETE /api/v1/accommodations/{id}", s.handleDeleteAccommodation)

	s.handle("GET /api/v1/rooms", s.handleListRooms)
	s.handle("POST /api/v1/rooms", s.handleCreateRoom)
	s.handle("GET /api/v1/rooms/{id}", s.handleGetRoom)
	s.handle("PATCH /api/v1/rooms/{id}", s.handleUpdateRoom)
	s.handle("DELETE /api/v1/rooms/{id}", s.handleDeleteRoom)
}

// handle registers fn and counts hits under its route pattern.
func (s *HTTPServer) handle(pattern string, fn http.HandlerFunc) {
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		metrics.IncHTTP(pattern)
		fn(w, r)
	})
}

// Handler returns the full middleware chain, used by tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Addr() string {
	return s.server.Addr
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.svc.Ready != nil {
		if err := s.svc.Ready(r.Context()); err != nil {
			s.log.Warn().Err(err).Msg("readiness check failed")
			writeError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		s.log.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// writeServiceError maps err onto a status and logs unexpected failures.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := httpStatus(err)
	if code == http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, code, "internal error")
		return
	}
	writeError(w, code, clientMessage(err))
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
