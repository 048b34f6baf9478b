package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"campsite/internal/config"
	"campsite/internal/domain"
	"campsite/internal/models"
	"campsite/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	availabilityPath = "/api/v1/availability"
	reservationsPath = "/api/v1/reservations"
)

// Reservations is the mutation surface the HTTP API drives.
type Reservations interface {
	domain.ReservationService
	Reservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
}

// Pinger reports storage readiness.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HTTPServer exposes the reservation API over JSON.
type HTTPServer struct {
	cfg          config.APIConfig
	reservations Reservations
	availability domain.AvailabilityReader
	policy       *service.PolicyValidator
	pinger       Pinger
	logger       *zerolog.Logger
	server       *http.Server
}

func NewHTTPServer(cfg config.APIConfig, reservations Reservations, availability domain.AvailabilityReader, policy *service.PolicyValidator, pinger Pinger, logger *zerolog.Logger) *HTTPServer {
	mux := http.NewServeMux()
	srv := &HTTPServer{
		cfg:          cfg,
		reservations: reservations,
		availability: availability,
		policy:       policy,
		pinger:       pinger,
		logger:       logger,
	}

	mux.HandleFunc(availabilityPath, srv.handleAvailability)
	mux.HandleFunc(reservationsPath, srv.handleReservations)
	mux.HandleFunc(reservationsPath+"/", srv.handleReservation)
	mux.HandleFunc("/healthz", srv.handleHealthz)
	mux.HandleFunc("/readyz", srv.handleReadyz)

	limiter := newRateLimiter(&srv.cfg)
	handler := loggingMiddleware(logger, limiter.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

// Handler returns the fully wrapped handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	query := r.URL.Query()
	start, err := parseOptionalDate(query.Get("start_date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	end, err := parseOptionalDate(query.Get("end_date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	dateRange, err := s.policy.ValidateAvailabilityQuery(start, end)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	availability, err := s.availability.GetAvailability(r.Context(), dateRange)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, availability)
}

type bookRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Email     string `json:"email"`
	Name      string `json:"name"`
}

type updateRequest struct {
	StartDate *string `json:"start_date"`
	EndDate   *string `json:"end_date"`
	Email     string  `json:"email"`
	Name      string  `json:"name"`
}

func (s *HTTPServer) handleReservations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body bookRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.StartDate) == "" || strings.TrimSpace(body.EndDate) == "" {
		writeError(w, http.StatusBadRequest, "start_date and end_date are required")
		return
	}

	start, err := models.ParseDate(strings.TrimSpace(body.StartDate))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}
	end, err := models.ParseDate(strings.TrimSpace(body.EndDate))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	id, err := s.reservations.Book(r.Context(), models.NewDateRange(start, end), strings.TrimSpace(body.Email), strings.TrimSpace(body.Name))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id.String()})
}

func (s *HTTPServer) handleReservation(w http.ResponseWriter, r *http.Request) {
	rawID := strings.TrimPrefix(r.URL.Path, reservationsPath+"/")
	if rawID == "" || strings.Contains(rawID, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	id, err := service.ParseReservationID(rawID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	switch r.Method {
	case http.MethodGet:
		res, err := s.reservations.Reservation(r.Context(), id)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	case http.MethodPut:
		s.updateReservation(w, r, id)
	case http.MethodDelete:
		result, err := s.reservations.Cancel(r.Context(), id)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) updateReservation(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var body updateRequest
	if !decodeBody(w, r, &body) {
		return
	}

	req := domain.UpdateRequest{Email: body.Email, Name: body.Name}
	var err error
	if body.StartDate != nil {
		if req.Start, err = parseOptionalDate(*body.StartDate); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if body.EndDate != nil {
		if req.End, err = parseOptionalDate(*body.EndDate); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	if err := s.reservations.Update(r.Context(), id, req); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id.String()})
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.pinger.PingContext(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("readiness check failed")
			writeError(w, http.StatusServiceUnavailable, "storage unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// writeDomainError maps the error taxonomy onto HTTP status codes. Anything
// unrecognized is an internal failure and its detail is logged, not returned.
func (s *HTTPServer) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeCodedError(w, http.StatusBadRequest, CodeValidation, err.Error())
	case errors.Is(err, domain.ErrDateConflict):
		writeCodedError(w, http.StatusConflict, CodeDateConflict, err.Error())
	case errors.Is(err, domain.ErrGuestConflict):
		writeCodedError(w, http.StatusConflict, CodeGuestConflict, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeCodedError(w, http.StatusNotFound, CodeNotFound, err.Error())
	default:
		s.logger.Error().Err(err).Msg("request failed")
		writeCodedError(w, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}

func parseOptionalDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	d, err := models.ParseDate(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid date format %q; expected YYYY-MM-DD", raw)
	}
	return &d, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, ErrorResponse{Error: message})
}

func writeCodedError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, ErrorResponse{Error: message, Code: code})
}
