// Package rest is the unary fallback for clients that cannot hold a
// websocket open. Start, speech, and end run through the same
// per-session command loop as the realtime path, so state stays
// consistent across both transports and a degraded client can resync
// later. Crossfire and audio exist only on the realtime channel.
package rest

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rostralabs/rostra/internal/errors"
	"github.com/rostralabs/rostra/internal/logging"
	"github.com/rostralabs/rostra/internal/registry"
	"github.com/rostralabs/rostra/internal/store"
)

// defaultMaxBodyBytes caps request bodies. Speeches are bounded well
// below this; anything larger is not a debate event.
const defaultMaxBodyBytes = 64 << 10

// Config carries the REST router's dependencies.
type Config struct {
	Registry *registry.Registry
	Logger   *logging.Logger

	// Store, when set, is pinged by the health endpoint.
	Store store.Store

	// Websocket, when set, is mounted at /ws so one listener serves
	// both transports.
	Websocket http.Handler

	// Clock overrides the time source for remaining-time stamps.
	Clock func() time.Time

	// MaxBodyBytes caps request bodies. Zero applies the default.
	MaxBodyBytes int64
}

// Handler holds the shared dependencies of all REST endpoints.
type Handler struct {
	reg     *registry.Registry
	store   store.Store
	log     *logging.Logger
	clock   func() time.Time
	started time.Time
}

// NewRouter assembles the chi mux: debate fallback endpoints, health,
// the Prometheus scrape handler, and optionally the websocket mount.
func NewRouter(cfg Config) (*chi.Mux, error) {
	if cfg.Registry == nil {
		return nil, errors.New("rest: registry is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NopLogger()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}

	h := &Handler{
		reg:     cfg.Registry,
		store:   cfg.Store,
		log:     cfg.Logger.WithComponent("rest"),
		clock:   clock,
		started: time.Now(),
	}

	r := chi.NewRouter()
	r.Use(metricsMiddleware)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(h.log))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", h.health)

	r.Route("/debate", func(r chi.Router) {
		r.Use(maxBodySize(maxBody))
		r.Post("/start", h.startDebate)
		r.Post("/speech", h.submitSpeech)
		r.Post("/end", h.endDebate)
		r.Get("/{id}", h.getDebate)
		r.Get("/{id}/transcript", h.getTranscript)
	})

	if cfg.Websocket != nil {
		r.Handle("/ws", cfg.Websocket)
	}
	return r, nil
}

// errorResponse is the REST shape of a rejected operation. Codes match
// the realtime channel's error events; State rides along on phase
// conflicts so a stale caller can fall back in line without a second
// round trip.
type errorResponse struct {
	Code    errors.Code    `json:"code"`
	Message string         `json:"message"`
	State   *stateResponse `json:"state,omitempty"`
}

// JSON writes a response body with the given status.
func (h *Handler) JSON(w http.ResponseWriter, status int, data any) {
	body, err := sonic.Marshal(data)
	if err != nil {
		h.log.Error("encoding response", "error", err.Error())
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

// Error translates a rejection into its wire code and message, masking
// anything not meant for clients, exactly as the realtime channel does.
func (h *Handler) Error(w http.ResponseWriter, err error, state *stateResponse) {
	code, msg := errors.Wire(err)
	resp := errorResponse{Code: code, Message: msg}
	if state != nil && errors.HasCode(err, errors.CodePhaseConflict) {
		resp.State = state
	}
	h.JSON(w, statusFor(code), resp)
}

// statusFor maps channel error codes onto HTTP statuses.
func statusFor(code errors.Code) int {
	switch code {
	case errors.CodeInvalidPayload, errors.CodePayloadTooLarge:
		return http.StatusBadRequest
	case errors.CodeUnknownSession:
		return http.StatusNotFound
	case errors.CodeUnknownParticipant:
		return http.StatusForbidden
	case errors.CodeNotYourTurn, errors.CodeInvalidPhaseForEvent, errors.CodePhaseConflict:
		return http.StatusConflict
	case errors.CodePersistenceFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decode reads and parses a request body.
func decode(r *http.Request, into any) error {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return errors.NewProtocolError(errors.CodePayloadTooLarge, "request body too large").WithCause(err)
	}
	if err := sonic.Unmarshal(data, into); err != nil {
		return errors.NewProtocolError(errors.CodeInvalidPayload, "malformed request body").WithCause(err)
	}
	return nil
}

// check reports one dependency's health probe.
type check struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status    string           `json:"status"`
	Sessions  int              `json:"sessions"`
	Uptime    string           `json:"uptime"`
	Checks    map[string]check `json:"checks,omitempty"`
	Timestamp string           `json:"timestamp"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	var checks map[string]check

	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		checks = make(map[string]check)
		begin := time.Now()
		if err := h.store.Ping(ctx); err != nil {
			checks["store"] = check{Status: "fail", Message: "backend unreachable"}
			status = "degraded"
			code = http.StatusServiceUnavailable
		} else {
			checks["store"] = check{Status: "pass", Latency: time.Since(begin).String()}
		}
	}

	h.JSON(w, code, healthResponse{
		Status:    status,
		Sessions:  h.reg.Resident(),
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		Checks:    checks,
		Timestamp: h.clock().UTC().Format(time.RFC3339),
	})
}
