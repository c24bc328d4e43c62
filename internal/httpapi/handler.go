// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Noteful Contributors

// Package httpapi exposes registration, login and token endpoints as JSON
// over HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/samber/oops"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noteful/noteful-auth/internal/auth"
	"github.com/noteful/noteful-auth/internal/observability"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Metrics receives per-request outcomes. *observability.Metrics implements it.
type Metrics interface {
	ObserveRegistration(result string)
	ObserveLogin(result string)
	ObserveRequest(route, status string)
}

type nopMetrics struct{}

func (nopMetrics) ObserveRegistration(string)    {}
func (nopMetrics) ObserveLogin(string)           {}
func (nopMetrics) ObserveRequest(string, string) {}

// Options configures a Handler. Zero values fall back to slog.Default() and
// discarded metrics.
type Options struct {
	Logger  *slog.Logger
	Metrics Metrics
}

// Handler routes the public API.
type Handler struct {
	registrar *auth.Registrar
	issuer    *auth.Issuer
	logger    *slog.Logger
	metrics   Metrics
	mux       *http.ServeMux
	traced    http.Handler
}

// NewHandler wires the API routes.
func NewHandler(registrar *auth.Registrar, issuer *auth.Issuer, opts Options) (*Handler, error) {
	if registrar == nil {
		return nil, oops.Code("HTTPAPI_INVALID_DEPENDENCY").Errorf("registrar is required")
	}
	if issuer == nil {
		return nil, oops.Code("HTTPAPI_INVALID_DEPENDENCY").Errorf("issuer is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}

	h := &Handler{
		registrar: registrar,
		issuer:    issuer,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		mux:       http.NewServeMux(),
	}

	requireBearer := RequireBearer(issuer, h.writeError)
	h.mux.HandleFunc("POST /api/users", h.handleRegister)
	h.mux.HandleFunc("POST /api/login", h.handleLogin)
	h.mux.Handle("POST /api/refresh", requireBearer(http.HandlerFunc(h.handleRefresh)))
	h.mux.Handle("GET /api/me", requireBearer(http.HandlerFunc(h.handleMe)))
	h.traced = otelhttp.NewHandler(http.HandlerFunc(h.serve), "noteful-auth")
	return h, nil
}

// ServeHTTP traces the request and counts its response by route.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.traced.ServeHTTP(w, r)
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request) {
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	r.Body = http.MaxBytesReader(rec, r.Body, maxBodyBytes)
	h.mux.ServeHTTP(rec, r)

	route := r.Pattern
	if route == "" {
		route = "unmatched"
	}
	h.metrics.ObserveRequest(route, strconv.Itoa(rec.status))
	h.logger.DebugContext(r.Context(), "request handled",
		"method", r.Method,
		"route", route,
		"status", rec.status,
	)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// tokenResponse is the body of a successful login or refresh.
type tokenResponse struct {
	AuthToken string `json:"authToken"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := decodeBody(r, &payload); err != nil {
		h.metrics.ObserveRegistration(observability.ResultRejected)
		writeMessage(w, http.StatusBadRequest, "Request body must be a JSON object")
		return
	}

	user, err := h.registrar.Register(r.Context(), payload)
	if err != nil {
		h.metrics.ObserveRegistration(registrationResult(err))
		h.writeError(w, r, err)
		return
	}

	h.metrics.ObserveRegistration(observability.ResultSuccess)
	w.Header().Set("Location", "/api/users/"+user.ID.String())
	writeJSON(w, http.StatusCreated, user)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := decodeBody(r, &req); err != nil {
		h.metrics.ObserveLogin(observability.ResultRejected)
		writeMessage(w, http.StatusBadRequest, "Bad Request")
		return
	}

	token, err := h.issuer.Login(r.Context(), req)
	if err != nil {
		h.metrics.ObserveLogin(loginResult(err))
		h.writeError(w, r, err)
		return
	}

	h.metrics.ObserveLogin(observability.ResultSuccess)
	writeJSON(w, http.StatusOK, tokenResponse{AuthToken: token})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	token, err := h.issuer.Refresh(r.Context(), BearerToken(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AuthToken: token})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())
	writeJSON(w, http.StatusOK, claims.User)
}

func registrationResult(err error) string {
	var verr *auth.ValidationError
	switch {
	case errors.As(err, &verr):
		return observability.ResultRejected
	case errors.Is(err, auth.ErrDuplicateUsername):
		return observability.ResultDuplicate
	default:
		return observability.ResultError
	}
}

func loginResult(err error) string {
	switch {
	case errors.Is(err, auth.ErrMissingCredentials), errors.Is(err, auth.ErrInvalidCredentials):
		return observability.ResultRejected
	case errors.Is(err, auth.ErrTooManyAttempts):
		return observability.ResultThrottled
	default:
		return observability.ResultError
	}
}

// decodeBody reads one JSON value into dst. An empty body leaves dst unset.
func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return oops.Code("HTTPAPI_BAD_BODY").Wrap(err)
	}
	return nil
}
