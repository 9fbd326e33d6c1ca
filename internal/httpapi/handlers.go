// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crewdeck Contributors

package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"

	"github.com/samber/oops"

	"github.com/crewdeck/crewdeck/internal/identity"
	"github.com/crewdeck/crewdeck/pkg/errutil"
)

// resetRequestMessage is the single answer for every reset request,
// matching or not, so account existence never leaks.
const resetRequestMessage = "If an account matches, a reset link has been sent."

// ResetNotifier hands a freshly minted reset token to the mail
// collaborator. The token itself never appears in an HTTP response.
type ResetNotifier func(ctx context.Context, identifier, token string)

// AuthMetrics records authentication outcomes. Wired up in the serve
// command; a nil recorder disables metrics.
type AuthMetrics interface {
	RecordLogin(result string)
	RecordRefreshRejected()
}

// Handler serves the authentication REST endpoints.
type Handler struct {
	auth       *identity.Service
	resets     *identity.PasswordResetService
	notifyRest ResetNotifier
	metrics    AuthMetrics
	logger     *slog.Logger
}

// NewHandler creates a Handler. The notifier may be nil; reset tokens are
// then dropped after logging, which only makes sense in development.
func NewHandler(auth *identity.Service, resets *identity.PasswordResetService, notifier ResetNotifier, logger *slog.Logger) (*Handler, error) {
	if auth == nil {
		return nil, oops.Errorf("identity service is required")
	}
	if resets == nil {
		return nil, oops.Errorf("password reset service is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		auth:       auth,
		resets:     resets,
		notifyRest: notifier,
		logger:     logger,
	}, nil
}

// SetMetrics registers an outcome recorder. Must be called before the
// handler starts serving.
func (h *Handler) SetMetrics(m AuthMetrics) {
	h.metrics = m
}

// PublicPaths are the routes reachable without a token.
func (h *Handler) PublicPaths() []string {
	return []string{
		"/auth/login",
		"/auth/refresh",
		"/auth/register",
		"/auth/reset-request",
		"/auth/reset-confirm",
	}
}

// Register mounts the auth routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/login", h.handleLogin)
	mux.HandleFunc("POST /auth/refresh", h.handleRefresh)
	mux.HandleFunc("POST /auth/logout", h.handleLogout)
	mux.HandleFunc("POST /auth/register", h.handleRegister)
	mux.HandleFunc("GET /auth/profile", h.handleProfile)
	mux.HandleFunc("POST /auth/check-session", h.handleCheckSession)
	mux.HandleFunc("POST /auth/reset-request", h.handleResetRequest)
	mux.HandleFunc("POST /auth/reset-confirm", h.handleResetConfirm)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.auth.Login(r.Context(), req.Username, req.Password, clientIP(r), r.UserAgent())
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordLogin("failure")
		}
		h.writeError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordLogin("success")
	}
	writeJSON(w, http.StatusOK, result)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.auth.Refresh(r.Context(), req.RefreshToken, clientIP(r), r.UserAgent())
	if err != nil {
		// Reused and rotated outcomes are recorded inside the identity
		// service, where the decision is made.
		if h.metrics != nil {
			h.metrics.RecordRefreshRejected()
		}
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleLogout acknowledges the logout. Sessions have a soft lifecycle
// and are never deleted here; the client discards its tokens.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if _, ok := PrincipalFrom(r.Context()); !ok {
		writeUnauthorized(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

type registerRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	profile, err := h.auth.Register(r.Context(), identity.RegisterParams{
		Username:    req.Username,
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Password:    req.Password,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, profile)
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFrom(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	profile, err := h.auth.Profile(r.Context(), principal.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *Handler) handleCheckSession(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFrom(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	profile, err := h.auth.Profile(r.Context(), principal.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]identity.Profile{"user": profile})
}

type resetRequestBody struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Username   string `json:"username"`
}

func (h *Handler) handleResetRequest(w http.ResponseWriter, r *http.Request) {
	var req resetRequestBody
	if !decodeJSON(w, r, &req) {
		return
	}

	identifier := req.Identifier
	if identifier == "" {
		identifier = req.Email
	}
	if identifier == "" {
		identifier = req.Username
	}

	token, err := h.resets.RequestReset(r.Context(), identifier)
	if err != nil {
		// Everything except a malformed request still answers generically;
		// the failure only shows up in the logs.
		if errutil.Code(err) == "RESET_IDENTIFIER_EMPTY" {
			h.writeError(w, err)
			return
		}
		errutil.LogError(h.logger, "reset request failed", err)
	}
	if token != "" {
		if h.notifyRest != nil {
			h.notifyRest(r.Context(), identifier, token)
		} else {
			h.logger.Debug("reset token minted without a notifier")
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": resetRequestMessage})
}

type resetConfirmRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

func (h *Handler) handleResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req resetConfirmRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.resets.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

// writeError maps an error's code to an HTTP status and a safe JSON body.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusForCode(errutil.Code(err))
	if status == http.StatusInternalServerError {
		errutil.LogError(h.logger, "request failed", err)
		writeJSON(w, status, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusForCode translates the error taxonomy into HTTP statuses.
func statusForCode(code string) int {
	switch code {
	case "AUTH_INVALID_CREDENTIALS", "TOKEN_INVALID":
		return http.StatusUnauthorized
	case "AUTH_ACCOUNT_INACTIVE", "AUTH_ACCOUNT_LOCKED":
		return http.StatusForbidden
	case "AUTH_INVALID_USERNAME", "AUTH_INVALID_ROLE", "AUTH_EMPTY_PASSWORD",
		"RESET_TOKEN_INVALID", "RESET_TOKEN_EMPTY", "RESET_PASSWORD_EMPTY",
		"RESET_IDENTIFIER_EMPTY":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON parses the request body, answering 400 on malformed input.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Debug("response write failed", "error", err)
	}
}

// clientIP extracts the peer address without the port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
