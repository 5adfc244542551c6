package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/chainwage/payroll_layer/internal/app/services/sessions"
	"github.com/chainwage/payroll_layer/internal/app/storage"
	"github.com/chainwage/payroll_layer/internal/middleware"
	"github.com/chainwage/payroll_layer/pkg/logger"
)

// authHandlers exposes the wallet authentication endpoints.
type authHandlers struct {
	sessions *sessions.Service
	users    storage.UserStore
	log      *logger.Logger
}

func newAuthHandlers(svc *sessions.Service, users storage.UserStore, log *logger.Logger) *authHandlers {
	if log == nil {
		log = logger.NewDefault("auth-api")
	}
	return &authHandlers{sessions: svc, users: users, log: log}
}

// nonce issues a signing challenge for an address.
func (h *authHandlers) nonce(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Address string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	nonce, message, err := h.sessions.IssueNonce(r.Context(), payload.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"nonce":   nonce,
		"message": message,
	})
}

// login verifies a signed challenge and opens a session.
func (h *authHandlers) login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Address   string `json:"address"`
		PublicKey string `json:"public_key"`
		Signature string `json:"signature"`
		Message   string `json:"message"`
		Nonce     string `json:"nonce"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	token, u, err := h.sessions.Login(r.Context(), payload.Address, payload.PublicKey, payload.Signature, payload.Message, payload.Nonce)
	if err != nil {
		status := http.StatusUnauthorized
		if !errors.Is(err, sessions.ErrInvalidSignature) && !errors.Is(err, sessions.ErrInvalidNonce) {
			status = http.StatusBadRequest
		}
		h.log.WithError(err).WithField("address", payload.Address).Warn("login failed")
		writeError(w, status, errors.New("authentication failed"))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(24 * time.Hour),
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  u,
	})
}

// logout revokes the current session.
func (h *authHandlers) logout(w http.ResponseWriter, r *http.Request) {
	if token := extractToken(r); token != "" {
		_ = h.sessions.Logout(r.Context(), token)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "auth_token",
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	w.WriteHeader(http.StatusNoContent)
}

// me returns the authenticated user.
func (h *authHandlers) me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, errors.New("authentication required"))
		return
	}
	u, err := h.users.GetUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusNotFound, errors.New("user not found"))
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func extractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); len(header) > 7 && header[:7] == "Bearer " {
		return header[7:]
	}
	if cookie, err := r.Cookie("auth_token"); err == nil {
		return cookie.Value
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
