package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/viajai/server/internal/auth"
	"github.com/viajai/server/internal/billing"
	"github.com/viajai/server/internal/catalog"
	"github.com/viajai/server/internal/session"
	"github.com/viajai/server/internal/store"
	logx "github.com/viajai/server/pkg/logger"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleCheckAuth(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r)

	state, err := s.ctrl.StateFor(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}

	body := map[string]any{
		"authenticated":       state.Authenticated,
		"subscription_active": state.SubscriptionActive,
		"free_uses_remaining": state.FreeUsesRemaining,
	}
	if id.User != nil {
		body["user_id"] = id.User.ID
		body["email"] = id.User.Email
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleCheckUsage(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r)

	state, err := s.ctrl.StateFor(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"uses_remaining": state.FreeUsesRemaining,
		"requires_login": !state.Authenticated && state.FreeUsesRemaining <= 0,
	})
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		failure(w, http.StatusBadRequest, "invalid_request", msgIncompleteData)
		return
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		failure(w, http.StatusBadRequest, "weak_password", err.Error())
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(w, err)
		return
	}

	u, err := s.users.CreateUser(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)), hash, strings.TrimSpace(req.Name))
	if err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			failure(w, http.StatusBadRequest, "email_taken", msgEmailTaken)
			return
		}
		respondError(w, err)
		return
	}

	// Register logs the user in: bind the visitor's session token so the
	// conversation survives the registration boundary.
	id := identityFrom(r)
	if err := s.sessions.Bind(r.Context(), id.SessionID, u.ID); err != nil {
		respondError(w, err)
		return
	}

	logx.Info().Int64("userID", u.ID).Msg("user registered")
	writeJSON(w, http.StatusOK, map[string]any{
		"success":             true,
		"user_id":             u.ID,
		"email":               u.Email,
		"subscription_active": u.SubscriptionActive(time.Now()),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		failure(w, http.StatusBadRequest, "invalid_request", msgIncompleteData)
		return
	}

	u, err := s.users.UserByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		respondError(w, err)
		return
	}
	if u == nil || !auth.CheckPasswordHash(req.Password, u.PasswordHash) {
		failure(w, http.StatusUnauthorized, "invalid_credentials", msgInvalidCredentials)
		return
	}

	id := identityFrom(r)
	if err := s.sessions.Bind(r.Context(), id.SessionID, u.ID); err != nil {
		respondError(w, err)
		return
	}
	if err := s.users.TouchLastLogin(r.Context(), u.ID); err != nil {
		logx.Warn().Err(err).Int64("userID", u.ID).Msg("failed to record login time")
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":             true,
		"user_id":             u.ID,
		"email":               u.Email,
		"subscription_active": u.SubscriptionActive(time.Now()),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r)
	if err := s.sessions.Unbind(r.Context(), id.SessionID); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type chatRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		failure(w, http.StatusBadRequest, "invalid_request", msgEmptyMessage)
		return
	}

	res, err := s.ctrl.Submit(r.Context(), identityFrom(r), "", req.Message)
	if err != nil {
		respondError(w, err)
		return
	}
	s.writeDispatchResult(w, res)
}

// handleFeature accepts either the feature's structured wire payload or a raw
// {message} that is routed through the payload builder.
func (s *Server) handleFeature(w http.ResponseWriter, r *http.Request) {
	featureID := chi.URLParam(r, "id")
	desc := catalog.Resolve(featureID)

	var body map[string]string
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		failure(w, http.StatusBadRequest, "invalid_request", msgEmptyMessage)
		return
	}

	id := identityFrom(r)
	if raw, ok := body["message"]; ok && desc.ID != catalog.ChatID {
		res, err := s.ctrl.Submit(r.Context(), id, desc.ID, raw)
		if err != nil {
			respondError(w, err)
			return
		}
		s.writeDispatchResult(w, res)
		return
	}

	payload := make(map[string]string, len(desc.Fields))
	for _, f := range desc.Fields {
		payload[f] = body[f]
	}
	res, err := s.ctrl.SubmitPayload(r.Context(), id, desc.ID, payload)
	if err != nil {
		respondError(w, err)
		return
	}
	s.writeDispatchResult(w, res)
}

// writeDispatchResult echoes the server-confirmed quota to trial-tier callers;
// that echo is the only path by which the client's counter moves.
func (s *Server) writeDispatchResult(w http.ResponseWriter, res *session.Result) {
	body := map[string]any{
		"success":  true,
		"response": res.Response,
	}
	if !res.State.SubscriptionActive {
		body["free_uses_remaining"] = res.State.FreeUsesRemaining
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleUserUsage(w http.ResponseWriter, r *http.Request) {
	id := identityFrom(r)
	if id.User == nil {
		failure(w, http.StatusUnauthorized, "login_required", msgLoginRequired)
		return
	}

	entries, err := s.users.RecentUsage(r.Context(), id.User.ID, 50)
	if err != nil {
		respondError(w, err)
		return
	}

	usage := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		usage = append(usage, map[string]any{
			"feature":   e.Feature,
			"query":     e.Query,
			"timestamp": e.Timestamp.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "usage": usage})
}

func (s *Server) handleKiwifyWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		failure(w, http.StatusBadRequest, "invalid_request", msgTryAgain)
		return
	}

	err = s.webhook.Handle(r.Context(), payload, r.Header.Get(billing.SignatureHeader))
	if errors.Is(err, billing.ErrInvalidSignature) {
		failure(w, http.StatusUnauthorized, "invalid_signature", "Invalid signature")
		return
	}
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
