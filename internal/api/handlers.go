package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"armada.cl/asesor-compras/internal/auth"
	"armada.cl/asesor-compras/internal/config"
	"armada.cl/asesor-compras/internal/core"
	"armada.cl/asesor-compras/internal/store"
)

type APIHandler struct {
	cfg         *config.Config
	settings    *core.SettingsService
	chatService *core.ChatService
}

func NewAPIHandler(cfg *config.Config, settings *core.SettingsService, cs *core.ChatService) *APIHandler {
	return &APIHandler{cfg: cfg, settings: settings, chatService: cs}
}

// AdminAuthMiddleware guards the settings routes with the token issued by
// AdminLoginHandler.
func (h *APIHandler) AdminAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if _, err := auth.ValidateAdminToken(h.cfg.JWTSecret, tokenString); err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type publicSettingsResponse struct {
	WelcomeText   string `json:"welcome_text"`
	Greeting      string `json:"chatbot_greeting"`
	LogoURL       string `json:"logo_url"`
	AvatarURL     string `json:"avatar_url"`
	RequireAuth   bool   `json:"require_auth"`
	APIConfigured bool   `json:"api_configured"`
}

// PublicSettingsHandler exposes the branding subset the chat page needs.
// The shared password and the upstream API key stay behind the admin routes.
func (h *APIHandler) PublicSettingsHandler(w http.ResponseWriter, r *http.Request) {
	s := h.settings.Snapshot()
	writeJSON(w, http.StatusOK, publicSettingsResponse{
		WelcomeText:   s.WelcomeText,
		Greeting:      s.Greeting,
		LogoURL:       s.LogoURL,
		AvatarURL:     s.AvatarURL,
		RequireAuth:   s.RequireAuth,
		APIConfigured: s.FlowiseAPIURL != "",
	})
}

type sessionStateResponse struct {
	SessionID     string         `json:"session_id"`
	AuthRequired  bool           `json:"auth_required"`
	Authenticated bool           `json:"authenticated"`
	Messages      []core.Message `json:"messages"`
}

func (h *APIHandler) sessionState(sess *core.Session) sessionStateResponse {
	return sessionStateResponse{
		SessionID:     sess.ID,
		AuthRequired:  h.chatService.Gated(sess),
		Authenticated: sess.Authenticated(),
		Messages:      sess.Messages(),
	}
}

func (h *APIHandler) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	sess := h.chatService.CreateSession()
	writeJSON(w, http.StatusCreated, h.sessionState(sess))
}

func (h *APIHandler) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	sess := h.chatService.Session(chi.URLParam(r, "sessionID"))
	if sess == nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, h.sessionState(sess))
}

type loginRequest struct {
	Rut      string `json:"rut"`
	Password string `json:"password"`
}

func (h *APIHandler) SessionLoginHandler(w http.ResponseWriter, r *http.Request) {
	sess := h.chatService.Session(chi.URLParam(r, "sessionID"))
	if sess == nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Rut == "" || req.Password == "" {
		http.Error(w, "RUT and password are required", http.StatusBadRequest)
		return
	}

	user, err := h.chatService.Login(r.Context(), sess, req.Rut, req.Password)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    map[string]string{"rut": user.Rut},
	})
}

type postMessageRequest struct {
	Content string `json:"content"`
}

func (h *APIHandler) PostMessageHandler(w http.ResponseWriter, r *http.Request) {
	sess := h.chatService.Session(chi.URLParam(r, "sessionID"))
	if sess == nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	if h.chatService.Gated(sess) {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	msg, err := h.chatService.SubmitMessage(r.Context(), sess, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrEmptyMessage):
			http.Error(w, "Message content cannot be empty", http.StatusBadRequest)
		case errors.Is(err, core.ErrSessionBusy):
			http.Error(w, "A message is already being processed", http.StatusConflict)
		default:
			log.Printf("Error submitting message for session %s: %v", sess.ID, err)
			http.Error(w, "Failed to process message", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, msg)
}

func (h *APIHandler) SessionHistoryHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	rows, err := h.chatService.History(r.Context(), sessionID)
	if err != nil {
		log.Printf("Error fetching history for session %s: %v", sessionID, err)
		http.Error(w, "Failed to fetch history", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []store.ConversationRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

type adminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AdminLoginHandler exchanges the admin credentials for a signed token. The
// comparison happens server-side only.
func (h *APIHandler) AdminLoginHandler(w http.ResponseWriter, r *http.Request) {
	var req adminLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if req.Username != h.cfg.AdminUsername || req.Password != h.cfg.AdminPassword {
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
			"success": false,
			"error":   "Credenciales de administrador incorrectas",
		})
		return
	}

	token, err := auth.GenerateAdminToken(h.cfg.JWTSecret, req.Username)
	if err != nil {
		log.Printf("Error generating admin token: %v", err)
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

type adminSettingsResponse struct {
	WelcomeText   string `json:"welcome_title"`
	Greeting      string `json:"chatbot_greeting"`
	LogoURL       string `json:"logo_url"`
	AvatarURL     string `json:"chatbot_avatar"`
	AuthEnabled   bool   `json:"auth_enabled"`
	UserPassword  string `json:"user_password"`
	FlowiseAPIURL string `json:"flowise_api_url"`
	FlowiseAPIKey string `json:"flowise_api_key"`
}

func (h *APIHandler) AdminSettingsHandler(w http.ResponseWriter, r *http.Request) {
	s := h.settings.Snapshot()
	writeJSON(w, http.StatusOK, adminSettingsResponse{
		WelcomeText:   s.WelcomeText,
		Greeting:      s.Greeting,
		LogoURL:       s.LogoURL,
		AvatarURL:     s.AvatarURL,
		AuthEnabled:   s.RequireAuth,
		UserPassword:  s.UserPassword,
		FlowiseAPIURL: s.FlowiseAPIURL,
		FlowiseAPIKey: s.FlowiseAPIKey,
	})
}

type updateSettingRequest struct {
	Value string `json:"value"`
}

// AdminUpdateSettingHandler upserts one key, mirroring the panel's
// per-field commit: each edited field arrives as its own request.
func (h *APIHandler) AdminUpdateSettingHandler(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var req updateSettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.settings.Update(r.Context(), key, req.Value); err != nil {
		log.Printf("Error updating setting %s: %v", key, err)
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}
