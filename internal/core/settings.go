package core

import (
	"context"
	"fmt"
	"log"
	"sync"

	"armada.cl/asesor-compras/internal/store"
)

// Backend keys of the admin_settings table. Each typed field maps to exactly
// one key; values arriving under any other key are ignored on load and
// rejected on update.
const (
	KeyWelcomeTitle    = "welcome_title"
	KeyChatbotGreeting = "chatbot_greeting"
	KeyLogoURL         = "logo_url"
	KeyChatbotAvatar   = "chatbot_avatar"
	KeyAuthEnabled     = "auth_enabled"
	KeyUserPassword    = "user_password"
	KeyFlowiseAPIURL   = "flowise_api_url"
	KeyFlowiseAPIKey   = "flowise_api_key"
)

// AppSettings is the typed view over the flat key-value table.
type AppSettings struct {
	WelcomeText   string
	Greeting      string
	LogoURL       string
	AvatarURL     string
	RequireAuth   bool
	UserPassword  string
	FlowiseAPIURL string
	FlowiseAPIKey string
}

func defaultSettings() AppSettings {
	return AppSettings{
		WelcomeText: "Bienvenido al Sistema de Asesoría en Compras Públicas de la Armada de Chile",
		Greeting:    "¡Hola! Soy tu asistente especializado en compras públicas. ¿En qué puedo ayudarte hoy?",
		LogoURL:     "/logo-armada-chile.png",
		AvatarURL:   "/placeholder-lwm7t.png",
	}
}

// SettingsService owns the process-wide settings copy. The store may be nil
// when persistence is not configured; the service then serves defaults and
// keeps admin edits in memory only.
type SettingsService struct {
	store *store.Store

	mu      sync.RWMutex
	current AppSettings
}

func NewSettingsService(st *store.Store) *SettingsService {
	return &SettingsService{
		store:   st,
		current: defaultSettings(),
	}
}

// Load fetches every settings row and overlays known keys onto the defaults.
// It never fails the caller: on any store error the defaults stand.
func (s *SettingsService) Load(ctx context.Context) {
	if s.store == nil {
		return
	}

	values, err := s.store.GetAllSettings(ctx)
	if err != nil {
		log.Printf("Error loading admin settings, keeping defaults: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for key, value := range values {
		s.applyLocked(key, value)
	}
}

// Snapshot returns a copy of the current settings.
func (s *SettingsService) Snapshot() AppSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update applies one key-value pair to the in-memory settings and upserts the
// backing row. The in-memory flip happens first so an auth_enabled change
// re-gates live sessions even if the write then fails; the store error is
// returned to the caller untouched, with no retry.
func (s *SettingsService) Update(ctx context.Context, key, value string) error {
	if !knownSettingKey(key) {
		return fmt.Errorf("unknown setting key: %s", key)
	}

	s.mu.Lock()
	s.applyLocked(key, value)
	s.mu.Unlock()

	if s.store == nil {
		log.Printf("Persistence disabled, setting %s kept in memory only", key)
		return nil
	}
	return s.store.UpsertSetting(ctx, key, value)
}

func knownSettingKey(key string) bool {
	switch key {
	case KeyWelcomeTitle, KeyChatbotGreeting, KeyLogoURL, KeyChatbotAvatar,
		KeyAuthEnabled, KeyUserPassword, KeyFlowiseAPIURL, KeyFlowiseAPIKey:
		return true
	}
	return false
}

func (s *SettingsService) applyLocked(key, value string) {
	switch key {
	case KeyWelcomeTitle:
		s.current.WelcomeText = value
	case KeyChatbotGreeting:
		s.current.Greeting = value
	case KeyLogoURL:
		s.current.LogoURL = value
	case KeyChatbotAvatar:
		s.current.AvatarURL = value
	case KeyAuthEnabled:
		s.current.RequireAuth = value == "true"
	case KeyUserPassword:
		s.current.UserPassword = value
	case KeyFlowiseAPIURL:
		s.current.FlowiseAPIURL = value
	case KeyFlowiseAPIKey:
		s.current.FlowiseAPIKey = value
	}
}
