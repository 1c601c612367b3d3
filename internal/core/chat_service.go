package core

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"armada.cl/asesor-compras/internal/store"
)

// Locally generated assistant-style replies for a failed send. Which one the
// user sees depends on whether an endpoint URL was ever configured.
const (
	notConfiguredMessage  = "El sistema no está configurado correctamente. Por favor, contacta al administrador."
	temporaryErrorMessage = "Lo siento, hay un problema temporal con el sistema. Por favor, intenta nuevamente en unos momentos."
)

// ChatService orchestrates sessions: settings-driven gating, login through
// the validator, message submission through the Flowise client, and
// best-effort persistence of each exchange.
type ChatService struct {
	store     *store.Store // may be nil, persistence then disabled
	settings  *SettingsService
	validator *UserValidator
	flowise   *FlowiseClient

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewChatService(st *store.Store, settings *SettingsService, validator *UserValidator, flowise *FlowiseClient) *ChatService {
	return &ChatService{
		store:     st,
		settings:  settings,
		validator: validator,
		flowise:   flowise,
		sessions:  make(map[string]*Session),
	}
}

// CreateSession mints a new session. When authentication is not required the
// transcript is seeded with the configured greeting right away; otherwise the
// greeting waits for a successful login.
func (s *ChatService) CreateSession() *Session {
	sess := &Session{ID: newSessionID()}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	s.ensureGreeting(sess)
	return sess
}

// Session returns nil for an unknown id.
func (s *ChatService) Session(id string) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id]
}

// Gated reports whether the session is still behind the login gate. It reads
// the live settings, so flipping auth_enabled re-gates unauthenticated
// sessions immediately.
func (s *ChatService) Gated(sess *Session) bool {
	return s.settings.Snapshot().RequireAuth && !sess.Authenticated()
}

func (s *ChatService) ensureGreeting(sess *Session) {
	if !s.Gated(sess) {
		sess.seedGreeting(s.settings.Snapshot().Greeting)
	}
}

// Login validates the credentials and, on success, binds the user to the
// session and clears the gate.
func (s *ChatService) Login(ctx context.Context, sess *Session, rut, password string) (*store.AppUser, error) {
	user, err := s.validator.Validate(ctx, rut, password)
	if err != nil {
		return nil, err
	}

	sess.bindUser(user)
	s.ensureGreeting(sess)
	return user, nil
}

// SubmitMessage runs one turn. Blank input and in-flight sessions are no-ops
// surfaced as ErrEmptyMessage / ErrSessionBusy; a gateway failure is not an
// error to the caller but a locally generated assistant message. Either way
// the send finishes with the in-flight flag cleared and exactly one new
// assistant entry appended.
func (s *ChatService) SubmitMessage(ctx context.Context, sess *Session, content string) (Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Message{}, ErrEmptyMessage
	}

	prior, err := sess.beginSend(content)
	if err != nil {
		return Message{}, err
	}

	settings := s.settings.Snapshot()
	reply, err := s.flowise.Ask(ctx, settings.FlowiseAPIURL, settings.FlowiseAPIKey, content, toTurns(prior))
	if err != nil {
		log.Printf("Error asking Flowise for session %s: %v", sess.ID, err)
		if settings.FlowiseAPIURL == "" {
			return sess.finishSend(notConfiguredMessage), nil
		}
		return sess.finishSend(temporaryErrorMessage), nil
	}

	assistant := sess.finishSend(reply)
	go s.logExchange(sess, content, reply)
	return assistant, nil
}

// logExchange persists the pair decoupled from the request path. Failures are
// logged and swallowed; the transcript is never rolled back.
func (s *ChatService) logExchange(sess *Session, question, answer string) {
	if s.store == nil {
		return
	}

	var userID *string
	if user := sess.User(); user != nil {
		userID = &user.Rut
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.store.SaveExchange(ctx, sess.ID, userID, question, answer); err != nil {
		log.Printf("Error saving conversation for session %s: %v", sess.ID, err)
	}
}

// History replays a session's persisted rows in chronological order.
func (s *ChatService) History(ctx context.Context, sessionID string) ([]store.ConversationRow, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.ChatHistory(ctx, sessionID)
}

func toTurns(messages []Message) []Turn {
	turns := make([]Turn, 0, len(messages))
	for _, msg := range messages {
		role := "assistant"
		if msg.IsUser {
			role = "user"
		}
		turns = append(turns, Turn{Role: role, Content: msg.Content})
	}
	return turns
}
