package core

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"armada.cl/asesor-compras/internal/store"
)

var (
	// ErrEmptyMessage rejects blank submissions before anything is appended.
	ErrEmptyMessage = errors.New("message content is empty")
	// ErrSessionBusy rejects a submission while another send is in flight.
	ErrSessionBusy = errors.New("a send is already in flight for this session")
)

// Message is one transcript entry, created per turn and never mutated.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	IsUser    bool      `json:"isUser"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is one chat session's server-held state: the transcript, the
// in-flight flag gating parallel sends, and the optionally bound user.
type Session struct {
	ID string

	mu       sync.Mutex
	messages []Message
	sending  bool
	user     *store.AppUser
	greeted  bool
}

// newSessionID combines wall-clock milliseconds with a short random suffix.
// Unique with overwhelming probability within one process lifetime; no
// cryptographic guarantee intended.
func newSessionID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("session_%d_%s", time.Now().UnixMilli(), suffix)
}

// Messages returns a copy of the transcript.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user != nil
}

func (s *Session) User() *store.AppUser {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

func (s *Session) Sending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sending
}

func (s *Session) bindUser(user *store.AppUser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
}

// seedGreeting appends the assistant greeting at most once per session.
func (s *Session) seedGreeting(greeting string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.greeted {
		return
	}
	s.greeted = true
	s.appendLocked(greeting, false)
}

// beginSend atomically claims the in-flight slot and appends the user message
// optimistically. It returns the transcript as it stood before the append,
// which becomes the context window for the upstream call.
func (s *Session) beginSend(content string) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sending {
		return nil, ErrSessionBusy
	}
	s.sending = true

	prior := make([]Message, len(s.messages))
	copy(prior, s.messages)
	s.appendLocked(content, true)
	return prior, nil
}

// finishSend appends the assistant-side message and releases the in-flight
// slot. It runs on the success and the failure path alike.
func (s *Session) finishSend(content string) Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sending = false
	return s.appendLocked(content, false)
}

func (s *Session) appendLocked(content string, isUser bool) Message {
	msg := Message{
		ID:        uuid.NewString(),
		Content:   content,
		IsUser:    isUser,
		Timestamp: time.Now(),
	}
	s.messages = append(s.messages, msg)
	return msg
}
