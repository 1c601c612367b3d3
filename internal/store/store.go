package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // Postgres driver (hosted backend)
	_ "github.com/mattn/go-sqlite3" // SQLite driver (local deployments, tests)
)

// Store is the data access layer over the three application tables. Queries
// are written with ? placeholders and passed through sqlx.Rebind so the same
// code runs against sqlite3 and postgres.
type Store struct {
	db *sqlx.DB
}

func Open(driver, dataSourceName string) (*Store, error) {
	db, err := sqlx.Connect(driver, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err = store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS admin_settings (
        setting_key TEXT PRIMARY KEY,
        setting_value TEXT NOT NULL,
        updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS chat_conversations (
        id TEXT PRIMARY KEY, -- UUID
        user_id TEXT,
        session_id TEXT NOT NULL,
        message TEXT NOT NULL,
        message_type TEXT NOT NULL CHECK (message_type IN ('user', 'assistant')),
        created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
    );

    CREATE INDEX IF NOT EXISTS idx_chat_conversations_session
        ON chat_conversations (session_id, created_at);

    CREATE TABLE IF NOT EXISTS app_users (
        rut TEXT PRIMARY KEY,
        created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// Settings methods

// GetAllSettings returns every admin_settings row as a key -> value map.
func (s *Store) GetAllSettings(ctx context.Context) (map[string]string, error) {
	var rows []AdminSetting
	query := "SELECT setting_key, setting_value, updated_at FROM admin_settings"
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}

	settings := make(map[string]string, len(rows))
	for _, row := range rows {
		settings[row.Key] = row.Value
	}
	return settings, nil
}

// UpsertSetting inserts or overwrites one key-value row, stamping the update
// time. Last write wins; there is no version check.
func (s *Store) UpsertSetting(ctx context.Context, key, value string) error {
	query := s.db.Rebind(`
        INSERT INTO admin_settings (setting_key, setting_value, updated_at)
        VALUES (?, ?, ?)
        ON CONFLICT (setting_key) DO UPDATE
        SET setting_value = excluded.setting_value,
            updated_at = excluded.updated_at`)

	if _, err := s.db.ExecContext(ctx, query, key, value, time.Now()); err != nil {
		return fmt.Errorf("failed to upsert setting %s: %w", key, err)
	}
	return nil
}

// User methods

// GetUserByRut returns nil, nil when no row exists for the RUT.
func (s *Store) GetUserByRut(ctx context.Context, rut string) (*AppUser, error) {
	var user AppUser
	query := s.db.Rebind("SELECT rut, created_at FROM app_users WHERE rut = ?")
	err := s.db.GetContext(ctx, &user, query, rut)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

func (s *Store) CreateUser(ctx context.Context, rut string) (*AppUser, error) {
	now := time.Now()
	query := s.db.Rebind("INSERT INTO app_users (rut, created_at) VALUES (?, ?)")
	if _, err := s.db.ExecContext(ctx, query, rut, now); err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return &AppUser{Rut: rut, CreatedAt: now}, nil
}

// Conversation methods

// SaveExchange appends one question/answer pair as two rows, user side first.
// Callers treat this as best effort; a failed write never reaches the chat.
func (s *Store) SaveExchange(ctx context.Context, sessionID string, userID *string, question, answer string) error {
	if err := s.saveConversationRow(ctx, sessionID, userID, question, MessageTypeUser); err != nil {
		return err
	}
	return s.saveConversationRow(ctx, sessionID, userID, answer, MessageTypeAssistant)
}

func (s *Store) saveConversationRow(ctx context.Context, sessionID string, userID *string, message, messageType string) error {
	query := s.db.Rebind(`
        INSERT INTO chat_conversations (id, user_id, session_id, message, message_type, created_at)
        VALUES (?, ?, ?, ?, ?, ?)`)

	_, err := s.db.ExecContext(ctx, query, uuid.NewString(), userID, sessionID, message, messageType, time.Now())
	if err != nil {
		return fmt.Errorf("failed to insert conversation row: %w", err)
	}
	return nil
}

// ChatHistory returns a session's persisted rows ascending by creation time.
func (s *Store) ChatHistory(ctx context.Context, sessionID string) ([]ConversationRow, error) {
	var rows []ConversationRow
	query := s.db.Rebind(`
        SELECT id, user_id, session_id, message, message_type, created_at
        FROM chat_conversations
        WHERE session_id = ?
        ORDER BY created_at ASC`)

	if err := s.db.SelectContext(ctx, &rows, query, sessionID); err != nil {
		return nil, fmt.Errorf("failed to query chat history: %w", err)
	}
	return rows, nil
}
