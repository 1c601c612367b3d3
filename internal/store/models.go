package store

import "time"

// AdminSetting is one row of the flat key-value table behind the admin panel.
type AdminSetting struct {
	Key       string    `db:"setting_key" json:"setting_key"`
	Value     string    `db:"setting_value" json:"setting_value"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// AppUser is provisioned lazily on the first successful login for a RUT.
type AppUser struct {
	Rut       string    `db:"rut" json:"rut"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

const (
	MessageTypeUser      = "user"
	MessageTypeAssistant = "assistant"
)

// ConversationRow is one side of an exchange; a question and its answer are
// persisted as two rows sharing a session id.
type ConversationRow struct {
	ID          string    `db:"id" json:"-"`
	UserID      *string   `db:"user_id" json:"user_id,omitempty"`
	SessionID   string    `db:"session_id" json:"-"`
	Message     string    `db:"message" json:"message"`
	MessageType string    `db:"message_type" json:"message_type"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
