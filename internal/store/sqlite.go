package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/glowdesk/engage/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists state as a JSON document per thread; history and
// events get their own tables.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed creates) a SQLite database at the DSN
// path and runs migrations.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(cfg.DSN)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("SQLiteStore failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		slog.Error("SQLiteStore failed to open connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLiteStore ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("SQLiteStore migrations failed", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLiteStore opened", "path", cfg.DSN)
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) GetConversationState(threadID string) (*models.ConversationState, error) {
	var stateJSON string
	err := s.db.QueryRow(`SELECT state_json FROM conversation_states WHERE thread_id = ?`, threadID).Scan(&stateJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetConversationState failed", "error", err, "thread_id", threadID)
		return nil, fmt.Errorf("failed to query state for %s: %w", threadID, err)
	}
	var state models.ConversationState
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		return nil, fmt.Errorf("failed to decode state for %s: %w", threadID, err)
	}
	return &state, nil
}

func (s *SQLiteStore) SaveConversationState(state models.ConversationState) error {
	if state.ThreadID == "" {
		return models.ErrEmptyThreadID
	}
	state.UpdatedAt = time.Now()
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode state for %s: %w", state.ThreadID, err)
	}
	_, err = s.db.Exec(`INSERT INTO conversation_states (thread_id, recipient, state_json, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(thread_id) DO UPDATE SET recipient = excluded.recipient,
			state_json = excluded.state_json, updated_at = CURRENT_TIMESTAMP`,
		state.ThreadID, state.Recipient, string(payload))
	if err != nil {
		slog.Error("SQLiteStore SaveConversationState failed", "error", err, "thread_id", state.ThreadID)
		return fmt.Errorf("failed to save state for %s: %w", state.ThreadID, err)
	}
	slog.Debug("SQLiteStore SaveConversationState succeeded", "thread_id", state.ThreadID, "stage", state.Stage)
	return nil
}

func (s *SQLiteStore) DeleteConversationState(threadID string) error {
	for _, q := range []string{
		`DELETE FROM conversation_states WHERE thread_id = ?`,
		`DELETE FROM conversation_messages WHERE thread_id = ?`,
		`DELETE FROM scheduled_events WHERE thread_id = ?`,
	} {
		if _, err := s.db.Exec(q, threadID); err != nil {
			slog.Error("SQLiteStore DeleteConversationState failed", "error", err, "thread_id", threadID)
			return fmt.Errorf("failed to delete state for %s: %w", threadID, err)
		}
	}
	return nil
}

func (s *SQLiteStore) AddMessage(threadID string, msg models.Message) error {
	if threadID == "" {
		return models.ErrEmptyThreadID
	}
	_, err := s.db.Exec(`INSERT INTO conversation_messages (thread_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		threadID, msg.Role, msg.Content, msg.Timestamp)
	if err != nil {
		slog.Error("SQLiteStore AddMessage failed", "error", err, "thread_id", threadID)
		return fmt.Errorf("failed to insert message for %s: %w", threadID, err)
	}
	return nil
}

func (s *SQLiteStore) GetMessages(threadID string) ([]models.Message, error) {
	rows, err := s.db.Query(`SELECT role, content, created_at FROM conversation_messages WHERE thread_id = ? ORDER BY id`, threadID)
	if err != nil {
		slog.Error("SQLiteStore GetMessages query failed", "error", err, "thread_id", threadID)
		return nil, fmt.Errorf("failed to query messages for %s: %w", threadID, err)
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.Role, &m.Content, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}
	return msgs, nil
}

func (s *SQLiteStore) SaveScheduledEvent(threadID string, event models.EventInstance) error {
	if threadID == "" {
		return models.ErrEmptyThreadID
	}
	if err := event.Validate(); err != nil {
		return err
	}
	_, err := s.db.Exec(`INSERT INTO scheduled_events (thread_id, event_type, event_time, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(thread_id) DO UPDATE SET event_type = excluded.event_type,
			event_time = excluded.event_time, updated_at = CURRENT_TIMESTAMP`,
		threadID, string(event.EventType), event.EventTime)
	if err != nil {
		slog.Error("SQLiteStore SaveScheduledEvent failed", "error", err, "thread_id", threadID)
		return fmt.Errorf("failed to save event for %s: %w", threadID, err)
	}
	return nil
}

func (s *SQLiteStore) GetScheduledEvent(threadID string) (*models.EventInstance, error) {
	var event models.EventInstance
	err := s.db.QueryRow(`SELECT event_type, event_time FROM scheduled_events WHERE thread_id = ?`, threadID).
		Scan(&event.EventType, &event.EventTime)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetScheduledEvent failed", "error", err, "thread_id", threadID)
		return nil, fmt.Errorf("failed to query event for %s: %w", threadID, err)
	}
	return &event, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
