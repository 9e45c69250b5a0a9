package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/glowdesk/engage/internal/models"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore mirrors the SQLite schema in Postgres dialect.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects to PostgreSQL using the DSN and runs migrations.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("PostgresStore failed to open connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("PostgresStore ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("PostgresStore migrations failed", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgresStore opened")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) GetConversationState(threadID string) (*models.ConversationState, error) {
	var stateJSON string
	err := s.db.QueryRow(`SELECT state_json FROM conversation_states WHERE thread_id = $1`, threadID).Scan(&stateJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetConversationState failed", "error", err, "thread_id", threadID)
		return nil, fmt.Errorf("failed to query state for %s: %w", threadID, err)
	}
	var state models.ConversationState
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		return nil, fmt.Errorf("failed to decode state for %s: %w", threadID, err)
	}
	return &state, nil
}

func (s *PostgresStore) SaveConversationState(state models.ConversationState) error {
	if state.ThreadID == "" {
		return models.ErrEmptyThreadID
	}
	state.UpdatedAt = time.Now()
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode state for %s: %w", state.ThreadID, err)
	}
	_, err = s.db.Exec(`INSERT INTO conversation_states (thread_id, recipient, state_json, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (thread_id) DO UPDATE SET recipient = EXCLUDED.recipient,
			state_json = EXCLUDED.state_json, updated_at = NOW()`,
		state.ThreadID, state.Recipient, string(payload))
	if err != nil {
		slog.Error("PostgresStore SaveConversationState failed", "error", err, "thread_id", state.ThreadID)
		return fmt.Errorf("failed to save state for %s: %w", state.ThreadID, err)
	}
	return nil
}

func (s *PostgresStore) DeleteConversationState(threadID string) error {
	for _, q := range []string{
		`DELETE FROM conversation_states WHERE thread_id = $1`,
		`DELETE FROM conversation_messages WHERE thread_id = $1`,
		`DELETE FROM scheduled_events WHERE thread_id = $1`,
	} {
		if _, err := s.db.Exec(q, threadID); err != nil {
			slog.Error("PostgresStore DeleteConversationState failed", "error", err, "thread_id", threadID)
			return fmt.Errorf("failed to delete state for %s: %w", threadID, err)
		}
	}
	return nil
}

func (s *PostgresStore) AddMessage(threadID string, msg models.Message) error {
	if threadID == "" {
		return models.ErrEmptyThreadID
	}
	_, err := s.db.Exec(`INSERT INTO conversation_messages (thread_id, role, content, created_at) VALUES ($1, $2, $3, $4)`,
		threadID, msg.Role, msg.Content, msg.Timestamp)
	if err != nil {
		slog.Error("PostgresStore AddMessage failed", "error", err, "thread_id", threadID)
		return fmt.Errorf("failed to insert message for %s: %w", threadID, err)
	}
	return nil
}

func (s *PostgresStore) GetMessages(threadID string) ([]models.Message, error) {
	rows, err := s.db.Query(`SELECT role, content, created_at FROM conversation_messages WHERE thread_id = $1 ORDER BY id`, threadID)
	if err != nil {
		slog.Error("PostgresStore GetMessages query failed", "error", err, "thread_id", threadID)
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

func (s *PostgresStore) SaveScheduledEvent(threadID string, event models.EventInstance) error {
	if threadID == "" {
		return models.ErrEmptyThreadID
	}
	if err := event.Validate(); err != nil {
		return err
	}
	_, err := s.db.Exec(`INSERT INTO scheduled_events (thread_id, event_type, event_time, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (thread_id) DO UPDATE SET event_type = EXCLUDED.event_type,
			event_time = EXCLUDED.event_time, updated_at = NOW()`,
		threadID, string(event.EventType), event.EventTime)
	if err != nil {
		slog.Error("PostgresStore SaveScheduledEvent failed", "error", err, "thread_id", threadID)
		return fmt.Errorf("failed to save event for %s: %w", threadID, err)
	}
	return nil
}

func (s *PostgresStore) GetScheduledEvent(threadID string) (*models.EventInstance, error) {
	var event models.EventInstance
	err := s.db.QueryRow(`SELECT event_type, event_time FROM scheduled_events WHERE thread_id = $1`, threadID).
		Scan(&event.EventType, &event.EventTime)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetScheduledEvent failed", "error", err, "thread_id", threadID)
		return nil, fmt.Errorf("failed to query event for %s: %w", threadID, err)
	}
	return &event, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
