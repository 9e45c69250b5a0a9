// Package store provides storage backends for conversation state, history
// and scheduled proactive events.
package store

import (
	"strings"
	"sync"

	"github.com/glowdesk/engage/internal/models"
)

// Store is the persistence boundary of the engine.
type Store interface {
	// GetConversationState returns the state for a thread, or nil when the
	// thread is unknown.
	GetConversationState(threadID string) (*models.ConversationState, error)
	// SaveConversationState inserts or replaces the state for a thread.
	SaveConversationState(state models.ConversationState) error
	// DeleteConversationState removes a thread's state, history and event.
	DeleteConversationState(threadID string) error
	// AddMessage appends one history entry for a thread.
	AddMessage(threadID string, msg models.Message) error
	// GetMessages returns a thread's history in insertion order.
	GetMessages(threadID string) ([]models.Message, error)
	// SaveScheduledEvent replaces the thread's pending proactive event.
	SaveScheduledEvent(threadID string, event models.EventInstance) error
	// GetScheduledEvent returns the pending event, or nil when none exists.
	GetScheduledEvent(threadID string) (*models.EventInstance, error)
	// Close releases backend resources.
	Close() error
}

// Opts holds store configuration.
type Opts struct {
	DSN string
}

// Option configures a store backend.
type Option func(*Opts)

// WithSQLiteDSN sets a SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets a PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType reports "postgres" for PostgreSQL connection strings and
// "sqlite" for anything else (file paths).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// InMemoryStore keeps everything in process memory. Used in tests and when
// no DSN is configured.
type InMemoryStore struct {
	mu       sync.RWMutex
	states   map[string]models.ConversationState
	messages map[string][]models.Message
	events   map[string]models.EventInstance
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		states:   make(map[string]models.ConversationState),
		messages: make(map[string][]models.Message),
		events:   make(map[string]models.EventInstance),
	}
}

func (s *InMemoryStore) GetConversationState(threadID string) (*models.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[threadID]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

func (s *InMemoryStore) SaveConversationState(state models.ConversationState) error {
	if state.ThreadID == "" {
		return models.ErrEmptyThreadID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.ThreadID] = state
	return nil
}

func (s *InMemoryStore) DeleteConversationState(threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, threadID)
	delete(s.messages, threadID)
	delete(s.events, threadID)
	return nil
}

func (s *InMemoryStore) AddMessage(threadID string, msg models.Message) error {
	if threadID == "" {
		return models.ErrEmptyThreadID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[threadID] = append(s.messages[threadID], msg)
	return nil
}

func (s *InMemoryStore) GetMessages(threadID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[threadID]
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *InMemoryStore) SaveScheduledEvent(threadID string, event models.EventInstance) error {
	if threadID == "" {
		return models.ErrEmptyThreadID
	}
	if err := event.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[threadID] = event
	return nil
}

func (s *InMemoryStore) GetScheduledEvent(threadID string) (*models.EventInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	event, ok := s.events[threadID]
	if !ok {
		return nil, nil
	}
	return &event, nil
}

func (s *InMemoryStore) Close() error { return nil }
