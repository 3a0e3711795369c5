package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"shopassist/internal/logger"
	"shopassist/pkg"
)

// SessionTimeout is the inactivity window after which a session is treated
// as if it never existed.
const SessionTimeout = 30 * time.Minute

// HistoryLimit caps the per-session conversation history.
const HistoryLimit = 20

// ErrNotFound is returned by a Backend when no record exists for a session.
var ErrNotFound = errors.New("session not found")

// Backend persists one serialized memory record per session id. Writes must
// be durable; a failed write is reported, never swallowed.
type Backend interface {
	Get(ctx context.Context, sessionID string) ([]byte, error)
	Set(ctx context.Context, sessionID string, data []byte) error
}

// Store owns per-session conversational memory. Records are persisted through
// the backend and cached in memory for the process lifetime.
type Store struct {
	backend Backend

	mu       sync.Mutex
	sessions map[string]*pkg.Memory

	now func() time.Time
}

// NewStore creates a session store on top of the given backend.
func NewStore(backend Backend) *Store {
	return &Store{
		backend:  backend,
		sessions: make(map[string]*pkg.Memory),
		now:      time.Now,
	}
}

// Load returns the memory for a session, creating a default record for an
// unseen id and resetting records idle for longer than SessionTimeout.
func (s *Store) Load(ctx context.Context, sessionID string) (*pkg.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx, sessionID)
}

// Update applies a field-level merge and persists the result. LastProducts is
// replaced wholesale, Preferences are unioned, other non-nil fields overwrite.
func (s *Store) Update(ctx context.Context, sessionID string, update pkg.MemoryUpdate) (*pkg.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	memory, err := s.loadLocked(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	applyUpdate(memory, update)

	if err := s.persistLocked(ctx, sessionID, memory); err != nil {
		return nil, err
	}
	return memory, nil
}

// AppendMessage appends one history entry stamped with the current time and
// truncates the history to the most recent HistoryLimit entries.
func (s *Store) AppendMessage(ctx context.Context, sessionID, role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	memory, err := s.loadLocked(ctx, sessionID)
	if err != nil {
		return err
	}

	memory.History = append(memory.History, pkg.ChatMessage{
		Role:      role,
		Content:   content,
		Timestamp: s.now().Unix(),
	})
	if len(memory.History) > HistoryLimit {
		memory.History = memory.History[len(memory.History)-HistoryLimit:]
	}

	return s.persistLocked(ctx, sessionID, memory)
}

func (s *Store) loadLocked(ctx context.Context, sessionID string) (*pkg.Memory, error) {
	now := s.now().Unix()

	memory, cached := s.sessions[sessionID]
	if !cached {
		data, err := s.backend.Get(ctx, sessionID)
		switch {
		case errors.Is(err, ErrNotFound):
			memory = pkg.NewMemory(now)
		case err != nil:
			return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
		default:
			memory = &pkg.Memory{}
			if err := sonic.Unmarshal(data, memory); err != nil {
				logger.Warn().Err(err).Str("session_id", sessionID).Msg("corrupt session record, resetting")
				memory = pkg.NewMemory(now)
			}
		}
	}

	// Idle sessions are reset to defaults, as if never seen.
	if now-memory.LastUpdated > int64(SessionTimeout.Seconds()) {
		memory = pkg.NewMemory(now)
	}

	memory.LastUpdated = now
	s.sessions[sessionID] = memory
	return memory, nil
}

func (s *Store) persistLocked(ctx context.Context, sessionID string, memory *pkg.Memory) error {
	data, err := sonic.Marshal(memory)
	if err != nil {
		return fmt.Errorf("failed to marshal session %s: %w", sessionID, err)
	}
	if err := s.backend.Set(ctx, sessionID, data); err != nil {
		return fmt.Errorf("failed to persist session %s: %w", sessionID, err)
	}
	s.sessions[sessionID] = memory
	return nil
}

// applyUpdate merges a partial update into memory in place.
func applyUpdate(memory *pkg.Memory, update pkg.MemoryUpdate) {
	if update.Budget != nil {
		memory.Budget = update.Budget
	}
	if update.Category != nil {
		memory.Category = *update.Category
	}
	if update.ProductType != nil {
		memory.ProductType = *update.ProductType
	}
	for _, pref := range update.Preferences {
		if !containsString(memory.Preferences, pref) {
			memory.Preferences = append(memory.Preferences, pref)
		}
	}
	if update.Intent != nil {
		memory.Intent = *update.Intent
	}
	if update.LastProducts != nil {
		memory.LastProducts = update.LastProducts
	}
	if update.LastQuery != nil {
		memory.LastQuery = *update.LastQuery
	}
	if update.History != nil {
		memory.History = update.History
	}
}

func containsString(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
