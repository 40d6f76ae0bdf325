package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/cache"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/extract"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/observability"
)

const (
	defaultHistoryLimit = 20
	storeKeyPrefix      = "conv:"
)

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// HistoryLimit caps the stored message history per conversation.
	HistoryLimit int
	// Store, when set, receives a JSON snapshot after every update and is
	// consulted for conversations not held in memory.
	Store cache.Client
	// StoreTTL is the expiry applied to persisted snapshots.
	StoreTTL time.Duration
}

// Manager owns every live conversation context. Updates to one conversation
// are serialised by a per-conversation lock; distinct conversations never
// contend beyond the brief map lookup.
type Manager struct {
	extractor *extract.Extractor
	logger    *observability.Logger
	cfg       ManagerConfig
	now       func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	mu       sync.Mutex
	ctx      *Context
	lastUsed time.Time
	// pruned is set under mu once Prune has dropped the entry from the map.
	pruned bool
}

// NewManager creates a Manager.
func NewManager(extractor *extract.Extractor, logger *observability.Logger, cfg ManagerConfig) *Manager {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if extractor == nil {
		extractor = extract.New()
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Manager{
		extractor: extractor,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
		entries:   make(map[string]*entry),
	}
}

// Update records a message and, for user messages, folds extracted facts
// into the conversation. It returns a snapshot of the updated context and
// any mismatches raised by this message.
func (m *Manager) Update(ctx context.Context, conversationID, message string, role Role) (Context, []Mismatch) {
	e := m.lockEntry(conversationID)
	defer e.mu.Unlock()

	now := m.now()
	m.ensureLoaded(ctx, conversationID, e, now)

	c := e.ctx
	c.MessageCount++
	c.UpdatedAt = now
	e.lastUsed = now
	c.History = append(c.History, Message{Role: role, Content: message, Timestamp: now})
	if over := len(c.History) - m.cfg.HistoryLimit; over > 0 {
		c.History = append([]Message(nil), c.History[over:]...)
	}

	var mismatches []Mismatch
	if role == RoleUser {
		c.UserMessageCount++
		mismatches = c.merge(m.extractor.Extract(message), message, now)
		c.derive()

		log := m.logger.WithConversation(conversationID)
		log.Debug().
			Str("stage", string(c.Stage)).
			Float64("completeness", c.Completeness).
			Strs("missing", c.MissingInfo).
			Msg("Context updated")
		for _, mm := range mismatches {
			log.Warn().
				Str("field", mm.Field).
				Str("established", mm.Established).
				Str("observed", mm.Observed).
				Msg("Appliance mismatch")
		}
	}

	m.persist(ctx, c)
	return c.Clone(), mismatches
}

// Get returns a snapshot of a conversation.
func (m *Manager) Get(ctx context.Context, conversationID string) (Context, bool) {
	m.mu.Lock()
	e, ok := m.entries[conversationID]
	m.mu.Unlock()

	if !ok {
		c, found := m.load(ctx, conversationID)
		if !found {
			return Context{}, false
		}
		return c.Clone(), true
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ctx == nil {
		return Context{}, false
	}
	return e.ctx.Clone(), true
}

// IsFirstUserMessage reports whether exactly one user message has been seen.
func (m *Manager) IsFirstUserMessage(ctx context.Context, conversationID string) bool {
	c, ok := m.Get(ctx, conversationID)
	return !ok || c.UserMessageCount <= 1
}

// History returns the stored messages for a conversation, oldest first.
func (m *Manager) History(ctx context.Context, conversationID string) []Message {
	c, ok := m.Get(ctx, conversationID)
	if !ok {
		return nil
	}
	return c.History
}

// Delete forgets a conversation, in memory and in the store.
func (m *Manager) Delete(ctx context.Context, conversationID string) {
	m.mu.Lock()
	delete(m.entries, conversationID)
	m.mu.Unlock()

	if m.cfg.Store != nil {
		if err := m.cfg.Store.Delete(ctx, storeKeyPrefix+conversationID); err != nil {
			m.logger.Warn().Err(err).Str("conversation_id", conversationID).Msg("Failed to delete conversation snapshot")
		}
	}
}

// Prune drops in-memory conversations idle for longer than maxIdle and
// returns how many were removed. Persisted snapshots are left to expire.
func (m *Manager) Prune(maxIdle time.Duration) int {
	cutoff := m.now().Add(-maxIdle)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, e := range m.entries {
		if !e.mu.TryLock() {
			continue
		}
		if e.lastUsed.Before(cutoff) {
			e.pruned = true
			delete(m.entries, id)
			removed++
		}
		e.mu.Unlock()
	}
	return removed
}

// Len returns the number of conversations held in memory.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Stats summarises live conversations by stage.
type Stats struct {
	ActiveConversations int           `json:"active_conversations"`
	TotalMessages       int           `json:"total_messages_processed"`
	Stages              map[Stage]int `json:"conversation_stages"`
}

// Stats returns counts over the in-memory conversations.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	entries := make([]*entry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	m.mu.Unlock()

	s := Stats{Stages: make(map[Stage]int)}
	for _, e := range entries {
		e.mu.Lock()
		if e.ctx != nil {
			s.ActiveConversations++
			s.TotalMessages += e.ctx.MessageCount
			s.Stages[e.ctx.Stage]++
		}
		e.mu.Unlock()
	}
	return s
}

func (m *Manager) entry(id string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		e = &entry{lastUsed: m.now()}
		m.entries[id] = e
	}
	return e
}

// lockEntry returns the live entry for id with its mutex held. An entry
// pruned between lookup and locking is discarded and looked up again.
func (m *Manager) lockEntry(id string) *entry {
	for {
		e := m.entry(id)
		e.mu.Lock()
		if !e.pruned {
			return e
		}
		e.mu.Unlock()
	}
}

// ensureLoaded must be called with e.mu held.
func (m *Manager) ensureLoaded(ctx context.Context, id string, e *entry, now time.Time) {
	if e.ctx != nil {
		return
	}
	if c, ok := m.load(ctx, id); ok {
		e.ctx = c
		return
	}
	e.ctx = newContext(id, now)
}

func (m *Manager) load(ctx context.Context, id string) (*Context, bool) {
	if m.cfg.Store == nil {
		return nil, false
	}

	data, err := m.cfg.Store.Get(ctx, storeKeyPrefix+id)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			m.logger.Warn().Err(err).Str("conversation_id", id).Msg("Failed to load conversation snapshot")
		}
		return nil, false
	}

	var c Context
	if err := json.Unmarshal(data, &c); err != nil {
		m.logger.Warn().Err(err).Str("conversation_id", id).Msg("Discarding corrupt conversation snapshot")
		return nil, false
	}
	if c.Symptoms == nil {
		c.Symptoms = []string{}
	}
	if c.MentionedParts == nil {
		c.MentionedParts = []string{}
	}
	c.derive()
	return &c, true
}

func (m *Manager) persist(ctx context.Context, c *Context) {
	if m.cfg.Store == nil {
		return
	}

	data, err := json.Marshal(c)
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to encode conversation snapshot")
		return
	}
	if err := m.cfg.Store.Set(ctx, storeKeyPrefix+c.ConversationID, data, m.cfg.StoreTTL); err != nil {
		m.logger.Warn().Err(err).Str("conversation_id", c.ConversationID).Msg("Failed to persist conversation snapshot")
	}
}
