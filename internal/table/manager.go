// Package table hosts live games. Each table is the single-writer
// serialization point for its game: every accepted action is applied under
// the table lock, and its per-viewer effects are fanned out to subscribers.
package table

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/zpy-online/zpy-server-go/internal/protocol"
	"github.com/zpy-online/zpy-server-go/internal/zpy"
	"go.uber.org/zap"
)

// Table is one hosted game.
type Table struct {
	ID string

	mu     sync.Mutex
	eng    *zpy.Engine
	game   *zpy.Game
	subs   map[protocol.UserID][]chan zpy.Effect
	logger *zap.Logger
}

// Submit serializes one viewer intent against the authoritative state. On
// acceptance every subscriber receives its entitled effect; on rejection only
// the offender learns the verdict, and no state changes.
func (t *Table) Submit(intent zpy.Intent, who protocol.UserID) *zpy.Error {
	t.mu.Lock()
	defer t.mu.Unlock()

	act, err := t.eng.Listen(t.game, intent, who)
	if err != nil {
		return err
	}

	// effects are computed against the pre-application state, then held back
	// until the action is known to be accepted
	type delivery struct {
		ch  chan zpy.Effect
		eff zpy.Effect
	}
	var pending []delivery
	for viewer, chans := range t.subs {
		eff := t.eng.RedactAction(t.game, act, viewer)
		for _, ch := range chans {
			pending = append(pending, delivery{ch: ch, eff: eff})
		}
	}

	if _, err := t.eng.Apply(t.game, act); err != nil {
		t.logger.Debug("intent rejected",
			zap.String("table_id", t.ID),
			zap.Stringer("kind", intent.Kind),
			zap.String("player", string(who)),
			zap.String("reason", err.Error()),
		)
		return err
	}

	t.logger.Debug("action applied",
		zap.String("table_id", t.ID),
		zap.Stringer("kind", act.Kind),
		zap.String("player", string(who)),
		zap.Stringer("phase", t.game.Phase()),
	)

	for _, d := range pending {
		select {
		case d.ch <- d.eff:
		default:
			// slow subscribers drop effects; they must resync via Snapshot
		}
	}
	return nil
}

// Subscribe registers a viewer's effect channel and returns the viewer's
// current redacted state, so the caller can resync atomically.
func (t *Table) Subscribe(who protocol.UserID, ch chan zpy.Effect) *zpy.ClientState {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subs[who] = append(t.subs[who], ch)
	return t.eng.Redact(t.game, who)
}

// Unsubscribe removes a previously registered channel.
func (t *Table) Unsubscribe(who protocol.UserID, ch chan zpy.Effect) {
	t.mu.Lock()
	defer t.mu.Unlock()
	chans := t.subs[who]
	for i, c := range chans {
		if c == ch {
			t.subs[who] = append(chans[:i], chans[i+1:]...)
			break
		}
	}
	if len(t.subs[who]) == 0 {
		delete(t.subs, who)
	}
}

// Snapshot returns the viewer's current redacted state.
func (t *Table) Snapshot(who protocol.UserID) *zpy.ClientState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.eng.Redact(t.game, who)
}

// Phase returns the hosted game's current phase.
func (t *Table) Phase() zpy.Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.game.Phase()
}

// Manager owns all live tables.
type Manager struct {
	mu     sync.RWMutex
	tables map[string]*Table
	logger *zap.Logger
}

// NewManager creates an empty table manager.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		tables: make(map[string]*Table),
		logger: logger,
	}
}

// Create starts hosting a new game under a fresh table id.
func (m *Manager) Create(cfg zpy.Config) *Table {
	eng := zpy.NewEngine(m.logger)
	t := &Table{
		ID:     uuid.NewString(),
		eng:    eng,
		game:   eng.Init(cfg),
		subs:   make(map[protocol.UserID][]chan zpy.Effect),
		logger: m.logger,
	}

	m.mu.Lock()
	m.tables[t.ID] = t
	m.mu.Unlock()

	m.logger.Info("table created", zap.String("table_id", t.ID))
	return t
}

// Get looks up a table by id.
func (m *Manager) Get(id string) (*Table, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tables[id]
	if !ok {
		return nil, fmt.Errorf("table %s not found", id)
	}
	return t, nil
}

// Close drops a table. In-flight submissions complete first.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tables[id]; ok {
		delete(m.tables, id)
		m.logger.Info("table closed", zap.String("table_id", id))
	}
}

// Count returns the number of live tables.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tables)
}
