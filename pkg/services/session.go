package services

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dukex/flowdeck/pkg/analyzer"
	"github.com/dukex/flowdeck/pkg/eventbus"
	"github.com/dukex/flowdeck/pkg/gateway"
	"github.com/dukex/flowdeck/pkg/graph"
	"github.com/dukex/flowdeck/pkg/persistence"
	"github.com/dukex/flowdeck/pkg/planner"
	"github.com/dukex/flowdeck/pkg/selection"
)

// Session is one open flowchart: its in-memory graph, selection state, the
// storage gateway driving autosaves, and the current run tracker.
type Session struct {
	Name      string
	Store     *graph.Store
	Selection *selection.Model
	Gateway   *gateway.Gateway
	Run       *planner.Run
}

// Manager opens and tracks editing sessions, one per flowchart name.
type Manager struct {
	logger    *slog.Logger
	persist   persistence.Persistence
	publisher eventbus.EventPublisher
	analyzer  analyzer.Analyzer

	mu          sync.Mutex
	sessions    map[string]*Session
	maintenance *Session
}

func NewManager(
	logger *slog.Logger,
	persist persistence.Persistence,
	publisher eventbus.EventPublisher,
	pythonAnalyzer analyzer.Analyzer,
) *Manager {
	return &Manager{
		logger:    logger,
		persist:   persist,
		publisher: publisher,
		analyzer:  pythonAnalyzer,
		sessions:  make(map[string]*Session),
	}
}

// Session returns the open session for the flowchart, loading it from storage
// on first access.
func (m *Manager) Session(ctx context.Context, name string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session, ok := m.sessions[name]; ok {
		return session, nil
	}

	session := m.build(name)
	if err := session.Gateway.Load(ctx, name); err != nil {
		return nil, err
	}

	m.sessions[name] = session

	return session, nil
}

func (m *Manager) build(name string) *Session {
	store := graph.NewStore(m.logger, m.publisher, m.analyzer)
	sel := selection.NewModel(m.publisher)
	store.SetSelection(sel)

	gw := gateway.NewGateway(m.logger, store, sel, m.persist, m.publisher, nil)
	store.SetAutosave(gw)

	return &Session{
		Name:      name,
		Store:     store,
		Selection: sel,
		Gateway:   gw,
		Run:       planner.NewRun(m.publisher, name),
	}
}

// Peek returns the session only if it is already open.
func (m *Manager) Peek(name string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[name]

	return session, ok
}

// Discard drops the session without saving, flushing only its timers.
func (m *Manager) Discard(ctx context.Context, name string) {
	m.mu.Lock()
	session, ok := m.sessions[name]
	delete(m.sessions, name)
	m.mu.Unlock()

	if ok {
		if err := session.Gateway.Close(ctx); err != nil {
			m.logger.Warn("failed to close session", "flowchart", name, "error", err)
		}
	}
}

// Adopt re-keys an open session after a flowchart rename.
func (m *Manager) Adopt(oldName, newName string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[oldName]
	if !ok {
		return
	}

	delete(m.sessions, oldName)

	session.Name = newName
	session.Store.SetFlowchart(newName)
	session.Selection.SetFlowchart(newName)
	m.sessions[newName] = session
}

// StartBackupRetention schedules periodic pruning of old backups across
// every stored flowchart, keeping the newest keep per flowchart. Runs on a
// dedicated maintenance gateway so it survives individual sessions closing.
func (m *Manager) StartBackupRetention(schedule string, keep int) error {
	m.mu.Lock()

	if m.maintenance == nil {
		m.maintenance = m.build("")
	}

	session := m.maintenance
	m.mu.Unlock()

	session.Gateway.SetBackupKeep(keep)

	return session.Gateway.StartBackupRetention(schedule)
}

// Close flushes and drops every open session.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))

	for _, session := range m.sessions {
		sessions = append(sessions, session)
	}

	if m.maintenance != nil {
		sessions = append(sessions, m.maintenance)
		m.maintenance = nil
	}

	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	var firstErr error

	for _, session := range sessions {
		if err := session.Gateway.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
