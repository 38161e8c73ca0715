package triage

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/warroomlabs/warroom/internal/db"
	"github.com/warroomlabs/warroom/internal/events"
	"github.com/warroomlabs/warroom/internal/gate"
	"github.com/warroomlabs/warroom/internal/incident"
	"github.com/warroomlabs/warroom/internal/notify"
)

// ErrAlreadyRunning is returned by Start while a run is active.
var ErrAlreadyRunning = errors.New("triage already running")

// Config controls pacing and the approval step of the scripted run.
type Config struct {
	// ApprovalTimeout is the window granted to the human decision before
	// the gate settles to its default outcome.
	ApprovalTimeout time.Duration
	// StepDelayCap bounds every scripted pause so cumulative session
	// latency stays bounded regardless of the configured delays. Zero
	// disables pacing entirely.
	StepDelayCap time.Duration
	// Approver is the human participant asked to approve deployments.
	Approver string
	// DemoCodeDir, when set, is where the incident's buggy/fixed code is
	// staged on disk.
	DemoCodeDir string
}

func (c Config) withDefaults() Config {
	if c.ApprovalTimeout <= 0 {
		c.ApprovalTimeout = 15 * time.Second
	}
	if c.Approver == "" {
		c.Approver = "Dana"
	}
	return c
}

// Manager owns the single active run: it admits or rejects start requests,
// hands the orchestrator its own goroutine, and exposes the current
// incident to status queries.
type Manager struct {
	pub      events.Publisher
	gate     *gate.Gate
	provider incident.Provider
	store    *db.DB           // optional run archive
	notifier *notify.Notifier // optional, nil-safe
	cfg      Config
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	current *incident.Incident
	runID   string
	done    chan struct{}
}

// NewManager wires the orchestrator's collaborators. store and notifier may
// be nil.
func NewManager(pub events.Publisher, g *gate.Gate, provider incident.Provider,
	store *db.DB, notifier *notify.Notifier, cfg Config, logger *slog.Logger) *Manager {
	return &Manager{
		pub:      pub,
		gate:     g,
		provider: provider,
		store:    store,
		notifier: notifier,
		cfg:      cfg.withDefaults(),
		logger:   logger,
	}
}

// Start admits a new run and returns immediately; the script executes on
// its own goroutine. A second Start during an active run fails with
// ErrAlreadyRunning. The incident is fetched before admission, so a failing
// provider never leaves the manager marked running.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return ErrAlreadyRunning
	}

	inc, err := m.provider.Incident()
	if err != nil {
		return fmt.Errorf("fetch incident: %w", err)
	}
	if err := m.gate.Reset(); err != nil {
		return fmt.Errorf("reset approval gate: %w", err)
	}

	m.running = true
	m.current = inc
	m.runID = uuid.NewString()
	m.done = make(chan struct{})
	m.logger.Info("triage: run admitted",
		"run", m.runID, "service", inc.Service, "error", inc.ErrorCode)
	go m.run(inc, m.runID, m.done)
	return nil
}

// Running reports whether a run is active.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Current returns the incident of the active or most recent run, or nil if
// no run has started.
func (m *Manager) Current() *incident.Incident {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Gate exposes the approval gate for the resolve endpoints.
func (m *Manager) Gate() *gate.Gate {
	return m.gate
}

// Approver is the configured human decision-maker.
func (m *Manager) Approver() string {
	return m.cfg.Approver
}

// Workspace returns the on-disk staging area for incident code, or nil when
// staging is disabled.
func (m *Manager) Workspace() *incident.Workspace {
	if m.cfg.DemoCodeDir == "" {
		return nil
	}
	return &incident.Workspace{Dir: m.cfg.DemoCodeDir}
}

// Wait blocks until the active run ends. It returns immediately when no run
// has been started.
func (m *Manager) Wait() {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()
	if done != nil {
		<-done
	}
}

// finish clears run exclusivity. It is the single point that resets the
// running flag, so a concurrent Start either sees the run as active or is
// admitted cleanly after it.
func (m *Manager) finish(done chan struct{}) {
	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
	close(done)
}
