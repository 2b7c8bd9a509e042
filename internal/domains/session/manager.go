package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xpanvictor/xtutor/pkg/Logger"
	"github.com/xpanvictor/xtutor/pkg/io/transport"
	"golang.org/x/sync/semaphore"
)

var (
	ErrTooManySessions = errors.New("too many active sessions, try again later")
	ErrShuttingDown    = errors.New("server is shutting down")
)

// Bot drives one session until the client leaves or ctx ends.
type Bot interface {
	Run(ctx context.Context, tr transport.Transport, log *Logger.Logger) error
}

type BotFunc func(ctx context.Context, tr transport.Transport, log *Logger.Logger) error

func (f BotFunc) Run(ctx context.Context, tr transport.Transport, log *Logger.Logger) error {
	return f(ctx, tr, log)
}

type Recorder interface {
	RecordSessionStart()
	RecordSessionEnd(transport, result string, d time.Duration)
	RecordSessionRejected(transport, reason string)
}

// Setup creates the client connection of a session, e.g. by answering a
// WebRTC offer. A transport returned together with an error is closed.
type Setup func(ctx context.Context) (transport.Transport, error)

type Session struct {
	ID        uuid.UUID
	Kind      string
	StartedAt time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// Done is closed once the session's bot returned and its slot was released.
func (s *Session) Done() <-chan struct{} { return s.done }

// Stop ends the session without waiting.
func (s *Session) Stop() { s.cancel() }

type Info struct {
	ID        string    `json:"id"`
	Transport string    `json:"transport"`
	StartedAt time.Time `json:"started_at"`
	Uptime    string    `json:"uptime"`
}

type Stats struct {
	Active   int    `json:"active_sessions"`
	Limit    int64  `json:"max_sessions"`
	Sessions []Info `json:"sessions"`
}

// Manager owns every live session. The number of concurrent sessions is
// bounded; Start fails fast instead of queueing when the bound is reached.
type Manager struct {
	logger  *Logger.Logger
	bot     Bot
	metrics Recorder
	limit   int64
	sem     *semaphore.Weighted

	// mu also orders registration against Shutdown: no session is added
	// to wg once closed is set.
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	closed   bool

	base context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup
}

func NewManager(bot Bot, limit int64, metrics Recorder, logger *Logger.Logger) *Manager {
	if limit <= 0 {
		limit = 1
	}
	if logger == nil {
		logger = Logger.Nop()
	}
	base, stop := context.WithCancel(context.Background())
	return &Manager{
		logger:   logger,
		bot:      bot,
		metrics:  metrics,
		limit:    limit,
		sem:      semaphore.NewWeighted(limit),
		sessions: make(map[uuid.UUID]*Session),
		base:     base,
		stop:     stop,
	}
}

// Start reserves a slot, runs setup and hands the transport to the bot in
// the background. The session outlives ctx, which only bounds setup.
func (m *Manager) Start(ctx context.Context, kind string, setup Setup) (*Session, error) {
	if m.shuttingDown() {
		return nil, ErrShuttingDown
	}
	if !m.sem.TryAcquire(1) {
		m.logger.Warnf("rejecting %s session: %d sessions active", kind, m.Count())
		m.recordRejected(kind, "rejected")
		return nil, ErrTooManySessions
	}

	tr, err := setup(ctx)
	if err != nil {
		if tr != nil {
			if cerr := tr.Close(); cerr != nil {
				m.logger.Debugf("closing failed transport: %v", cerr)
			}
		}
		m.sem.Release(1)
		m.recordRejected(kind, "setup_failed")
		return nil, err
	}

	sessCtx, cancel := context.WithCancel(m.base)
	s := &Session{
		ID:        uuid.New(),
		Kind:      kind,
		StartedAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	log := m.logger.With("session_id", s.ID.String(), "transport", kind)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		cancel()
		if cerr := tr.Close(); cerr != nil {
			m.logger.Debugf("closing transport after shutdown: %v", cerr)
		}
		m.sem.Release(1)
		m.recordRejected(kind, "shutdown")
		return nil, ErrShuttingDown
	}
	m.sessions[s.ID] = s
	m.wg.Add(1)
	m.mu.Unlock()
	if m.metrics != nil {
		m.metrics.RecordSessionStart()
	}
	log.Info("session started")

	go m.run(sessCtx, s, tr, log)
	return s, nil
}

func (m *Manager) run(ctx context.Context, s *Session, tr transport.Transport, log *Logger.Logger) {
	defer m.wg.Done()
	defer close(s.done)
	defer m.sem.Release(1)

	result := "completed"
	if err := m.bot.Run(ctx, tr, log); err != nil {
		result = "error"
		log.Errorf("session bot failed: %v", err)
	}
	if err := tr.Close(); err != nil {
		log.Debugf("closing transport: %v", err)
	}
	s.cancel()

	m.mu.Lock()
	delete(m.sessions, s.ID)
	m.mu.Unlock()

	d := time.Since(s.StartedAt)
	if m.metrics != nil {
		m.metrics.RecordSessionEnd(s.Kind, result, d)
	}
	log.Infof("session ended after %s (%s)", d.Round(time.Millisecond), result)
}

func (m *Manager) shuttingDown() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

func (m *Manager) recordRejected(kind, reason string) {
	if m.metrics != nil {
		m.metrics.RecordSessionRejected(kind, reason)
	}
}

func (m *Manager) Get(id uuid.UUID) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{Active: len(m.sessions), Limit: m.limit, Sessions: make([]Info, 0, len(m.sessions))}
	for _, s := range m.sessions {
		stats.Sessions = append(stats.Sessions, Info{
			ID:        s.ID.String(),
			Transport: s.Kind,
			StartedAt: s.StartedAt,
			Uptime:    time.Since(s.StartedAt).Round(time.Second).String(),
		})
	}
	sort.Slice(stats.Sessions, func(i, j int) bool {
		return stats.Sessions[i].StartedAt.Before(stats.Sessions[j].StartedAt)
	})
	return stats
}

// Shutdown stops every session and waits for them until ctx ends. No new
// session can start afterwards.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	n := len(m.sessions)
	m.mu.Unlock()
	m.logger.Infof("shutting down %d sessions", n)
	m.stop()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("sessions still running: %w", ctx.Err())
	}
}
