package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pressline/encoderd/internal/s7"
	"go.uber.org/zap"
)

// Config controls one monitoring session.
type Config struct {
	Register   s7.RegisterAddress
	Interval   time.Duration
	MaxRetries int
	RetryDelay time.Duration

	// MaxDuration stops the monitor on its own after the given time.
	// Zero means run until Stop.
	MaxDuration time.Duration

	// Min/Max bound the plausible value range. Readings outside it are
	// flagged, not dropped. Nil disables the check.
	Min *float64
	Max *float64
}

// Event is what subscribers receive once per poll cycle: either a
// Reading or the error that exhausted the retry budget.
type Event struct {
	SessionID  uuid.UUID   `json:"session_id"`
	Reading    *s7.Reading `json:"reading,omitempty"`
	Err        error       `json:"-"`
	OutOfRange bool        `json:"out_of_range,omitempty"`
}

// Stats counts poll outcomes for the current session.
type Stats struct {
	Total     uint64    `json:"total"`
	Succeeded uint64    `json:"succeeded"`
	LastPoll  time.Time `json:"last_poll"`
	LastError string    `json:"last_error,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// SuccessRate returns the fraction of successful polls in percent.
func (s Stats) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(s.Total) * 100
}

// Monitor runs a continuous polling loop against a single client. The
// loop goroutine owns the client exclusively; everyone else observes
// through Latest, Stats and Subscribe.
type Monitor struct {
	client *s7.Client
	cfg    Config
	logger *zap.Logger

	mu        sync.RWMutex
	running   bool
	sessionID uuid.UUID
	latest    *s7.Reading
	stats     Stats

	stopChan chan struct{}
	wg       sync.WaitGroup

	subMu       sync.RWMutex
	subscribers map[chan Event]struct{}
}

func New(client *s7.Client, cfg Config, logger *zap.Logger) *Monitor {
	return &Monitor{
		client:      client,
		cfg:         cfg,
		logger:      logger,
		subscribers: make(map[chan Event]struct{}),
	}
}

// Start launches the polling loop. Calling Start on a running monitor is
// a no-op.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	if err := m.client.Connect(); err != nil {
		// Not fatal: the loop reconnects through ReadWithRetry.
		m.logger.Warn("Initial PLC connect failed, will retry while polling",
			zap.Error(err))
	}

	m.running = true
	m.sessionID = uuid.New()
	m.latest = nil
	m.stats = Stats{StartedAt: time.Now()}
	m.stopChan = make(chan struct{})
	m.wg.Add(1)

	go m.run(m.sessionID, m.stopChan)

	m.logger.Info("Monitor started",
		zap.String("session_id", m.sessionID.String()),
		zap.Int("block", m.cfg.Register.Block),
		zap.Int("offset", m.cfg.Register.Offset),
		zap.Duration("interval", m.cfg.Interval))

	return nil
}

// Stop halts the polling loop and waits for it to finish. The loop
// observes the stop signal between cycles, never mid-read, so Stop may
// block for up to one read+delay cycle. Idempotent.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	stopChan := m.stopChan
	m.mu.Unlock()

	close(stopChan)
	m.wg.Wait()
}

// IsRunning reports whether the polling loop is active.
func (m *Monitor) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// SessionID returns the ID of the current (or most recent) session.
func (m *Monitor) SessionID() uuid.UUID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessionID
}

// Latest returns the most recent successful reading of this session.
func (m *Monitor) Latest() (s7.Reading, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.latest == nil {
		return s7.Reading{}, false
	}
	return *m.latest, true
}

// Stats returns a snapshot of the session counters.
func (m *Monitor) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}

// Subscribe registers a listener for poll events. Slow subscribers miss
// events rather than blocking the loop.
func (m *Monitor) Subscribe() chan Event {
	ch := make(chan Event, 16)
	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()
	return ch
}

// Unsubscribe removes and closes a listener channel.
func (m *Monitor) Unsubscribe(ch chan Event) {
	m.subMu.Lock()
	if _, ok := m.subscribers[ch]; ok {
		delete(m.subscribers, ch)
		close(ch)
	}
	m.subMu.Unlock()
}

func (m *Monitor) run(sessionID uuid.UUID, stopChan chan struct{}) {
	defer m.wg.Done()
	defer m.logSessionSummary(sessionID)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if m.cfg.MaxDuration > 0 {
		timer := time.NewTimer(m.cfg.MaxDuration)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		select {
		case <-stopChan:
			return
		case <-deadline:
			m.logger.Info("Monitor duration elapsed, stopping",
				zap.String("session_id", sessionID.String()),
				zap.Duration("max_duration", m.cfg.MaxDuration))
			m.mu.Lock()
			m.running = false
			m.mu.Unlock()
			return
		case <-ticker.C:
			m.pollOnce(sessionID)
		}
	}
}

func (m *Monitor) pollOnce(sessionID uuid.UUID) {
	// Budget one full retry cycle, then give the transport some headroom.
	timeout := m.cfg.Interval + time.Duration(m.cfg.MaxRetries)*m.cfg.RetryDelay
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	reading, err := m.client.ReadWithRetry(ctx, m.cfg.Register, m.cfg.MaxRetries, m.cfg.RetryDelay)

	m.mu.Lock()
	m.stats.Total++
	m.stats.LastPoll = time.Now()
	if err != nil {
		m.stats.LastError = err.Error()
	} else {
		m.stats.Succeeded++
		m.stats.LastError = ""
		r := reading
		m.latest = &r
	}
	m.mu.Unlock()

	if err != nil {
		m.logger.Error("Poll failed",
			zap.String("session_id", sessionID.String()),
			zap.Int("block", m.cfg.Register.Block),
			zap.Int("offset", m.cfg.Register.Offset),
			zap.Error(err))
		m.publish(Event{SessionID: sessionID, Err: err})
		return
	}

	outOfRange := m.checkRange(reading.Value)
	if outOfRange {
		m.logger.Warn("Reading outside plausible range",
			zap.Float64("value", reading.Value))
	}

	m.publish(Event{SessionID: sessionID, Reading: &reading, OutOfRange: outOfRange})
}

func (m *Monitor) checkRange(value float64) bool {
	if m.cfg.Min != nil && value < *m.cfg.Min {
		return true
	}
	if m.cfg.Max != nil && value > *m.cfg.Max {
		return true
	}
	return false
}

func (m *Monitor) publish(ev Event) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()
	for ch := range m.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (m *Monitor) logSessionSummary(sessionID uuid.UUID) {
	stats := m.Stats()
	m.logger.Info("Monitor stopped",
		zap.String("session_id", sessionID.String()),
		zap.Uint64("total", stats.Total),
		zap.Uint64("succeeded", stats.Succeeded),
		zap.Float64("success_rate", stats.SuccessRate()))
}
