package monitor

import (
	"errors"
	"testing"
	"time"

	"github.com/pressline/encoderd/internal/s7"
	"go.uber.org/zap"
)

type fakeTransport struct {
	data     []byte
	failures int
}

func (f *fakeTransport) Connect() error { return nil }

func (f *fakeTransport) ReadBytes(block, offset, length int) ([]byte, error) {
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("connection reset")
	}
	return f.data, nil
}

func (f *fakeTransport) Close() error { return nil }

func newTestMonitor(ft *fakeTransport, cfg Config) *Monitor {
	if cfg.Register == (s7.RegisterAddress{}) {
		cfg.Register = s7.RegisterAddress{Block: 5, Offset: 124, Length: 4}
	}
	if cfg.Interval == 0 {
		cfg.Interval = 5 * time.Millisecond
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	client := s7.NewClient(s7.Endpoint{Address: "192.168.0.1"}, ft)
	return New(client, cfg, zap.NewNop())
}

func waitEvent(t *testing.T, ch chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestMonitorDeliversReadings(t *testing.T) {
	ft := &fakeTransport{data: []byte{0x42, 0xC8, 0x00, 0x00}} // 100.0
	m := newTestMonitor(ft, Config{})

	ch := m.Subscribe()
	defer m.Unsubscribe(ch)

	if err := m.Start(); err != nil {
		t.Fatalf("Start err=%v", err)
	}
	defer m.Stop()

	ev := waitEvent(t, ch)
	if ev.Err != nil {
		t.Fatalf("event err=%v", ev.Err)
	}
	if ev.Reading == nil || ev.Reading.Value != 100.0 {
		t.Fatalf("event reading=%v, want 100.0", ev.Reading)
	}
	if ev.SessionID != m.SessionID() {
		t.Errorf("event session=%v, want %v", ev.SessionID, m.SessionID())
	}

	latest, ok := m.Latest()
	if !ok || latest.Value != 100.0 {
		t.Errorf("Latest=%v ok=%v, want 100.0", latest, ok)
	}
}

func TestMonitorRecoversFromTransportFailure(t *testing.T) {
	ft := &fakeTransport{data: []byte{0x43, 0x48, 0x00, 0x00}, failures: 2}
	m := newTestMonitor(ft, Config{})

	ch := m.Subscribe()
	defer m.Unsubscribe(ch)

	if err := m.Start(); err != nil {
		t.Fatalf("Start err=%v", err)
	}
	defer m.Stop()

	// Retry budget of 3 absorbs both failures within the first cycle.
	ev := waitEvent(t, ch)
	if ev.Err != nil {
		t.Fatalf("event err=%v", ev.Err)
	}
	if ev.Reading.Value != 200.0 {
		t.Errorf("Value=%v, want 200.0", ev.Reading.Value)
	}
}

func TestMonitorReportsExhaustedRetries(t *testing.T) {
	ft := &fakeTransport{failures: 1 << 30}
	m := newTestMonitor(ft, Config{MaxRetries: 2})

	ch := m.Subscribe()
	defer m.Unsubscribe(ch)

	if err := m.Start(); err != nil {
		t.Fatalf("Start err=%v", err)
	}
	defer m.Stop()

	ev := waitEvent(t, ch)
	if ev.Err == nil {
		t.Fatal("expected error event")
	}
	var transportErr *s7.TransportError
	if !errors.As(ev.Err, &transportErr) {
		t.Errorf("event err=%v, want TransportError", ev.Err)
	}

	stats := m.Stats()
	if stats.Succeeded != 0 {
		t.Errorf("Succeeded=%d, want 0", stats.Succeeded)
	}
	if stats.LastError == "" {
		t.Error("LastError empty after failed poll")
	}
}

func TestMonitorFlagsOutOfRange(t *testing.T) {
	min, max := -50.0, 50.0
	ft := &fakeTransport{data: []byte{0x42, 0xC8, 0x00, 0x00}} // 100.0
	m := newTestMonitor(ft, Config{Min: &min, Max: &max})

	ch := m.Subscribe()
	defer m.Unsubscribe(ch)

	if err := m.Start(); err != nil {
		t.Fatalf("Start err=%v", err)
	}
	defer m.Stop()

	ev := waitEvent(t, ch)
	if !ev.OutOfRange {
		t.Error("expected out-of-range flag for 100.0 with limits [-50, 50]")
	}
	if ev.Reading == nil {
		t.Error("out-of-range readings must still be delivered")
	}
}

func TestMonitorStopIdempotent(t *testing.T) {
	ft := &fakeTransport{data: make([]byte, 4)}
	m := newTestMonitor(ft, Config{})

	if err := m.Start(); err != nil {
		t.Fatalf("Start err=%v", err)
	}
	m.Stop()
	m.Stop()

	if m.IsRunning() {
		t.Error("monitor still running after Stop")
	}
}

func TestMonitorMaxDuration(t *testing.T) {
	ft := &fakeTransport{data: make([]byte, 4)}
	m := newTestMonitor(ft, Config{MaxDuration: 30 * time.Millisecond})

	if err := m.Start(); err != nil {
		t.Fatalf("Start err=%v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for m.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("monitor did not stop itself after max duration")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Stop after self-stop must not block or panic.
	m.Stop()
}

func TestMonitorRestartNewSession(t *testing.T) {
	ft := &fakeTransport{data: make([]byte, 4)}
	m := newTestMonitor(ft, Config{})

	if err := m.Start(); err != nil {
		t.Fatalf("Start err=%v", err)
	}
	first := m.SessionID()
	m.Stop()

	if err := m.Start(); err != nil {
		t.Fatalf("second Start err=%v", err)
	}
	defer m.Stop()

	if m.SessionID() == first {
		t.Error("restart reused the previous session ID")
	}
}
