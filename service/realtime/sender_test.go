package realtime

import (
	"sync"
	"testing"
	"time"
)

// sentEvent records one Sender call. sessionID is empty for broadcasts.
type sentEvent struct {
	sessionID string
	event     string
	payload   any
}

type fakeSender struct {
	mu     sync.Mutex
	events []sentEvent
}

func (f *fakeSender) SendTo(sessionID, event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, sentEvent{sessionID: sessionID, event: event, payload: payload})
}

func (f *fakeSender) BroadcastAll(event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, sentEvent{event: event, payload: payload})
}

func (f *fakeSender) snapshot() []sentEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentEvent, len(f.events))
	copy(out, f.events)
	return out
}

func (f *fakeSender) count(event string) int {
	n := 0
	for _, e := range f.snapshot() {
		if e.event == event {
			n++
		}
	}
	return n
}

// waitCount polls until the event has been seen n times or the deadline
// passes; timer-driven paths need it.
func (f *fakeSender) waitCount(t *testing.T, event string, n int, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if f.count(event) >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d %q events, got %d", n, event, f.count(event))
}
