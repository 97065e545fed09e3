package realtime

import (
	"sync"

	"CounselPortal/logger"
	"CounselPortal/tools/safe"
)

type fanoutJob struct {
	sessions []string
	event    string
	payload  any
}

// Fanout is a bounded worker pool for conversation fan-out. Delivery order
// across jobs is not guaranteed; per-session ordering is restored by the
// transport's single writer goroutine per connection.
type Fanout struct {
	jobs chan fanoutJob

	// guards closed against Deliver; Close never races a pending enqueue
	mu     sync.Mutex
	closed bool
}

func NewFanout(sender Sender, workers, queue int) *Fanout {
	if workers <= 0 {
		workers = 1
	}
	if queue <= 0 {
		queue = 256
	}
	f := &Fanout{jobs: make(chan fanoutJob, queue)}
	for i := 0; i < workers; i++ {
		safe.Go(func() {
			for job := range f.jobs {
				for _, sid := range job.sessions {
					sender.SendTo(sid, job.event, job.payload)
				}
			}
		})
	}
	return f
}

// Deliver enqueues one event for the given sessions. When the queue is
// full or the pool is closed the job is dropped; relay delivery is
// fire-and-forget.
func (f *Fanout) Deliver(sessions []string, event string, payload any) {
	if len(sessions) == 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	select {
	case f.jobs <- fanoutJob{sessions: sessions, event: event, payload: payload}:
	default:
		logger.Warnf("[fanout] queue full, dropping %s for %d sessions", event, len(sessions))
	}
}

func (f *Fanout) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	close(f.jobs)
}
