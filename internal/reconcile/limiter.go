package reconcile

import (
	"sync"
	"time"

	"github.com/l1jgo/simcore/internal/core/ecs"
)

const rateWindow = time.Second

// limiter allows at most n requests per entity in any one-second span. Each
// entity keeps a ring of its last n accept times; a request is allowed when
// the oldest of them has left the window.
type limiter struct {
	mu   sync.Mutex
	n    int
	logs map[ecs.EntityID]*acceptLog
}

type acceptLog struct {
	times []time.Duration // ring, len n once full
	next  int
}

func newLimiter(n int) *limiter {
	return &limiter{n: n, logs: make(map[ecs.EntityID]*acceptLog)}
}

func (l *limiter) allow(id ecs.EntityID, now time.Duration) bool {
	if l.n <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	hist, ok := l.logs[id]
	if !ok {
		hist = &acceptLog{times: make([]time.Duration, 0, l.n)}
		l.logs[id] = hist
	}
	if len(hist.times) < l.n {
		hist.times = append(hist.times, now)
		return true
	}
	// times[next] is the oldest accept still remembered.
	if now-hist.times[hist.next] < rateWindow {
		return false
	}
	hist.times[hist.next] = now
	hist.next = (hist.next + 1) % l.n
	return true
}

func (l *limiter) forget(id ecs.EntityID) {
	l.mu.Lock()
	delete(l.logs, id)
	l.mu.Unlock()
}
