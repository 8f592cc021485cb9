// Package latency schedules travel-time effect commits, shifted earlier by
// the client's one-way latency so impact timing feels the same at any ping.
package latency

import (
	"container/heap"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CompensatedDelay is max(0, travel - rtt/2).
func CompensatedDelay(travel, roundTrip time.Duration) time.Duration {
	d := travel - roundTrip/2
	if d < 0 {
		return 0
	}
	return d
}

// TravelTime converts a distance and a projectile speed into a flight time.
// Non-positive speeds are hitscan.
func TravelTime(distance, speed float64) time.Duration {
	if speed <= 0 || distance <= 0 {
		return 0
	}
	return time.Duration(distance / speed * float64(time.Second))
}

// Commit is deferred work, run on the tick goroutine once due.
type Commit func(now time.Duration)

// Ticket identifies a scheduled commit.
type Ticket struct {
	ID    uint64
	DueAt time.Duration
}

type pending struct {
	ticket Ticket
	fn     Commit
}

type queue []pending

func (q queue) Len() int { return len(q) }
func (q queue) Less(i, j int) bool {
	if q[i].ticket.DueAt != q[j].ticket.DueAt {
		return q[i].ticket.DueAt < q[j].ticket.DueAt
	}
	return q[i].ticket.ID < q[j].ticket.ID
}
func (q queue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *queue) Push(x any)   { *q = append(*q, x.(pending)) }
func (q *queue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	old[n-1] = pending{}
	*q = old[:n-1]
	return it
}

// Compensator owns the commit queue. The round-trip estimate is always
// supplied by the caller from the connection; it is never measured here.
type Compensator struct {
	mu     sync.Mutex
	q      queue
	nextID uint64
	log    *zap.Logger
}

func NewCompensator(log *zap.Logger) *Compensator {
	return &Compensator{log: log}
}

// Delay returns the compensated delay for a travel time and round trip.
func (c *Compensator) Delay(travel, roundTrip time.Duration) time.Duration {
	return CompensatedDelay(travel, roundTrip)
}

// Schedule queues fn to run at now + CompensatedDelay(travel, roundTrip).
func (c *Compensator) Schedule(now, travel, roundTrip time.Duration, fn Commit) Ticket {
	return c.ScheduleAt(now+CompensatedDelay(travel, roundTrip), fn)
}

// ScheduleAt queues fn to run once the server clock reaches due.
func (c *Compensator) ScheduleAt(due time.Duration, fn Commit) Ticket {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	t := Ticket{ID: c.nextID, DueAt: due}
	heap.Push(&c.q, pending{ticket: t, fn: fn})
	return t
}

// Flush runs every commit due at or before now, in due order, and returns
// how many ran. Commits run without the queue lock held, so they may
// schedule further commits.
func (c *Compensator) Flush(now time.Duration) int {
	var due []pending
	c.mu.Lock()
	for c.q.Len() > 0 && c.q[0].ticket.DueAt <= now {
		due = append(due, heap.Pop(&c.q).(pending))
	}
	c.mu.Unlock()

	for _, p := range due {
		c.run(p, now)
	}
	return len(due)
}

func (c *Compensator) run(p pending, now time.Duration) {
	defer func() {
		if rec := recover(); rec != nil {
			c.log.Error("commit panic recovered",
				zap.Uint64("ticket", p.ticket.ID),
				zap.Duration("due", p.ticket.DueAt),
				zap.Any("panic", rec),
			)
		}
	}()
	p.fn(now)
}

// Pending returns the number of queued commits.
func (c *Compensator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.q.Len()
}
