package system

import (
	"context"
	"time"

	"github.com/l1jgo/simcore/internal/core/ecs"
	"github.com/l1jgo/simcore/internal/core/event"
	coresys "github.com/l1jgo/simcore/internal/core/system"
	"github.com/l1jgo/simcore/internal/persist"
	"go.uber.org/zap"
)

// JournalWriter stores a batch of resolved predictions. *persist.JournalRepo
// is one.
type JournalWriter interface {
	WriteBatch(ctx context.Context, entries []persist.JournalEntry) error
}

const journalWriteTimeout = 5 * time.Second

// JournalSystem collects resolved predictions from the event bus and hands
// them to a background writer every interval ticks, so the tick loop never
// waits on the database. Phase 5 (Persist).
type JournalSystem struct {
	writer    JournalWriter
	batches   chan []persist.JournalEntry
	buf       []persist.JournalEntry
	interval  int
	tickCount int
	dropped   int
	log       *zap.Logger
}

func NewJournalSystem(bus *event.Bus, writer JournalWriter, intervalTicks, queueDepth int, log *zap.Logger) *JournalSystem {
	if intervalTicks < 1 {
		intervalTicks = 1
	}
	if queueDepth < 1 {
		queueDepth = 1
	}
	s := &JournalSystem{
		writer:   writer,
		batches:  make(chan []persist.JournalEntry, queueDepth),
		interval: intervalTicks,
		log:      log,
	}
	event.Subscribe(bus, s.record)
	return s
}

func (s *JournalSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *JournalSystem) record(ev event.PredictionResolved) {
	s.buf = append(s.buf, persist.JournalEntry{
		ID:              ev.RecordID,
		Entity:          uint64(ev.Entity),
		PredictionID:    ev.PredictionID,
		AbilityID:       ev.AbilityID,
		Status:          ev.Status,
		ErrCode:         ev.ErrCode,
		ClientTimestamp: ev.ClientTimestamp,
		ReceivedAt:      ev.ReceivedAt,
		ResolvedAt:      ev.ResolvedAt,
	})
}

func (s *JournalSystem) Update(_ ecs.TickContext) {
	s.tickCount++
	if s.tickCount < s.interval {
		return
	}
	s.tickCount = 0
	s.handOff()
}

func (s *JournalSystem) handOff() {
	if len(s.buf) == 0 {
		return
	}
	select {
	case s.batches <- s.buf:
	default:
		s.dropped += len(s.buf)
		s.log.Warn("journal queue full, batch dropped",
			zap.Int("entries", len(s.buf)),
			zap.Int("dropped_total", s.dropped),
		)
	}
	s.buf = nil
}

// Dropped returns how many entries were discarded because the writer fell
// behind.
func (s *JournalSystem) Dropped() int { return s.dropped }

// Run writes handed-off batches until ctx is cancelled and the queue is
// closed by Stop. Write errors are logged and the batch is discarded.
func (s *JournalSystem) Run(ctx context.Context) {
	for batch := range s.batches {
		s.write(ctx, batch)
	}
}

func (s *JournalSystem) write(ctx context.Context, batch []persist.JournalEntry) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalWriteTimeout)
	defer cancel()
	if err := s.writer.WriteBatch(wctx, batch); err != nil {
		s.log.Error("journal write failed", zap.Int("entries", len(batch)), zap.Error(err))
		return
	}
	s.log.Debug("journal written", zap.Int("entries", len(batch)))
}

// Stop hands off whatever is buffered and closes the queue. Call it from the
// tick goroutine after the last tick; Run returns once the queue drains.
func (s *JournalSystem) Stop() {
	if len(s.buf) > 0 {
		// The last batch must not be lost to a full queue.
		s.batches <- s.buf
		s.buf = nil
	}
	close(s.batches)
}
