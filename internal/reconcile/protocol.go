package reconcile

import (
	"fmt"
	"sync"
	"time"

	"github.com/l1jgo/simcore/internal/ability"
	"github.com/l1jgo/simcore/internal/component"
	"github.com/l1jgo/simcore/internal/core/ecs"
	"github.com/l1jgo/simcore/internal/core/event"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

type Options struct {
	RateLimit  int           // requests per entity per second; 0 = unlimited
	Timeout    time.Duration // age at which a queued request is answered with a timeout
	MaxPerTick int           // 0 = process the whole queue each tick
}

type key struct {
	entity     ecs.EntityID
	prediction uint32
}

type submission struct {
	rec   *Record
	req   Request
	rtt   time.Duration
	reply Reply
}

// Protocol queues prediction requests from any goroutine and resolves them
// on the tick goroutine at the start of the next tick.
type Protocol struct {
	engine   *ability.Engine
	registry *ecs.Registry
	bus      *event.Bus
	opts     Options
	limiter  *limiter
	log      *zap.Logger

	mu      sync.Mutex
	queue   []*submission
	pending map[key]*submission
}

func New(engine *ability.Engine, registry *ecs.Registry, bus *event.Bus, opts Options, log *zap.Logger) *Protocol {
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	return &Protocol{
		engine:   engine,
		registry: registry,
		bus:      bus,
		opts:     opts,
		limiter:  newLimiter(opts.RateLimit),
		log:      log,
		pending:  make(map[key]*submission),
	}
}

// Submit queues req for entity. roundTrip is the connection's current
// estimate and reaches ability callbacks for latency compensation.
// Rate-limited requests are answered immediately; duplicates of a request
// still in flight are dropped without a reply.
func (p *Protocol) Submit(entity ecs.EntityID, req Request, receivedAt, roundTrip time.Duration, reply Reply) error {
	k := key{entity: entity, prediction: req.PredictionID}
	if p.inFlight(k) {
		return fmt.Errorf("entity %s prediction %d: %w", entity, req.PredictionID, ErrDuplicatePrediction)
	}

	rec := &Record{
		ID:              ulid.Make(),
		Entity:          entity,
		PredictionID:    req.PredictionID,
		AbilityID:       req.AbilityID,
		ClientTimestamp: req.ClientTimestamp,
		ReceivedAt:      receivedAt,
		Status:          StatusPending,
	}

	if !p.limiter.allow(entity, receivedAt) {
		rec.Status = StatusRejected
		rec.ResolvedAt = receivedAt
		p.publish(rec, CodeRateLimited)
		deliver(reply, Response{
			PredictionID: req.PredictionID,
			AbilityID:    req.AbilityID,
			Status:       StatusRejected,
			ErrCode:      CodeRateLimited,
			ServerTime:   receivedAt,
		})
		return fmt.Errorf("entity %s: %w", entity, ErrRateLimited)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, dup := p.pending[k]; dup {
		return fmt.Errorf("entity %s prediction %d: %w", entity, req.PredictionID, ErrDuplicatePrediction)
	}
	s := &submission{rec: rec, req: req, rtt: roundTrip, reply: reply}
	p.pending[k] = s
	p.queue = append(p.queue, s)
	return nil
}

func (p *Protocol) inFlight(k key) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.pending[k]
	return ok
}

// Process resolves queued requests and returns how many it took.
func (p *Protocol) Process(now time.Duration) int {
	p.mu.Lock()
	batch := p.queue
	if p.opts.MaxPerTick > 0 && len(batch) > p.opts.MaxPerTick {
		batch = batch[:p.opts.MaxPerTick]
		p.queue = append([]*submission(nil), p.queue[p.opts.MaxPerTick:]...)
	} else {
		p.queue = nil
	}
	p.mu.Unlock()

	for _, s := range batch {
		p.handle(s, now)
	}
	return len(batch)
}

func (p *Protocol) handle(s *submission, now time.Duration) {
	if p.stale(s, now) {
		p.timeout(s, now)
		return
	}
	c, ok := p.registry.Get(s.rec.Entity)
	if !ok {
		p.drop(s)
		p.log.Debug("prediction for missing entity discarded",
			zap.Stringer("entity", s.rec.Entity),
			zap.Uint32("prediction", s.req.PredictionID),
		)
		return
	}

	res := p.engine.TryActivate(c, s.req.AbilityID, &ability.Context{
		Target:    s.req.Target,
		Direction: s.req.Direction,
		Payload:   s.req.Payload,
		RoundTrip: s.rtt,
	})
	code := ability.Code(res.Err)
	resp := Response{
		PredictionID: s.req.PredictionID,
		AbilityID:    s.req.AbilityID,
		Cooldowns:    res.Cooldowns,
		Data:         res.Data,
		ErrCode:      code,
		Err:          res.Err,
		ServerTime:   now,
	}

	status := StatusConfirmed
	if res.Success != (s.req.Expect == ExpectSuccess) {
		status = StatusCorrected
		snap := p.engine.Snapshot(c)
		corr := &Correction{
			Resources: resourceNames(snap.Resources),
			Cooldowns: snap.Cooldowns,
			Active:    snap.Active,
			Rollback:  !res.Success,
			ErrCode:   code,
		}
		if res.Err != nil {
			corr.Reason = res.Err.Error()
		}
		resp.Correction = corr
		resp.Cooldowns = snap.Cooldowns
	}
	resp.Status = status

	p.resolve(s, status, code, now)
	deliver(s.reply, resp)
}

// Sweep times out queued requests that waited longer than the timeout
// without being processed. Returns how many it resolved.
func (p *Protocol) Sweep(now time.Duration) int {
	p.mu.Lock()
	var stale []*submission
	kept := p.queue[:0]
	for _, s := range p.queue {
		if p.stale(s, now) {
			stale = append(stale, s)
			continue
		}
		kept = append(kept, s)
	}
	for i := len(kept); i < len(p.queue); i++ {
		p.queue[i] = nil
	}
	p.queue = kept
	p.mu.Unlock()

	for _, s := range stale {
		p.timeout(s, now)
	}
	return len(stale)
}

// Forget drops every queued request and rate window for entity, usually
// on disconnect. No replies are sent.
func (p *Protocol) Forget(entity ecs.EntityID) {
	p.mu.Lock()
	kept := p.queue[:0]
	for _, s := range p.queue {
		if s.rec.Entity == entity {
			delete(p.pending, key{entity: entity, prediction: s.req.PredictionID})
			continue
		}
		kept = append(kept, s)
	}
	for i := len(kept); i < len(p.queue); i++ {
		p.queue[i] = nil
	}
	p.queue = kept
	p.mu.Unlock()
	p.limiter.forget(entity)
}

// Pending returns the number of unresolved requests.
func (p *Protocol) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

func (p *Protocol) stale(s *submission, now time.Duration) bool {
	return now-s.rec.ReceivedAt > p.opts.Timeout
}

func (p *Protocol) timeout(s *submission, now time.Duration) {
	p.resolve(s, StatusTimedOut, CodeTimeout, now)
	p.log.Debug("prediction timed out",
		zap.Stringer("entity", s.rec.Entity),
		zap.Uint32("prediction", s.req.PredictionID),
		zap.Duration("age", now-s.rec.ReceivedAt),
	)
	deliver(s.reply, Response{
		PredictionID: s.req.PredictionID,
		AbilityID:    s.req.AbilityID,
		Status:       StatusTimedOut,
		ErrCode:      CodeTimeout,
		ServerTime:   now,
	})
}

func (p *Protocol) drop(s *submission) {
	p.mu.Lock()
	delete(p.pending, key{entity: s.rec.Entity, prediction: s.req.PredictionID})
	p.mu.Unlock()
}

func (p *Protocol) resolve(s *submission, status Status, code string, now time.Duration) {
	p.drop(s)
	s.rec.Status = status
	s.rec.ResolvedAt = now
	p.publish(s.rec, code)
}

func (p *Protocol) publish(rec *Record, code string) {
	event.Emit(p.bus, event.PredictionResolved{
		RecordID:        rec.ID.String(),
		Entity:          rec.Entity,
		PredictionID:    rec.PredictionID,
		AbilityID:       rec.AbilityID,
		Status:          rec.Status.String(),
		ErrCode:         code,
		ClientTimestamp: rec.ClientTimestamp,
		ReceivedAt:      rec.ReceivedAt,
		ResolvedAt:      rec.ResolvedAt,
	})
}

func deliver(reply Reply, resp Response) {
	if reply != nil {
		reply(resp)
	}
}

func resourceNames(levels map[component.ResourceKind]float64) map[string]float64 {
	out := make(map[string]float64, len(levels))
	for k, v := range levels {
		out[k.String()] = v
	}
	return out
}
