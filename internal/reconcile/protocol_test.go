package reconcile

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/l1jgo/simcore/internal/ability"
	"github.com/l1jgo/simcore/internal/component"
	"github.com/l1jgo/simcore/internal/core/clock"
	"github.com/l1jgo/simcore/internal/core/ecs"
	"github.com/l1jgo/simcore/internal/core/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fixture struct {
	clk      *clock.Manual
	bus      *event.Bus
	registry *ecs.Registry
	engine   *ability.Engine
	proto    *Protocol
	player   *ecs.Character
	res      *component.Resources
	replies  []Response
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	cat, err := ability.NewCatalog(&ability.Definition{
		ID:       "dash",
		Cooldown: 3 * time.Second,
		Cost:     20,
		Resource: component.ResourceStamina,
	})
	require.NoError(t, err)

	f := &fixture{
		clk:      clock.NewManual(10 * time.Second),
		bus:      event.NewBus(),
		registry: ecs.NewRegistry(),
	}
	log := zaptest.NewLogger(t)
	f.engine = ability.NewEngine(cat, f.clk, f.bus, nil, log)
	f.proto = New(f.engine, f.registry, f.bus, opts, log)

	f.player, err = f.registry.Add(ecs.NewEntityRef(ecs.KindPlayer, ecs.NewEntityID(1, 0), "player", uuid.New()))
	require.NoError(t, err)
	f.res = component.NewResources(component.Pool{Current: 100, Max: 100}, component.Pool{})
	require.NoError(t, f.player.Attach(f.engine.NewBook()))
	require.NoError(t, f.player.Attach(f.res))
	return f
}

func (f *fixture) reply(r Response) { f.replies = append(f.replies, r) }

func (f *fixture) submit(id uint32, expect Expectation) error {
	return f.proto.Submit(f.player.ID(), Request{PredictionID: id, AbilityID: "dash", Expect: expect}, f.clk.Now(), 80*time.Millisecond, f.reply)
}

func (f *fixture) resolved() []event.PredictionResolved {
	var out []event.PredictionResolved
	event.Subscribe(f.bus, func(e event.PredictionResolved) { out = append(out, e) })
	f.bus.SwapBuffers()
	f.bus.DispatchAll()
	return out
}

func TestMatchingPredictionIsConfirmed(t *testing.T) {
	f := newFixture(t, Options{RateLimit: 10})
	require.NoError(t, f.submit(1, ExpectSuccess))
	assert.Empty(t, f.replies, "nothing happens until the next tick")
	assert.Equal(t, 100.0, f.res.Stamina.Current)

	assert.Equal(t, 1, f.proto.Process(f.clk.Now()))
	require.Len(t, f.replies, 1)
	r := f.replies[0]
	assert.Equal(t, StatusConfirmed, r.Status)
	assert.Equal(t, uint32(1), r.PredictionID)
	assert.Equal(t, 13*time.Second, r.Cooldowns["dash"])
	assert.Nil(t, r.Correction)
	assert.Zero(t, f.proto.Pending())
}

func TestStaleClientCooldownIsCorrected(t *testing.T) {
	f := newFixture(t, Options{RateLimit: 10})
	require.NoError(t, f.submit(1, ExpectSuccess))
	f.proto.Process(f.clk.Now())

	// the client believes dash is ready again one second later
	f.clk.Set(11 * time.Second)
	require.NoError(t, f.submit(2, ExpectSuccess))
	f.proto.Process(f.clk.Now())

	require.Len(t, f.replies, 2)
	r := f.replies[1]
	assert.Equal(t, StatusCorrected, r.Status)
	require.NotNil(t, r.Correction)
	assert.True(t, r.Correction.Rollback)
	assert.Equal(t, ability.CodeOnCooldown, r.Correction.ErrCode)
	assert.Equal(t, 13*time.Second, r.Correction.Cooldowns["dash"])
	assert.Equal(t, 80.0, r.Correction.Resources["stamina"])
	assert.NotEmpty(t, r.Correction.Reason)
	var cd *ability.CooldownError
	require.ErrorAs(t, r.Err, &cd)
	assert.Equal(t, 2*time.Second, cd.Remaining)
}

func TestPredictedFailureIsConfirmed(t *testing.T) {
	f := newFixture(t, Options{})
	f.res.Stamina.Current = 5
	require.NoError(t, f.submit(1, ExpectFailure))
	f.proto.Process(f.clk.Now())
	require.Len(t, f.replies, 1)
	assert.Equal(t, StatusConfirmed, f.replies[0].Status)
	assert.Equal(t, ability.CodeInsufficientResource, f.replies[0].ErrCode)
	var short *ability.ResourceError
	require.ErrorAs(t, f.replies[0].Err, &short)
	assert.Equal(t, component.ResourceStamina, short.Kind)
	assert.Equal(t, 5.0, short.Have)
	assert.Equal(t, 20.0, short.Need)
}

func TestUnexpectedSuccessIsCorrectedWithoutRollback(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.submit(1, ExpectFailure))
	f.proto.Process(f.clk.Now())
	require.Len(t, f.replies, 1)
	r := f.replies[0]
	assert.Equal(t, StatusCorrected, r.Status)
	require.NotNil(t, r.Correction)
	assert.False(t, r.Correction.Rollback)
	assert.Equal(t, 80.0, r.Correction.Resources["stamina"])
}

func TestRateLimitRejectsWithoutTouchingEngine(t *testing.T) {
	f := newFixture(t, Options{RateLimit: 10})
	for i := uint32(1); i <= 10; i++ {
		require.NoError(t, f.submit(i, ExpectSuccess))
	}
	err := f.submit(11, ExpectSuccess)
	require.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, CodeRateLimited, Code(err))
	require.Len(t, f.replies, 1)
	assert.Equal(t, StatusRejected, f.replies[0].Status)
	assert.Equal(t, 10, f.proto.Pending())

	f.clk.Advance(time.Second)
	assert.NoError(t, f.submit(12, ExpectSuccess), "a new window opens after one second")
}

func TestRateLimitHoldsAcrossWindowBoundary(t *testing.T) {
	f := newFixture(t, Options{RateLimit: 10})
	pid := uint32(0)
	burst := func(n int) (accepted int) {
		for i := 0; i < n; i++ {
			pid++
			if f.submit(pid, ExpectSuccess) == nil {
				accepted++
			}
		}
		return accepted
	}

	assert.Equal(t, 1, burst(1))
	f.clk.Set(10*time.Second + 999*time.Millisecond)
	assert.Equal(t, 9, burst(9))

	// Only the accept from 10.000s has left the window at 11.000s.
	f.clk.Set(11 * time.Second)
	assert.Equal(t, 1, burst(10))

	f.clk.Set(11*time.Second + 998*time.Millisecond)
	assert.Zero(t, burst(1))
	f.clk.Set(11*time.Second + 999*time.Millisecond)
	assert.Equal(t, 9, burst(10))
}

func TestDuplicatePredictionIsIdempotent(t *testing.T) {
	f := newFixture(t, Options{RateLimit: 10})
	require.NoError(t, f.submit(7, ExpectSuccess))
	err := f.submit(7, ExpectFailure)
	assert.ErrorIs(t, err, ErrDuplicatePrediction)
	assert.Empty(t, f.replies)
	assert.Equal(t, 1, f.proto.Pending())

	f.proto.Process(f.clk.Now())
	require.Len(t, f.replies, 1)
	assert.Equal(t, StatusConfirmed, f.replies[0].Status, "the original request is the one processed")
	assert.NoError(t, f.submit(7, ExpectSuccess), "resolved ids may be reused")
}

func TestStaleRequestTimesOut(t *testing.T) {
	f := newFixture(t, Options{Timeout: 3 * time.Second})
	require.NoError(t, f.submit(1, ExpectSuccess))

	f.clk.Set(13*time.Second + time.Millisecond)
	f.proto.Process(f.clk.Now())
	require.Len(t, f.replies, 1)
	assert.Equal(t, StatusTimedOut, f.replies[0].Status)
	assert.Equal(t, CodeTimeout, f.replies[0].ErrCode)
	assert.Equal(t, 100.0, f.res.Stamina.Current, "timed out requests never reach the engine")
}

func TestSweepResolvesStarvedRequests(t *testing.T) {
	f := newFixture(t, Options{RateLimit: 10, MaxPerTick: 1})
	require.NoError(t, f.submit(1, ExpectSuccess))
	require.NoError(t, f.submit(2, ExpectSuccess))
	require.NoError(t, f.submit(3, ExpectSuccess))

	assert.Equal(t, 1, f.proto.Process(f.clk.Now()))
	assert.Equal(t, 2, f.proto.Pending())

	assert.Zero(t, f.proto.Sweep(12*time.Second))
	assert.Equal(t, 2, f.proto.Sweep(14*time.Second))
	assert.Zero(t, f.proto.Pending())
	require.Len(t, f.replies, 3)
	assert.Equal(t, StatusTimedOut, f.replies[2].Status)
}

func TestMissingEntityIsDiscarded(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.submit(1, ExpectSuccess))
	f.registry.Remove(f.player.ID())
	f.proto.Process(f.clk.Now())
	assert.Empty(t, f.replies)
	assert.Zero(t, f.proto.Pending())
}

func TestForgetDropsQueuedRequests(t *testing.T) {
	f := newFixture(t, Options{RateLimit: 2})
	require.NoError(t, f.submit(1, ExpectSuccess))
	require.NoError(t, f.submit(2, ExpectSuccess))
	f.proto.Forget(f.player.ID())
	assert.Zero(t, f.proto.Pending())
	assert.Zero(t, f.proto.Process(f.clk.Now()))
	assert.NoError(t, f.submit(3, ExpectSuccess), "rate window is reset")
}

func TestResolutionsArePublished(t *testing.T) {
	f := newFixture(t, Options{RateLimit: 1})
	require.NoError(t, f.submit(1, ExpectSuccess))
	require.ErrorIs(t, f.submit(2, ExpectSuccess), ErrRateLimited)
	f.proto.Process(f.clk.Now())

	got := f.resolved()
	require.Len(t, got, 2)
	statuses := map[uint32]string{}
	for _, e := range got {
		statuses[e.PredictionID] = e.Status
		assert.NotEmpty(t, e.RecordID)
	}
	assert.Equal(t, "confirmed", statuses[1])
	assert.Equal(t, "rejected", statuses[2])
}
