package system

import (
	"testing"

	"github.com/l1jgo/simcore/internal/core/ecs"
	"github.com/stretchr/testify/assert"
)

type recorder struct {
	name  string
	phase Phase
	log   *[]string
}

func (r recorder) Phase() Phase              { return r.phase }
func (r recorder) Update(tc ecs.TickContext) { *r.log = append(*r.log, r.name) }

func TestRunnerOrdersByPhaseThenRegistration(t *testing.T) {
	var log []string
	r := NewRunner()
	r.Register(recorder{"cleanup", PhaseCleanup, &log})
	r.Register(recorder{"update-a", PhaseUpdate, &log})
	r.Register(recorder{"input", PhaseInput, &log})
	r.Register(recorder{"update-b", PhaseUpdate, &log})

	r.Tick(ecs.TickContext{Tick: 1})
	assert.Equal(t, []string{"input", "update-a", "update-b", "cleanup"}, log)
	assert.Equal(t, 4, r.Len())
}
