package scripting

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/l1jgo/simcore/internal/core/clock"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// ErrNoScript is returned when an ability id has no registered script.
var ErrNoScript = errors.New("no script for ability")

// Engine wraps a single gopher-lua VM for scripted abilities. Calls are
// serialised by mu; ability activations on different casters may arrive
// from different goroutines.
type Engine struct {
	mu  sync.Mutex
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts from the given directory.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	vm.SetGlobal("API_VERSION", lua.LNumber(1))
	vm.SetGlobal("abilities", vm.NewTable())

	e := &Engine{vm: vm, log: log}

	// Shared helpers first, then ability scripts
	for _, sub := range []string{"core", "ability"} {
		p := filepath.Join(scriptsDir, sub)
		if err := e.loadDir(p); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load %s scripts: %w", sub, err)
		}
	}

	e.log.Info("scripts loaded", zap.Int("abilities", len(e.Abilities())))
	return e, nil
}

// loadDir loads all .lua files in a directory, in name order.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// AbilityContext is the read-only view a script receives.
type AbilityContext struct {
	Caster    uint64
	Target    uint64 // 0 = no target
	Now       time.Duration
	Health    float64
	MaxHealth float64
	Resources map[string]float64
	Distance  float64 // to target; negative when unknown
	Payload   map[string]any
}

// Action is one thing an apply script asks the server to do.
type Action struct {
	Kind      string // "effect" or "dash"
	Target    string // "self" or "target"
	EffectID  string
	Magnitude float64
	Duration  time.Duration // 0 = effect default
	Distance  float64       // dash length
}

// Abilities returns the sorted ids registered in the abilities table.
func (e *Engine) Abilities() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	var ids []string
	if t, ok := e.vm.GetGlobal("abilities").(*lua.LTable); ok {
		t.ForEach(func(k, _ lua.LValue) {
			if s, ok := k.(lua.LString); ok {
				ids = append(ids, string(s))
			}
		})
	}
	sort.Strings(ids)
	return ids
}

// Has reports whether id has a script.
func (e *Engine) Has(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.entry(id) != nil
}

func (e *Engine) entry(id string) *lua.LTable {
	t, ok := e.vm.GetGlobal("abilities").(*lua.LTable)
	if !ok {
		return nil
	}
	ent, _ := t.RawGetString(id).(*lua.LTable)
	return ent
}

// Validate calls abilities[id].validate(ctx). A missing validate passes;
// a script error fails with the error as the reason.
func (e *Engine) Validate(id string, ctx AbilityContext) (bool, string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent := e.entry(id)
	if ent == nil {
		return false, ErrNoScript.Error()
	}
	fn, ok := ent.RawGetString("validate").(*lua.LFunction)
	if !ok {
		return true, ""
	}

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    2,
		Protect: true,
	}, e.contextTable(ctx)); err != nil {
		e.log.Warn("lua validate error", zap.String("ability", id), zap.Error(err))
		return false, err.Error()
	}

	reason := e.vm.Get(-1)
	okv := e.vm.Get(-2)
	e.vm.Pop(2)

	if lua.LVAsBool(okv) {
		return true, ""
	}
	return false, lua.LVAsString(reason)
}

// Apply calls abilities[id].apply(ctx) and returns the requested actions
// and any extra result data.
func (e *Engine) Apply(id string, ctx AbilityContext) ([]Action, map[string]any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent := e.entry(id)
	if ent == nil {
		return nil, nil, fmt.Errorf("%w %q", ErrNoScript, id)
	}
	fn, ok := ent.RawGetString("apply").(*lua.LFunction)
	if !ok {
		return nil, nil, nil
	}

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, e.contextTable(ctx)); err != nil {
		return nil, nil, fmt.Errorf("lua apply %s: %w", id, err)
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	rt, ok := result.(*lua.LTable)
	if !ok {
		return nil, nil, nil
	}

	var actions []Action
	if list, ok := rt.RawGetString("actions").(*lua.LTable); ok {
		list.ForEach(func(_, v lua.LValue) {
			at, ok := v.(*lua.LTable)
			if !ok {
				return
			}
			a := Action{
				Kind:      lStr(at, "kind"),
				Target:    lStr(at, "target"),
				EffectID:  lStr(at, "effect"),
				Magnitude: lFloat(at, "magnitude"),
				Duration:  clock.Seconds(lFloat(at, "duration")),
				Distance:  lFloat(at, "distance"),
			}
			if a.Target == "" {
				a.Target = "self"
			}
			actions = append(actions, a)
		})
	}

	var data map[string]any
	if dt, ok := rt.RawGetString("data").(*lua.LTable); ok {
		if m, ok := fromLua(dt).(map[string]any); ok {
			data = m
		}
	}
	return actions, data, nil
}

func (e *Engine) contextTable(ctx AbilityContext) *lua.LTable {
	t := e.vm.NewTable()
	t.RawSetString("caster", lua.LNumber(ctx.Caster))
	t.RawSetString("target", lua.LNumber(ctx.Target))
	t.RawSetString("has_target", lua.LBool(ctx.Target != 0))
	t.RawSetString("now", lua.LNumber(ctx.Now.Seconds()))
	t.RawSetString("health", lua.LNumber(ctx.Health))
	t.RawSetString("max_health", lua.LNumber(ctx.MaxHealth))
	t.RawSetString("distance", lua.LNumber(ctx.Distance))

	res := e.vm.NewTable()
	for k, v := range ctx.Resources {
		res.RawSetString(k, lua.LNumber(v))
	}
	t.RawSetString("resources", res)
	t.RawSetString("payload", e.toLua(ctx.Payload))
	return t
}

// --- Lua helpers ---

// lStr reads a string field from a Lua table.
func lStr(t *lua.LTable, key string) string {
	v := t.RawGetString(key)
	if v == lua.LNil {
		return ""
	}
	return lua.LVAsString(v)
}

func lFloat(t *lua.LTable, key string) float64 {
	return float64(lua.LVAsNumber(t.RawGetString(key)))
}

func (e *Engine) toLua(v any) lua.LValue {
	switch x := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(x)
	case string:
		return lua.LString(x)
	case int:
		return lua.LNumber(x)
	case int8:
		return lua.LNumber(x)
	case int16:
		return lua.LNumber(x)
	case int32:
		return lua.LNumber(x)
	case int64:
		return lua.LNumber(x)
	case uint8:
		return lua.LNumber(x)
	case uint16:
		return lua.LNumber(x)
	case uint32:
		return lua.LNumber(x)
	case uint64:
		return lua.LNumber(x)
	case float32:
		return lua.LNumber(x)
	case float64:
		return lua.LNumber(x)
	case []any:
		t := e.vm.NewTable()
		for _, item := range x {
			t.Append(e.toLua(item))
		}
		return t
	case map[string]any:
		t := e.vm.NewTable()
		for k, item := range x {
			t.RawSetString(k, e.toLua(item))
		}
		return t
	default:
		return lua.LString(fmt.Sprint(x))
	}
}

// fromLua converts a Lua value to plain Go. Tables with only integer keys
// 1..n become slices.
func fromLua(v lua.LValue) any {
	switch x := v.(type) {
	case lua.LBool:
		return bool(x)
	case lua.LNumber:
		return float64(x)
	case lua.LString:
		return string(x)
	case *lua.LTable:
		if n := x.Len(); n > 0 {
			out := make([]any, 0, n)
			for i := 1; i <= n; i++ {
				out = append(out, fromLua(x.RawGetInt(i)))
			}
			return out
		}
		out := make(map[string]any)
		x.ForEach(func(k, val lua.LValue) {
			out[lua.LVAsString(k)] = fromLua(val)
		})
		return out
	default:
		return nil
	}
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vm.Close()
}
