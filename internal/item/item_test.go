package item

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestItem(t *testing.T, path string, cfg Config, deps Deps) *Item {
	t.Helper()
	it, err := New(path, cfg, deps)
	require.NoError(t, err)
	return it
}

func TestNew_Defaults(t *testing.T) {
	it := newTestItem(t, "living.light", Config{Type: TypeNum}, Deps{})

	assert.Equal(t, "living.light", it.Path())
	assert.Equal(t, "living.light", it.Name())
	assert.Equal(t, TypeNum, it.Type())
	assert.Equal(t, float64(0), it.Value())
	assert.False(t, it.Fading())
	assert.Equal(t, "Init:", it.ChangedBy())
}

func TestNew_ConfigErrorsLeaveItemInert(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		field string
	}{
		{"unknown type", Config{Type: "colour"}, "type"},
		{"bad initial value", Config{Type: TypeNum, Value: "abc"}, "value"},
		{"bad threshold", Config{Type: TypeNum, Threshold: "a:b"}, "threshold"},
		{"threshold on str", Config{Type: TypeString, Threshold: "1:2"}, "threshold"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it, err := New("x", tt.cfg, Deps{})
			var ce *ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
			require.NotNil(t, it)

			assert.Equal(t, TypeNone, it.Type())
			assert.ErrorIs(t, it.Update(1, CallerLogic, "test", ""), ErrUntyped)
		})
	}
}

func TestNew_BadAutotimerIgnored(t *testing.T) {
	it := newTestItem(t, "x", Config{Type: TypeNum, Autotimer: "5m"}, Deps{})
	_, _, ok := it.Autotimer()
	assert.False(t, ok)
	require.NoError(t, it.Update(1, CallerLogic, "test", ""))
}

func TestUpdate_CommitsAndAttributes(t *testing.T) {
	clock := &fixedClock{now: t0}
	it := newTestItem(t, "x", Config{Type: TypeNum}, Deps{Now: clock.Now})

	clock.Advance(10 * time.Second)
	require.NoError(t, it.Update("5", CallerAPI, "panel", ""))
	clock.Advance(3 * time.Second)
	require.NoError(t, it.Update(6, CallerMQTT, "bridge", ""))

	assert.Equal(t, float64(6), it.Value())
	assert.Equal(t, "MQTT:bridge", it.ChangedBy())
	assert.Equal(t, t0.Add(13*time.Second), it.LastChange())
	assert.Equal(t, 3*time.Second, it.PrevChange())

	clock.Advance(time.Minute)
	assert.Equal(t, time.Minute, it.Age())
}

func TestUpdate_CoercionErrorHasNoEffect(t *testing.T) {
	rec := &recorder{}
	it := newTestItem(t, "x", Config{Type: TypeNum, Value: 3}, Deps{})
	it.AddPluginCallback(rec.callback)

	err := it.Update("not a number", CallerLogic, "test", "")

	var ce *CoercionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, float64(3), it.Value())
	assert.Equal(t, "Init:", it.ChangedBy())
	assert.Empty(t, rec.all())
}

func TestUpdate_Idempotent(t *testing.T) {
	sched := newQueueScheduler()
	rec := &recorder{}
	src := newTestItem(t, "src", Config{Type: TypeNum}, Deps{Scheduler: sched})
	dep := newTestItem(t, "dep", Config{Type: TypeNum}, Deps{Scheduler: sched})
	require.NoError(t, src.AddItemTrigger(dep))
	src.AddPluginCallback(rec.callback)

	require.NoError(t, src.Update(5, CallerLogic, "a", ""))
	last := src.LastChange()
	require.NoError(t, src.Update(5.0, CallerLogic, "b", ""))

	assert.Len(t, rec.all(), 1)
	assert.Len(t, sched.pending(), 1)
	assert.Equal(t, "Logic:a", src.ChangedBy())
	assert.Equal(t, last, src.LastChange())
}

func TestUpdate_EnforceUpdates(t *testing.T) {
	rec := &recorder{}
	it := newTestItem(t, "x", Config{Type: TypeBool, EnforceUpdates: true}, Deps{})
	it.AddPluginCallback(rec.callback)

	require.NoError(t, it.Update(true, CallerLogic, "", ""))
	require.NoError(t, it.Update("on", CallerLogic, "", ""))

	assert.Len(t, rec.all(), 2)
}

func TestSet_NoPropagation(t *testing.T) {
	clock := &fixedClock{now: t0}
	rec := &recorder{}
	store := newMemStore()
	it := newTestItem(t, "x", Config{Type: TypeString, Cache: true}, Deps{Persistence: store, Now: clock.Now})
	it.AddPluginCallback(rec.callback)

	clock.Advance(time.Hour)
	require.NoError(t, it.Set(12, CallerLogic, "script"))

	assert.Equal(t, "12", it.Value())
	assert.Equal(t, "Logic:script", it.ChangedBy())
	assert.Equal(t, t0, it.LastChange())
	assert.Empty(t, rec.all())
	assert.Empty(t, store.written())

	var ce *CoercionError
	assert.ErrorAs(t, it.Set(true, CallerAPI, "panel"), &ce)
	assert.Equal(t, "Logic:script", it.ChangedBy())
}

func TestUpdate_CallbacksIsolated(t *testing.T) {
	var calls []string
	it := newTestItem(t, "x", Config{Type: TypeNum}, Deps{})
	it.AddPluginCallback(func(*Item, CallerKind, string, string) error {
		calls = append(calls, "first")
		return errors.New("boom")
	})
	it.AddPluginCallback(func(*Item, CallerKind, string, string) error {
		calls = append(calls, "second")
		panic("kaboom")
	})
	it.AddPluginCallback(func(*Item, CallerKind, string, string) error {
		calls = append(calls, "third")
		return nil
	})

	require.NoError(t, it.Update(1, CallerLogic, "", ""))
	assert.Equal(t, []string{"first", "second", "third"}, calls)
}

func TestRunCallback_WrapsErrors(t *testing.T) {
	it := newTestItem(t, "x", Config{Type: TypeNum}, Deps{})
	cause := errors.New("boom")

	err := it.runCallback(func(*Item, CallerKind, string, string) error { return cause }, CallerLogic, "", "")

	var cbErr *CallbackError
	require.ErrorAs(t, err, &cbErr)
	assert.Equal(t, "x", cbErr.Path)
	assert.ErrorIs(t, err, cause)
}

func TestUpdate_LogicsFireWithoutThreshold(t *testing.T) {
	var got []any
	it := newTestItem(t, "x", Config{Type: TypeNum}, Deps{})
	it.AddLogic(LogicFunc(func(kind, source string, value any) {
		assert.Equal(t, "Item", kind)
		assert.Equal(t, "x", source)
		got = append(got, value)
	}))

	require.NoError(t, it.Update(1, CallerLogic, "", ""))
	require.NoError(t, it.Update(2, CallerLogic, "", ""))

	assert.Equal(t, []any{float64(1), float64(2)}, got)
}

func TestUpdate_DependentsDispatchedNotInline(t *testing.T) {
	sched := newQueueScheduler()
	echo := evalFunc(func(_ string, env EvalEnv) (any, error) {
		n, err := castNum(env.Value)
		if err != nil {
			return nil, err
		}
		return n.(float64) * 2, nil
	})
	deps := Deps{Scheduler: sched, Evaluator: echo}
	src := newTestItem(t, "src", Config{Type: TypeNum}, deps)
	dep := newTestItem(t, "dep", Config{Type: TypeNum, Eval: "value * 2"}, deps)
	require.NoError(t, src.AddItemTrigger(dep))

	require.NoError(t, src.Update(4, CallerAPI, "panel", ""))

	assert.Equal(t, float64(0), dep.Value())
	pending := sched.pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "dep", pending[0].name)
	assert.Equal(t, Payload{Value: float64(4), Caller: CallerEval, Source: "src"}, pending[0].payload)

	sched.drain()
	assert.Equal(t, float64(8), dep.Value())
	assert.Equal(t, "Eval:src", dep.ChangedBy())
}

func TestChange_RoutesThroughEval(t *testing.T) {
	sched := newQueueScheduler()
	var seen EvalEnv
	ev := evalFunc(func(_ string, env EvalEnv) (any, error) {
		seen = env
		return env.Value, nil
	})
	it := newTestItem(t, "x", Config{Type: TypeNum, Eval: "value"}, Deps{Scheduler: sched, Evaluator: ev})

	require.NoError(t, it.Change("7", CallerVisu, "ws", "dst"))
	assert.Equal(t, float64(0), it.Value())

	sched.drain()
	assert.Equal(t, float64(7), it.Value())
	assert.Equal(t, "Visu:ws", it.ChangedBy())
	assert.Equal(t, CallerVisu, seen.Caller)
	assert.Equal(t, "dst", seen.Dest)
	assert.Same(t, it, seen.Item)

	var ce *CoercionError
	assert.ErrorAs(t, it.Change("x", CallerVisu, "ws", ""), &ce)
}

func TestChange_WithoutEvalUpdatesDirectly(t *testing.T) {
	it := newTestItem(t, "x", Config{Type: TypeNum}, Deps{})
	require.NoError(t, it.Change(3, CallerAPI, "", ""))
	assert.Equal(t, float64(3), it.Value())
}

func TestUpdate_Persistence(t *testing.T) {
	store := newMemStore()
	it := newTestItem(t, "x", Config{Type: TypeNum, Cache: true}, Deps{Persistence: store})

	require.NoError(t, it.Update(3, CallerLogic, "", ""))
	assert.Equal(t, []any{float64(3)}, store.written())

	store.err = errors.New("disk full")
	require.NoError(t, it.Update(4, CallerLogic, "", ""))
	assert.Equal(t, float64(4), it.Value())
}

func TestUpdate_ArmsAutotimer(t *testing.T) {
	clock := &fixedClock{now: t0}
	sched := newQueueScheduler()
	it := newTestItem(t, "x", Config{Type: TypeNum, Autotimer: "5m = 0"}, Deps{Scheduler: sched, Now: clock.Now})

	require.NoError(t, it.Update(1, CallerLogic, "", ""))

	shot, ok := sched.takeOneShot("x-Timer")
	require.True(t, ok)
	assert.Equal(t, t0.Add(5*time.Minute), shot.when)
	assert.Equal(t, Payload{Value: "0", Caller: CallerAutotimer}, shot.payload)

	shot.job(shot.payload)
	assert.Equal(t, float64(0), it.Value())
	assert.Equal(t, "Autotimer:", it.ChangedBy())

	_, rearmed := sched.takeOneShot("x-Timer")
	assert.False(t, rearmed)
}

func TestUpdate_NoOpDoesNotArmAutotimer(t *testing.T) {
	sched := newQueueScheduler()
	it := newTestItem(t, "x", Config{Type: TypeNum, Value: 1, Autotimer: "10=0"}, Deps{Scheduler: sched})

	require.NoError(t, it.Update(1, CallerLogic, "", ""))

	_, ok := sched.takeOneShot("x-Timer")
	assert.False(t, ok)
}

func TestTimer(t *testing.T) {
	clock := &fixedClock{now: t0}
	sched := newQueueScheduler()
	it := newTestItem(t, "x", Config{Type: TypeBool}, Deps{Scheduler: sched, Now: clock.Now})

	it.Timer(30*time.Second, " on ", false)

	shot, ok := sched.takeOneShot("x-Timer")
	require.True(t, ok)
	assert.Equal(t, Payload{Value: "on", Caller: CallerTimer}, shot.payload)
	_, _, auto := it.Autotimer()
	assert.False(t, auto)

	shot.job(shot.payload)
	assert.Equal(t, true, it.Value())

	it.SetAutotimer(time.Minute, false)
	d, v, auto := it.Autotimer()
	assert.True(t, auto)
	assert.Equal(t, time.Minute, d)
	assert.Equal(t, false, v)

	it.ClearAutotimer()
	_, _, auto = it.Autotimer()
	assert.False(t, auto)
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"30", 30 * time.Second, false},
		{" 5m ", 5 * time.Minute, false},
		{"90s", 90 * time.Second, false},
		{"1h30m", 90 * time.Minute, false},
		{"-5", 0, true},
		{"soon", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidDuration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUpdate_ConcurrentTotalOrder(t *testing.T) {
	const writers = 50
	var commits atomic.Int32
	it := newTestItem(t, "x", Config{Type: TypeNum}, Deps{})
	it.AddPluginCallback(func(*Item, CallerKind, string, string) error {
		commits.Add(1)
		return nil
	})

	var wg sync.WaitGroup
	for i := 1; i <= writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			assert.NoError(t, it.Update(n, CallerAPI, strconv.Itoa(n), ""))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(writers), commits.Load())
	final := it.Value().(float64)
	assert.Equal(t, fmt.Sprintf("API:%d", int(final)), it.ChangedBy())
}

func TestConfBool(t *testing.T) {
	it := newTestItem(t, "x", Config{Type: TypeNum, Attributes: map[string]any{
		"mqtt":    "yes",
		"history": 0,
		"knx":     "1/2/3",
	}}, Deps{})

	assert.True(t, it.ConfBool("mqtt"))
	assert.False(t, it.ConfBool("history"))
	assert.False(t, it.ConfBool("knx"))
	assert.False(t, it.ConfBool("missing"))

	v, ok := it.Conf("knx")
	assert.True(t, ok)
	assert.Equal(t, "1/2/3", v)
}

func TestSnapshot(t *testing.T) {
	clock := &fixedClock{now: t0}
	it := newTestItem(t, "hall.temp", Config{Name: "Hall", Type: TypeNum}, Deps{Now: clock.Now})

	clock.Advance(4 * time.Second)
	require.NoError(t, it.Update(19.5, CallerAPI, "panel", ""))

	snap := it.Snapshot()
	assert.Equal(t, Snapshot{
		Path:       "hall.temp",
		Name:       "Hall",
		Type:       TypeNum,
		Value:      19.5,
		ChangedBy:  "API:panel",
		LastChange: t0.Add(4 * time.Second),
		PrevAge:    4,
	}, snap)
}
