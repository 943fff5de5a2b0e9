package item

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitOutcome(t *testing.T, m *fadeMetrics) string {
	t.Helper()
	select {
	case outcome := <-m.finished:
		return outcome
	case <-time.After(5 * time.Second):
		t.Fatal("fade did not finish")
		return ""
	}
}

func TestStartFade_Progress(t *testing.T) {
	metrics := newFadeMetrics()
	store := newMemStore()
	rec := &recorder{}
	it := newTestItem(t, "dimmer", Config{Type: TypeNum, Cache: true}, Deps{Persistence: store, Metrics: metrics})
	it.AddPluginCallback(rec.callback)

	require.NoError(t, it.StartFade(context.Background(), 10, FadeOptions{Step: 2}))
	assert.Equal(t, FadeReached, waitOutcome(t, metrics))

	assert.Equal(t, []any{2.0, 4.0, 6.0, 8.0, 10.0}, rec.values())
	commits := rec.all()
	for _, c := range commits[:4] {
		assert.Equal(t, CallerFade, c.caller)
	}
	assert.Equal(t, CallerLogic, commits[4].caller)
	assert.Equal(t, "Logic:fader", it.ChangedBy())
	assert.False(t, it.Fading())
	assert.Equal(t, []any{10.0}, store.written())
}

func TestStartFade_Downwards(t *testing.T) {
	metrics := newFadeMetrics()
	rec := &recorder{}
	it := newTestItem(t, "dimmer", Config{Type: TypeNum, Value: 10}, Deps{Metrics: metrics})
	it.AddPluginCallback(rec.callback)

	require.NoError(t, it.StartFade(context.Background(), 1, FadeOptions{Step: 3}))
	assert.Equal(t, FadeReached, waitOutcome(t, metrics))

	assert.Equal(t, []any{7.0, 4.0, 1.0}, rec.values())
}

func TestStartFade_Validation(t *testing.T) {
	str := newTestItem(t, "label", Config{Type: TypeString}, Deps{})
	assert.ErrorIs(t, str.StartFade(context.Background(), 1, FadeOptions{Step: 1}), ErrNotNumeric)

	num := newTestItem(t, "dimmer", Config{Type: TypeNum}, Deps{})
	assert.ErrorIs(t, num.StartFade(context.Background(), 1, FadeOptions{Step: 0}), ErrInvalidFade)
	assert.ErrorIs(t, num.StartFade(context.Background(), 1, FadeOptions{Step: 1, Delta: -time.Second}), ErrInvalidFade)
	assert.ErrorIs(t, num.StartFade(context.Background(), 1, FadeOptions{Step: 1, StopFade: []string{"("}}), ErrInvalidFade)

	var ce *CoercionError
	assert.ErrorAs(t, num.StartFade(context.Background(), "up", FadeOptions{Step: 1}), &ce)
	assert.ErrorAs(t, num.StartFade(context.Background(), math.Inf(1), FadeOptions{Step: 1}), &ce)
	assert.ErrorAs(t, num.StartFade(context.Background(), "-inf", FadeOptions{Step: 1}), &ce)
	assert.ErrorAs(t, num.StartFade(context.Background(), math.NaN(), FadeOptions{Step: 1}), &ce)
	assert.False(t, num.Fading())
}

func TestStartFade_StepBelowResolutionJumpsToDest(t *testing.T) {
	metrics := newFadeMetrics()
	rec := &recorder{}
	it := newTestItem(t, "counter", Config{Type: TypeNum, Value: 1e17}, Deps{Metrics: metrics})
	it.AddPluginCallback(rec.callback)

	// 1e17+1 rounds back to 1e17.
	require.NoError(t, it.StartFade(context.Background(), 2e17, FadeOptions{Step: 1}))
	assert.Equal(t, FadeReached, waitOutcome(t, metrics))

	assert.False(t, it.Fading())
	assert.Equal(t, 2e17, it.Value())
	require.Len(t, rec.all(), 1)
	assert.Equal(t, CallerLogic, rec.all()[0].caller)
}

func TestStartFade_AlreadyFadingIsNoOp(t *testing.T) {
	metrics := newFadeMetrics()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	it := newTestItem(t, "dimmer", Config{Type: TypeNum}, Deps{Metrics: metrics})

	require.NoError(t, it.StartFade(ctx, 100, FadeOptions{Step: 1, Delta: time.Hour}))
	require.Eventually(t, func() bool { return it.Value() == 1.0 }, time.Second, time.Millisecond)

	require.NoError(t, it.StartFade(ctx, 0, FadeOptions{Step: 1}))
	assert.True(t, it.Fading())

	cancel()
	assert.Equal(t, FadeCancelled, waitOutcome(t, metrics))
	assert.False(t, it.Fading())
	assert.Equal(t, 1.0, it.Value())
}

func TestStartFade_InterruptionStops(t *testing.T) {
	metrics := newFadeMetrics()
	it := newTestItem(t, "dimmer", Config{Type: TypeNum}, Deps{Metrics: metrics})

	require.NoError(t, it.StartFade(context.Background(), 100, FadeOptions{Step: 1, Delta: time.Hour}))
	require.Eventually(t, func() bool { return it.Value() == 1.0 }, time.Second, time.Millisecond)

	require.NoError(t, it.Update(50, CallerAPI, "panel", ""))

	assert.Equal(t, FadeStopped, waitOutcome(t, metrics))
	assert.False(t, it.Fading())
	assert.Equal(t, 50.0, it.Value())
	assert.Equal(t, "API:panel", it.ChangedBy())
}

func TestStartFade_StopPatternWins(t *testing.T) {
	metrics := newFadeMetrics()
	it := newTestItem(t, "dimmer", Config{Type: TypeNum}, Deps{Metrics: metrics})

	require.NoError(t, it.StartFade(context.Background(), 100, FadeOptions{
		Step:         1,
		Delta:        time.Hour,
		StopFade:     []string{"visu"},
		ContinueFade: []string{".*"},
	}))
	require.Eventually(t, func() bool { return it.Value() == 1.0 }, time.Second, time.Millisecond)

	require.NoError(t, it.Update(30, CallerVisu, "ws", ""))

	assert.Equal(t, FadeStopped, waitOutcome(t, metrics))
	assert.Equal(t, 30.0, it.Value())
}

func TestStartFade_ContinueListWithoutMatchStops(t *testing.T) {
	metrics := newFadeMetrics()
	it := newTestItem(t, "dimmer", Config{Type: TypeNum}, Deps{Metrics: metrics})

	require.NoError(t, it.StartFade(context.Background(), 100, FadeOptions{
		Step:         1,
		Delta:        time.Hour,
		ContinueFade: []string{"mqtt"},
	}))
	require.Eventually(t, func() bool { return it.Value() == 1.0 }, time.Second, time.Millisecond)

	require.NoError(t, it.Update(30, CallerAPI, "panel", ""))

	assert.Equal(t, FadeStopped, waitOutcome(t, metrics))
}

func TestStartFade_ContinuesFromInflightValue(t *testing.T) {
	metrics := newFadeMetrics()
	rec := &recorder{}
	it := newTestItem(t, "dimmer", Config{Type: TypeNum}, Deps{Metrics: metrics})
	it.AddPluginCallback(rec.callback)

	require.NoError(t, it.StartFade(context.Background(), 4, FadeOptions{
		Step:         1,
		Delta:        50 * time.Millisecond,
		ContinueFade: []string{"api:"},
	}))
	require.Eventually(t, func() bool { return it.Value() == 1.0 }, time.Second, time.Millisecond)

	require.NoError(t, it.Update(20, CallerAPI, "panel", ""))

	assert.Equal(t, FadeReached, waitOutcome(t, metrics))
	assert.False(t, it.Fading())
	assert.Equal(t, 4.0, it.Value())

	// The ramp resumes from its own in-flight value, not from 20.
	assert.Equal(t, []any{1.0, 20.0, 2.0, 3.0, 4.0}, rec.values())
}

func TestStartFade_FadeCommitsAreNotPersisted(t *testing.T) {
	metrics := newFadeMetrics()
	store := newMemStore()
	it := newTestItem(t, "dimmer", Config{Type: TypeNum, Cache: true}, Deps{Persistence: store, Metrics: metrics})

	require.NoError(t, it.StartFade(context.Background(), 100, FadeOptions{Step: 1, Delta: time.Hour}))
	require.Eventually(t, func() bool { return it.Value() == 1.0 }, time.Second, time.Millisecond)
	assert.Empty(t, store.written())

	require.NoError(t, it.Update(42, CallerAPI, "panel", ""))
	assert.Equal(t, FadeStopped, waitOutcome(t, metrics))
	assert.Equal(t, []any{42.0}, store.written())
}

func TestUpdate_ExternalFadeCallerIgnoredWhenIdle(t *testing.T) {
	it := newTestItem(t, "dimmer", Config{Type: TypeNum}, Deps{})

	require.NoError(t, it.Update(5, CallerFade, "stale", ""))

	assert.Equal(t, 0.0, it.Value())
}
