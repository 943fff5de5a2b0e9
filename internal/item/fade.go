package item

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"time"
)

// FadeOptions controls a value ramp.
type FadeOptions struct {
	// Step is the absolute increment per step. Must be positive.
	Step float64

	// Delta is the cadence between steps. Zero steps as fast as possible.
	Delta time.Duration

	// StopFade lists attribution patterns that end the fade when they
	// interrupt it.
	StopFade []string

	// ContinueFade lists attribution patterns that let the fade resume
	// after an interruption. Any other interruption ends it.
	ContinueFade []string
}

// Fade outcomes reported to Metrics.FadeFinished.
const (
	FadeReached    = "reached"
	FadeStopped    = "stopped"
	FadeCancelled  = "cancelled"
	FadeSuperseded = "superseded"
)

type fadeStep int

const (
	stepReached fadeStep = iota
	stepInterrupted
	stepCancelled
)

// fader ramps one num item towards dest.
//
// The ramp keeps its own in-flight value. Interruptions clear the item's
// fade ownership and wake the fader, which then consults the stop and
// continue patterns against the item's attribution.
type fader struct {
	item  *Item
	dest  float64
	step  float64
	delta time.Duration
	stop  []*regexp.Regexp
	cont  []*regexp.Regexp

	inflight float64
	last     time.Time
	started  bool
}

// StartFade ramps the item from its current value to dest on a background
// goroutine. Intermediate values are committed with caller "fade" and are
// not persisted; dest itself is committed by an ordinary update.
//
// Calling StartFade while a fade owns the item is a no-op. Cancelling ctx
// ends the ramp where it stands.
func (it *Item) StartFade(ctx context.Context, dest any, opts FadeOptions) error {
	if it.typ != TypeNum {
		return fmt.Errorf("%w: %s", ErrNotNumeric, it.path)
	}
	d, err := castNum(dest)
	if err != nil {
		return err
	}
	if opts.Step <= 0 || math.IsNaN(opts.Step) || math.IsInf(opts.Step, 0) {
		return fmt.Errorf("%w: step must be positive", ErrInvalidFade)
	}
	if opts.Delta < 0 {
		return fmt.Errorf("%w: negative delta", ErrInvalidFade)
	}
	stop, err := compilePatterns(opts.StopFade)
	if err != nil {
		return err
	}
	cont, err := compilePatterns(opts.ContinueFade)
	if err != nil {
		return err
	}

	f := &fader{
		item:  it,
		dest:  d.(float64),
		step:  opts.Step,
		delta: opts.Delta,
		stop:  stop,
		cont:  cont,
	}

	it.mu.Lock()
	if it.fader != nil {
		it.mu.Unlock()
		return nil
	}
	it.fader = f
	f.inflight, _ = it.value.(float64)
	it.mu.Unlock()

	it.deps.Metrics.FadeStarted(it.path)
	it.deps.Logger.Debug("fade started", "item", it.path, "dest", f.dest, "step", f.step, "delta", f.delta)
	go f.run(ctx)
	return nil
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)^(?:" + p + ")")
		if err != nil {
			return nil, fmt.Errorf("%w: pattern %q: %v", ErrInvalidFade, p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func (f *fader) run(ctx context.Context) {
	outcome := f.loop(ctx)
	f.item.deps.Metrics.FadeFinished(f.item.path, outcome)
	f.item.deps.Logger.Debug("fade finished", "item", f.item.path, "outcome", outcome)
}

func (f *fader) loop(ctx context.Context) string {
	it := f.item
	for {
		switch f.ramp(ctx) {
		case stepReached:
			it.mu.Lock()
			if it.fader == f {
				it.fader = nil
			}
			it.mu.Unlock()
			if err := it.update(f.dest, CallerLogic, "fader", "", nil); err != nil {
				it.deps.Logger.Warn("fade destination rejected", "item", it.path, "error", err)
			}
			return FadeReached

		case stepCancelled:
			it.mu.Lock()
			if it.fader == f {
				it.fader = nil
			}
			it.mu.Unlock()
			return FadeCancelled

		case stepInterrupted:
			if !f.resumable(it.ChangedBy()) {
				return FadeStopped
			}
			it.mu.Lock()
			if it.fader != nil {
				it.mu.Unlock()
				return FadeSuperseded
			}
			it.fader = f
			it.mu.Unlock()
		}
	}
}

// ramp advances the in-flight value until dest is next, the fade loses
// ownership, or ctx ends.
func (f *fader) ramp(ctx context.Context) fadeStep {
	it := f.item
	for {
		if ctx.Err() != nil {
			return stepCancelled
		}

		it.mu.Lock()
		if it.fader != f {
			it.mu.Unlock()
			return stepInterrupted
		}
		next := f.next()
		// A step below the float resolution at inflight cannot move the ramp.
		if next == f.inflight || !f.before(next) {
			it.mu.Unlock()
			return stepReached
		}
		now := it.deps.Now()
		var wait time.Duration
		if f.started {
			wait = f.delta - now.Sub(f.last)
		}
		wake := it.wake
		it.mu.Unlock()

		if wait <= 0 {
			if err := it.update(next, CallerFade, "fader", "", f); err != nil {
				it.deps.Logger.Warn("fade step rejected", "item", it.path, "error", err)
				return stepCancelled
			}
			if !f.owns() {
				continue
			}
			f.inflight = next
			f.last = now
			f.started = true
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return stepCancelled
		case <-wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

func (f *fader) owns() bool {
	f.item.mu.Lock()
	defer f.item.mu.Unlock()
	return f.item.fader == f
}

func (f *fader) next() float64 {
	if f.inflight < f.dest {
		return f.inflight + f.step
	}
	return f.inflight - f.step
}

// before reports whether v lies strictly on the near side of dest.
func (f *fader) before(v float64) bool {
	if f.inflight < f.dest {
		return v < f.dest
	}
	if f.inflight > f.dest {
		return v > f.dest
	}
	return false
}

// resumable decides whether an interruption attributed to changedBy lets
// the fade continue.
func (f *fader) resumable(changedBy string) bool {
	if len(f.stop) == 0 && len(f.cont) == 0 {
		return false
	}
	if matchAny(f.stop, changedBy) {
		return false
	}
	if len(f.cont) > 0 && !matchAny(f.cont, changedBy) {
		return false
	}
	return true
}

func matchAny(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
