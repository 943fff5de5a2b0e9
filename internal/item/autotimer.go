package item

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// autotimer re-commits value after every change once after has elapsed.
type autotimer struct {
	after time.Duration
	value any
}

// parseAutotimer parses "duration=value".
func parseAutotimer(spec string) (*autotimer, error) {
	dur, val, ok := strings.Cut(spec, "=")
	if !ok {
		return nil, fmt.Errorf("%w: %q has no value", ErrInvalidDuration, spec)
	}
	d, err := ParseDuration(dur)
	if err != nil {
		return nil, err
	}
	return &autotimer{after: d, value: unquote(strings.TrimSpace(val))}, nil
}

// ParseDuration parses a timer duration. Plain integers are seconds and an
// "m" suffix on an integer means minutes; anything else must be a Go
// duration string such as "90s" or "1h30m".
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return time.Duration(n) * time.Second, nil
	}
	if strings.HasSuffix(s, "m") {
		if n, err := strconv.Atoi(strings.TrimSuffix(s, "m")); err == nil && n >= 0 {
			return time.Duration(n) * time.Minute, nil
		}
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: %q is negative", ErrInvalidDuration, s)
	}
	return d, nil
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

// Timer schedules value to be applied after d. A pending timer of the same
// item is replaced. With auto set the timer also becomes the item's
// autotimer and fires with caller Autotimer, otherwise with caller Timer.
func (it *Item) Timer(d time.Duration, value any, auto bool) {
	caller := CallerTimer
	if v, ok := value.(string); ok {
		value = strings.TrimSpace(v)
	}
	if auto {
		caller = CallerAutotimer
		it.mu.Lock()
		it.autotimer = &autotimer{after: d, value: value}
		it.mu.Unlock()
	}
	it.deps.Scheduler.AddOneShot(it.path+"-Timer", it.runTimer, Payload{
		Value:  value,
		Caller: caller,
	}, it.deps.Now().Add(d))
}

func (it *Item) runTimer(p Payload) {
	if err := it.Change(p.Value, p.Caller, "", ""); err != nil {
		it.deps.Logger.Warn("timer value rejected", "item", it.path, "error", err)
	}
}

// SetAutotimer makes every commit not made by the autotimer itself arm a
// timer that applies value after d.
func (it *Item) SetAutotimer(d time.Duration, value any) {
	it.mu.Lock()
	it.autotimer = &autotimer{after: d, value: value}
	it.mu.Unlock()
}

// ClearAutotimer removes the autotimer. A timer already armed still fires.
func (it *Item) ClearAutotimer() {
	it.mu.Lock()
	it.autotimer = nil
	it.mu.Unlock()
}

// Autotimer returns the configured autotimer, if any.
func (it *Item) Autotimer() (time.Duration, any, bool) {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.autotimer == nil {
		return 0, nil, false
	}
	return it.autotimer.after, it.autotimer.value, true
}
