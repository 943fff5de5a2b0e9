package item

import (
	"strconv"
	"strings"
	"sync"
)

// threshold is a hysteresis detector over a numeric value.
// It reports a crossing when the value rises to high or falls back to low.
type threshold struct {
	low, high float64

	mu      sync.Mutex
	crossed bool
}

// parseThreshold parses "low:high" or a single bound used for both.
// The split is on the last colon.
func parseThreshold(spec string) (*threshold, error) {
	spec = strings.TrimSpace(spec)
	lowStr, highStr := "", spec
	if i := strings.LastIndex(spec, ":"); i >= 0 {
		lowStr, highStr = spec[:i], spec[i+1:]
	}
	if strings.TrimSpace(lowStr) == "" {
		lowStr = highStr
	}
	low, err := strconv.ParseFloat(strings.TrimSpace(lowStr), 64)
	if err != nil {
		return nil, err
	}
	high, err := strconv.ParseFloat(strings.TrimSpace(highStr), 64)
	if err != nil {
		return nil, err
	}
	return &threshold{low: low, high: high}, nil
}

// observe feeds one committed value and reports whether it crossed a bound.
func (t *threshold) observe(v float64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case t.crossed && v <= t.low:
		t.crossed = false
		return true
	case !t.crossed && v >= t.high:
		t.crossed = true
		return true
	}
	return false
}

// isCrossed reports whether the detector is currently above its high bound.
func (t *threshold) isCrossed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.crossed
}

func (t *threshold) bounds() (low, high float64) {
	return t.low, t.high
}
