package item

import "time"

// Snapshot is a consistent copy of an item's observable state, shaped for
// JSON transports.
type Snapshot struct {
	Path       string    `json:"path"`
	Name       string    `json:"name,omitempty"`
	Type       Type      `json:"type"`
	Value      any       `json:"value"`
	ChangedBy  string    `json:"changed_by"`
	LastChange time.Time `json:"last_change"`

	// PrevAge is how long the previous value was held, in seconds.
	PrevAge float64 `json:"prev_age"`
	Fading  bool    `json:"fading"`
}

// Snapshot returns the item's state taken under one lock.
func (it *Item) Snapshot() Snapshot {
	it.mu.Lock()
	defer it.mu.Unlock()
	return Snapshot{
		Path:       it.path,
		Name:       it.name,
		Type:       it.typ,
		Value:      it.value,
		ChangedBy:  it.changedBy,
		LastChange: it.lastChange,
		PrevAge:    it.prevChange.Seconds(),
		Fading:     it.fader != nil,
	}
}
