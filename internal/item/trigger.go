package item

import (
	"fmt"
	"sync"
)

// triggerGraph holds the subscribers of one item in registration order.
type triggerGraph struct {
	mu         sync.RWMutex
	callbacks  []PluginCallback
	logics     []Logic
	dependents []*Item
}

func (g *triggerGraph) snapshot() ([]PluginCallback, []Logic, []*Item) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]PluginCallback(nil), g.callbacks...),
		append([]Logic(nil), g.logics...),
		append([]*Item(nil), g.dependents...)
}

// AddPluginCallback registers a callback run after every commit.
func (it *Item) AddPluginCallback(cb PluginCallback) {
	if cb == nil {
		return
	}
	it.triggers.mu.Lock()
	defer it.triggers.mu.Unlock()
	it.triggers.callbacks = append(it.triggers.callbacks, cb)
}

// AddLogic registers a logic triggered on commits, or on threshold
// crossings when the item has a threshold.
func (it *Item) AddLogic(l Logic) {
	if l == nil {
		return
	}
	it.triggers.mu.Lock()
	defer it.triggers.mu.Unlock()
	it.triggers.logics = append(it.triggers.logics, l)
}

// AddItemTrigger registers dep to be re-evaluated after every commit of it.
// Registering an item on itself returns ErrSelfTrigger; registering the same
// dependent twice is a no-op.
func (it *Item) AddItemTrigger(dep *Item) error {
	if dep == nil {
		return nil
	}
	if dep == it {
		return fmt.Errorf("%w: %s", ErrSelfTrigger, it.path)
	}
	it.triggers.mu.Lock()
	defer it.triggers.mu.Unlock()
	for _, d := range it.triggers.dependents {
		if d == dep {
			return nil
		}
	}
	it.triggers.dependents = append(it.triggers.dependents, dep)
	return nil
}

// Dependents returns the items re-evaluated after a commit.
func (it *Item) Dependents() []*Item {
	it.triggers.mu.RLock()
	defer it.triggers.mu.RUnlock()
	return append([]*Item(nil), it.triggers.dependents...)
}

// propagate fans a committed value out to callbacks, logics and dependent
// items. It runs without holding the item lock.
func (it *Item) propagate(v any, caller CallerKind, source, dest string) {
	callbacks, logics, dependents := it.triggers.snapshot()

	for _, cb := range callbacks {
		if err := it.runCallback(cb, caller, source, dest); err != nil {
			it.deps.Metrics.CallbackFailed(it.path)
			it.deps.Logger.Error("plugin callback failed", "item", it.path, "error", err)
		}
	}

	if len(logics) > 0 {
		fire := true
		if it.threshold != nil {
			f, ok := v.(float64)
			fire = ok && it.threshold.observe(f)
		}
		if fire {
			for _, l := range logics {
				it.runLogic(l, v)
			}
		}
	}

	for _, dep := range dependents {
		it.deps.Scheduler.Dispatch(dep.path, dep.runEval, Payload{
			Value:  v,
			Caller: CallerEval,
			Source: it.path,
		}, 0)
	}
}

func (it *Item) runCallback(cb PluginCallback, caller CallerKind, source, dest string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &CallbackError{Path: it.path, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if cbErr := cb(it, caller, source, dest); cbErr != nil {
		return &CallbackError{Path: it.path, Err: cbErr}
	}
	return nil
}

func (it *Item) runLogic(l Logic, v any) {
	defer func() {
		if r := recover(); r != nil {
			it.deps.Logger.Error("logic trigger panicked", "item", it.path, "panic", r)
		}
	}()
	l.Trigger("Item", it.path, v)
}
