package item

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"
)

// persistTimeout bounds a single cache write made on the committing goroutine.
const persistTimeout = 5 * time.Second

// Config is the construction-time definition of an item.
type Config struct {
	Name           string
	Type           Type
	Value          any
	Cache          bool
	EnforceUpdates bool

	// Threshold is "low:high" or a single bound used for both.
	Threshold string

	// Eval is an expression for the host Evaluator, or one of the
	// aggregates "and", "or", "sum", "avg".
	Eval        string
	EvalTrigger []string

	// Autotimer is "duration=value", e.g. "5m=0".
	Autotimer string

	Cycle   string
	Crontab string

	// Attributes holds every attribute the engine does not interpret.
	// Plugins read their settings from here.
	Attributes map[string]any
}

// Item is a typed, observable value at a unique path in the item tree.
//
// Thread Safety: all methods are safe for concurrent use. Value, timestamps,
// attribution, fade ownership and autotimer are guarded by one mutex; the
// update pipeline fans out to subscribers after releasing it.
type Item struct {
	path string
	name string
	typ  Type
	cast Caster
	deps Deps

	cache          bool
	enforceUpdates bool
	threshold      *threshold
	eval           string
	evalTrigger    []string
	evalSources    []*Item
	cycle          string
	crontab        string
	conf           map[string]any

	tree     *Tree
	parent   *Item
	children []*Item

	triggers triggerGraph

	mu         sync.Mutex
	wake       chan struct{}
	value      any
	fader      *fader
	lastChange time.Time
	prevChange time.Duration
	changedBy  string
	autotimer  *autotimer
}

// New builds an item from its configuration.
//
// A *ConfigError is returned together with a non-nil item when the type is
// unknown, the initial value does not match the type, or the threshold is
// malformed. Such an item keeps its path and children but is inert: it has
// no type and rejects every typed update with ErrUntyped.
func New(path string, cfg Config, deps Deps) (*Item, error) {
	deps = deps.withDefaults()
	it := &Item{
		path:           path,
		name:           cfg.Name,
		deps:           deps,
		cache:          cfg.Cache,
		enforceUpdates: cfg.EnforceUpdates,
		eval:           strings.TrimSpace(cfg.Eval),
		evalTrigger:    append([]string(nil), cfg.EvalTrigger...),
		cycle:          strings.TrimSpace(cfg.Cycle),
		crontab:        strings.TrimSpace(cfg.Crontab),
		conf:           make(map[string]any, len(cfg.Attributes)),
		wake:           make(chan struct{}),
		lastChange:     deps.Now(),
		changedBy:      string(CallerInit) + ":",
	}
	if it.name == "" {
		it.name = path
	}
	for k, v := range cfg.Attributes {
		it.conf[k] = v
	}

	if cfg.Type == TypeNone {
		return it, nil
	}
	if !cfg.Type.Valid() {
		return it, &ConfigError{Path: path, Field: "type", Reason: fmt.Sprintf("unknown type %q", cfg.Type)}
	}

	value := ZeroValue(cfg.Type)
	if cfg.Value != nil {
		v, err := Cast(cfg.Type, cfg.Value)
		if err != nil {
			return it, &ConfigError{Path: path, Field: "value", Reason: err.Error()}
		}
		value = v
	}

	var th *threshold
	if strings.TrimSpace(cfg.Threshold) != "" {
		if cfg.Type != TypeNum {
			return it, &ConfigError{Path: path, Field: "threshold", Reason: "threshold requires type num"}
		}
		parsed, err := parseThreshold(cfg.Threshold)
		if err != nil {
			return it, &ConfigError{Path: path, Field: "threshold", Reason: err.Error()}
		}
		th = parsed
	}

	if strings.TrimSpace(cfg.Autotimer) != "" {
		at, err := parseAutotimer(cfg.Autotimer)
		if err != nil {
			deps.Logger.Warn("ignoring autotimer", "item", path, "autotimer", cfg.Autotimer, "error", err)
		} else {
			it.autotimer = at
		}
	}

	it.typ = cfg.Type
	it.cast = casters[cfg.Type]
	it.value = value
	it.threshold = th
	return it, nil
}

// Path returns the item's unique dotted path.
func (it *Item) Path() string { return it.path }

// Name returns the display name.
func (it *Item) Name() string { return it.name }

// Type returns the item's type, TypeNone for containers and inert items.
func (it *Item) Type() Type { return it.typ }

// Parent returns the parent item, nil for top-level items.
func (it *Item) Parent() *Item { return it.parent }

// Children returns the direct children in definition order.
func (it *Item) Children() []*Item {
	return append([]*Item(nil), it.children...)
}

// Value returns the current value.
func (it *Item) Value() any {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.value
}

// LastChange returns the time of the most recent commit.
func (it *Item) LastChange() time.Time {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.lastChange
}

// PrevChange returns the interval between the two most recent commits.
func (it *Item) PrevChange() time.Duration {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.prevChange
}

// ChangedBy returns the attribution of the most recent commit as
// "<caller>:<source>".
func (it *Item) ChangedBy() string {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.changedBy
}

// Age returns the time elapsed since the most recent commit.
func (it *Item) Age() time.Duration {
	it.mu.Lock()
	last := it.lastChange
	it.mu.Unlock()
	return it.deps.Now().Sub(last)
}

// Fading reports whether a fade currently owns the item.
func (it *Item) Fading() bool {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.fader != nil
}

// Cached reports whether committed values are persisted.
func (it *Item) Cached() bool { return it.cache }

// Conf returns a plugin attribute.
func (it *Item) Conf(key string) (any, bool) {
	v, ok := it.conf[key]
	return v, ok
}

// ConfBool returns a plugin attribute coerced with the bool rules.
// Missing or malformed attributes read as false.
func (it *Item) ConfBool(key string) bool {
	v, ok := it.conf[key]
	if !ok {
		return false
	}
	b, err := castBool(v)
	if err != nil {
		return false
	}
	return b.(bool)
}

// Attributes returns a copy of the plugin attribute table.
func (it *Item) Attributes() map[string]any {
	out := make(map[string]any, len(it.conf))
	for k, v := range it.conf {
		out[k] = v
	}
	return out
}

func (it *Item) String() string {
	return fmt.Sprintf("%s=%v", it.path, it.Value())
}

// Set coerces value and stores it with its attribution, without
// comparison, propagation or timestamp change.
func (it *Item) Set(value any, caller CallerKind, source string) error {
	v, err := it.coerce(value, caller, source)
	if err != nil {
		return err
	}
	it.mu.Lock()
	it.value = v
	it.changedBy = fmt.Sprintf("%s:%s", caller, source)
	it.mu.Unlock()
	it.deps.Logger.Debug("item set", "item", it.path, "value", v, "caller", caller, "source", source)
	return nil
}

// Change is the entry point for actors. Items with an eval expression
// dispatch an evaluation carrying the coerced value; all others update
// directly.
func (it *Item) Change(value any, caller CallerKind, source, dest string) error {
	v, err := it.coerce(value, caller, source)
	if err != nil {
		return err
	}
	if it.eval != "" {
		it.deps.Scheduler.Dispatch(it.path+"-eval", it.runEval, Payload{
			Value:  v,
			Caller: caller,
			Source: source,
			Dest:   dest,
		}, 0)
		return nil
	}
	return it.update(v, caller, source, dest, nil)
}

// Update commits value and propagates the change.
//
// An equal value is ignored unless the item enforces updates. A rejected
// value returns a *CoercionError and leaves the item unchanged; every
// later failure is logged only.
func (it *Item) Update(value any, caller CallerKind, source, dest string) error {
	return it.update(value, caller, source, dest, nil)
}

// update is Update with fade ownership. Fade commits are dropped unless
// owner still owns the item.
func (it *Item) update(value any, caller CallerKind, source, dest string, owner *fader) error {
	v, err := it.coerce(value, caller, source)
	if err != nil {
		return err
	}

	it.mu.Lock()
	if caller == CallerFade && (it.fader == nil || (owner != nil && it.fader != owner)) {
		it.mu.Unlock()
		return nil
	}
	if !it.enforceUpdates && Equal(it.value, v) {
		it.mu.Unlock()
		return nil
	}
	if caller != CallerFade {
		it.stopFadeLocked()
		it.deps.Logger.Debug("item changed", "item", it.path, "value", v, "caller", caller, "source", source)
	}
	now := it.deps.Now()
	if now.Before(it.lastChange) {
		now = it.lastChange
	}
	it.prevChange = now.Sub(it.lastChange)
	it.lastChange = now
	it.changedBy = fmt.Sprintf("%s:%s", caller, source)
	it.value = v
	fading := it.fader != nil
	at := it.autotimer
	it.mu.Unlock()

	it.deps.Metrics.Committed(it.path, caller)
	it.propagate(v, caller, source, dest)

	if it.cache && !fading {
		it.persist(v)
	}
	if at != nil && caller != CallerAutotimer {
		it.Timer(at.after, at.value, true)
	}
	return nil
}

func (it *Item) coerce(value any, caller CallerKind, source string) (any, error) {
	if it.cast == nil {
		return nil, fmt.Errorf("%w: %s", ErrUntyped, it.path)
	}
	v, err := it.cast(value)
	if err != nil {
		it.deps.Metrics.Rejected(it.path)
		it.deps.Logger.Error("value does not match type",
			"item", it.path, "type", it.typ, "value", value, "caller", caller, "source", source)
		return nil, err
	}
	return v, nil
}

// stopFadeLocked releases fade ownership and wakes a waiting fader.
// The caller must hold it.mu.
func (it *Item) stopFadeLocked() {
	if it.fader == nil {
		return
	}
	it.fader = nil
	close(it.wake)
	it.wake = make(chan struct{})
}

func (it *Item) persist(v any) {
	if it.deps.Persistence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := it.deps.Persistence.Write(ctx, it.path, v); err != nil {
		it.deps.Logger.Warn("cache write failed", "error", &PersistenceError{Path: it.path, Op: "write", Err: err})
	}
}

// LoadCache seeds the value from persistence. A miss, an empty record or
// an uncastable record falls back to the type's zero value.
func (it *Item) LoadCache(ctx context.Context) {
	if !it.cache || it.cast == nil || it.deps.Persistence == nil {
		return
	}
	modified, raw, err := it.deps.Persistence.Read(ctx, it.path)
	if err != nil {
		it.deps.Logger.Warn("cache read failed, using default",
			"item", it.path, "error", &PersistenceError{Path: it.path, Op: "read", Err: err})
		it.mu.Lock()
		it.value = ZeroValue(it.typ)
		it.mu.Unlock()
		return
	}
	v, err := it.cast(raw)
	if err != nil {
		it.deps.Logger.Warn("cached value does not match type, using default",
			"item", it.path, "type", it.typ, "value", raw)
		v = ZeroValue(it.typ)
	}
	it.mu.Lock()
	it.value = v
	if !modified.IsZero() {
		it.lastChange = modified
	}
	it.changedBy = string(CallerCache) + ":"
	it.mu.Unlock()
}

// Equal reports whether two canonical item values are equal.
func Equal(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
