package item

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// Plugin inspects every typed item when the tree is built and may return a
// callback to be run after each of the item's commits.
type Plugin interface {
	Name() string
	ParseItem(it *Item) PluginCallback
}

// Node is one item definition with its nested children.
type Node struct {
	// Key is the path segment; the full path is the parent's path joined
	// with Key by a dot.
	Key      string
	Config   Config
	Children []Node
}

// Tree owns every item of the process and addresses them by path.
//
// Thread Safety: lookups are safe for concurrent use. Build, InitPrerun and
// InitRun are meant to run once, before the tree is shared.
type Tree struct {
	deps    Deps
	plugins []Plugin

	mu    sync.RWMutex
	items map[string]*Item
	order []*Item
	roots []*Item
}

// NewTree creates an empty tree whose items share deps.
func NewTree(deps Deps, plugins ...Plugin) *Tree {
	return &Tree{
		deps:    deps.withDefaults(),
		plugins: plugins,
		items:   make(map[string]*Item),
	}
}

// Build creates the items described by nodes, parents before children.
//
// Configuration errors do not stop the build: the affected item is
// registered inert and the errors are returned joined. Cached items are
// seeded from persistence, cycle and crontab entries are handed to the
// Scheduler and every plugin gets to inspect each typed item.
func (t *Tree) Build(ctx context.Context, nodes []Node) error {
	var errs []error
	for _, n := range nodes {
		errs = append(errs, t.build(ctx, nil, n)...)
	}
	return errors.Join(errs...)
}

func (t *Tree) build(ctx context.Context, parent *Item, n Node) []error {
	key := strings.TrimSpace(n.Key)
	if key == "" || strings.Contains(key, ".") {
		return []error{&ConfigError{Path: key, Field: "key", Reason: "item keys must be non-empty and contain no dots"}}
	}
	path := key
	if parent != nil {
		path = parent.path + "." + key
	}

	var errs []error
	it, err := New(path, n.Config, t.deps)
	if err != nil {
		t.deps.Logger.Error("item configuration error", "item", path, "error", err)
		errs = append(errs, err)
	}
	if err := t.register(parent, it); err != nil {
		return append(errs, err)
	}

	if it.typ != TypeNone {
		it.LoadCache(ctx)
		t.schedule(it)
		for _, p := range t.plugins {
			if cb := p.ParseItem(it); cb != nil {
				it.AddPluginCallback(cb)
				t.deps.Logger.Debug("plugin attached", "item", path, "plugin", p.Name())
			}
		}
	}

	for _, child := range n.Children {
		errs = append(errs, t.build(ctx, it, child)...)
	}
	return errs
}

func (t *Tree) register(parent *Item, it *Item) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.items[it.path]; exists {
		return fmt.Errorf("%w: %s", ErrItemExists, it.path)
	}
	it.tree = t
	it.parent = parent
	if parent != nil {
		parent.children = append(parent.children, it)
	} else {
		t.roots = append(t.roots, it)
	}
	t.items[it.path] = it
	t.order = append(t.order, it)
	return nil
}

func (t *Tree) schedule(it *Item) {
	if it.cycle == "" && it.crontab == "" {
		return
	}
	if err := t.deps.Scheduler.AddSchedule(it.path, it.runSchedule, it.crontab, it.cycle); err != nil {
		t.deps.Logger.Error("failed to schedule item", "item", it.path, "cycle", it.cycle, "crontab", it.crontab, "error", err)
	}
}

// runSchedule applies a scheduled value, or re-evaluates the item when the
// schedule carries none.
func (it *Item) runSchedule(p Payload) {
	if p.Value == nil {
		p.Caller = CallerScheduler
		it.runEval(p)
		return
	}
	if err := it.Change(p.Value, CallerScheduler, p.Source, p.Dest); err != nil {
		it.deps.Logger.Warn("scheduled value rejected", "item", it.path, "error", err)
	}
}

// Get returns the item at path.
func (t *Tree) Get(path string) (*Item, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	it, ok := t.items[path]
	return it, ok
}

// Len returns the number of registered items.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.items)
}

// All returns every item in definition order.
func (t *Tree) All() []*Item {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]*Item(nil), t.order...)
}

// Roots returns the top-level items.
func (t *Tree) Roots() []*Item {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]*Item(nil), t.roots...)
}

// Match returns the items whose path matches pattern, in definition order.
// '*' matches any run of characters, dots included. A ":attr" suffix keeps
// only items carrying that attribute.
func (t *Tree) Match(pattern string) []*Item {
	expr, attr, _ := strings.Cut(pattern, ":")
	quoted := strings.ReplaceAll(regexp.QuoteMeta(strings.TrimSpace(expr)), `\*`, `.*`)
	re, err := regexp.Compile("^" + quoted + "$")
	if err != nil {
		t.deps.Logger.Warn("invalid item pattern", "pattern", pattern, "error", err)
		return nil
	}
	attr = strings.TrimSpace(attr)

	var out []*Item
	for _, it := range t.All() {
		if !re.MatchString(it.path) {
			continue
		}
		if attr != "" {
			if _, ok := it.conf[attr]; !ok {
				continue
			}
		}
		out = append(out, it)
	}
	return out
}

// Change routes a value to the item at path.
func (t *Tree) Change(path string, value any, caller CallerKind, source string) error {
	it, ok := t.Get(path)
	if !ok {
		return fmt.Errorf("%w: %s", ErrItemNotFound, path)
	}
	return it.Change(value, caller, source, "")
}

// Watch registers l on every item matching pattern and returns how many
// items it was attached to.
func (t *Tree) Watch(pattern string, l Logic) int {
	items := t.Match(pattern)
	for _, it := range items {
		it.AddLogic(l)
	}
	return len(items)
}

// InitPrerun wires eval_trigger patterns: every matched item gets the
// evaluating item as a dependent, and aggregate evals collect the matched
// items as their sources.
func (t *Tree) InitPrerun() {
	for _, it := range t.All() {
		if len(it.evalTrigger) == 0 {
			continue
		}
		var sources []*Item
		seen := make(map[*Item]bool)
		for _, pattern := range it.evalTrigger {
			for _, src := range t.Match(pattern) {
				if seen[src] {
					continue
				}
				seen[src] = true
				if err := src.AddItemTrigger(it); err != nil {
					t.deps.Logger.Debug("skipping eval trigger", "item", it.path, "pattern", pattern, "error", err)
					continue
				}
				sources = append(sources, src)
			}
		}
		if isAggregate(it.eval) {
			it.evalSources = sources
		}
		t.deps.Logger.Debug("eval triggers wired", "item", it.path, "sources", len(sources))
	}
}

// InitRun dispatches the initial evaluation of every item that has both
// an eval expression and eval triggers.
func (t *Tree) InitRun() {
	for _, it := range t.All() {
		if it.eval == "" || len(it.evalTrigger) == 0 {
			continue
		}
		t.deps.Scheduler.Dispatch(it.path, it.runEval, Payload{Caller: CallerInit}, 0)
	}
}
