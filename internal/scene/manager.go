package scene

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/gray-logic-items/internal/item"
)

const (
	fileExt       = ".yaml"
	learnedSuffix = "_learned"
	filePerm      = 0600
)

// Logger defines the logging interface used by the scene manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Lookup resolves action targets. *item.Tree implements it.
type Lookup interface {
	Get(path string) (*item.Item, bool)
}

type loaded struct {
	states  Definition
	learned map[string]any
}

// Manager drives scene items.
//
// It is an item.Plugin: every scene-typed item gets its definition loaded
// from <dir>/<path>.yaml while the tree is built, plus a callback that
// applies or learns a state whenever the item's value changes.
//
// Thread Safety: all methods are safe for concurrent use.
type Manager struct {
	dir    string
	logger Logger

	mu     sync.RWMutex
	lookup Lookup
	scenes map[string]*loaded
}

var _ item.Plugin = (*Manager)(nil)

// New creates a Manager reading scene files from dir.
func New(dir string, logger Logger) *Manager {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Manager{
		dir:    dir,
		logger: logger,
		scenes: make(map[string]*loaded),
	}
}

// Bind sets the tree action targets are resolved in. It must be called
// before any scene value changes.
func (m *Manager) Bind(lookup Lookup) {
	m.mu.Lock()
	m.lookup = lookup
	m.mu.Unlock()
}

// Name implements item.Plugin.
func (m *Manager) Name() string { return "scene" }

// ParseItem loads the definition of scene items. Items without a scene
// file are left alone.
func (m *Manager) ParseItem(it *item.Item) item.PluginCallback {
	if it.Type() != item.TypeScene {
		return nil
	}
	def, err := m.readDefinition(it.Path())
	if errors.Is(err, fs.ErrNotExist) {
		m.logger.Debug("no scene file", "scene", it.Path())
		return nil
	}
	if err != nil {
		m.logger.Error("failed to load scene", "scene", it.Path(), "error", err)
		return nil
	}

	learned, err := m.readLearned(it.Path())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		m.logger.Warn("failed to load learned values", "scene", it.Path(), "error", err)
	}
	if learned == nil {
		learned = make(map[string]any)
	}

	m.mu.Lock()
	m.scenes[it.Path()] = &loaded{states: def, learned: learned}
	m.mu.Unlock()

	m.logger.Info("scene loaded", "scene", it.Path(), "states", len(def), "learned", len(learned))
	return m.trigger
}

func (m *Manager) readDefinition(path string) (Definition, error) {
	data, err := os.ReadFile(filepath.Join(m.dir, path+fileExt))
	if err != nil {
		return nil, err
	}
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parsing scene file: %w", err)
	}
	for state := range def {
		if state < 0 || state >= MaxState {
			return nil, fmt.Errorf("%w: %d (must be 0..%d)", ErrInvalidState, state, MaxState-1)
		}
	}
	return def, nil
}

func (m *Manager) learnedFile(path string) string {
	return filepath.Join(m.dir, path+learnedSuffix+fileExt)
}

func (m *Manager) readLearned(path string) (map[string]any, error) {
	data, err := os.ReadFile(m.learnedFile(path))
	if err != nil {
		return nil, err
	}
	var learned map[string]any
	if err := yaml.Unmarshal(data, &learned); err != nil {
		return nil, fmt.Errorf("parsing learned values: %w", err)
	}
	return learned, nil
}

// trigger reacts to a new scene value.
func (m *Manager) trigger(it *item.Item, _ item.CallerKind, _, _ string) error {
	v, ok := it.Value().(int64)
	if !ok {
		return fmt.Errorf("%w: %v", ErrInvalidState, it.Value())
	}
	state := int(v)
	switch {
	case state >= 0 && state < MaxState:
		return m.Apply(it.Path(), state)
	case state >= LearnFlag && state < LearnFlag+MaxState:
		return m.Learn(it.Path(), state&stateMask)
	}
	m.logger.Error("invalid scene state", "scene", it.Path(), "state", state)
	return fmt.Errorf("%w: %d", ErrInvalidState, state)
}

func (m *Manager) state(path string, state int) (*loaded, State, Lookup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.lookup == nil {
		return nil, State{}, nil, ErrUnbound
	}
	sc, ok := m.scenes[path]
	if !ok {
		return nil, State{}, nil, fmt.Errorf("%w: %s", ErrSceneNotFound, path)
	}
	st, ok := sc.states[state]
	if !ok {
		return nil, State{}, nil, fmt.Errorf("%w: %s state %d", ErrStateNotFound, path, state)
	}
	return sc, st, m.lookup, nil
}

// Apply sets every action target of the state. Learned values replace
// configured ones for learn actions. A missing or rejecting target is
// logged and skipped.
func (m *Manager) Apply(path string, state int) error {
	sc, st, lookup, err := m.state(path, state)
	if err != nil {
		if errors.Is(err, ErrStateNotFound) {
			m.logger.Debug("scene state not defined", "scene", path, "state", state)
			return nil
		}
		return err
	}

	m.logger.Info("applying scene state", "scene", path, "state", state, "name", st.Name)
	for _, a := range st.Actions {
		value := a.Value
		if a.Learn {
			m.mu.RLock()
			lv, ok := sc.learned[learnKey(state, a.Item)]
			m.mu.RUnlock()
			if ok {
				value = lv
			}
		}

		target, ok := lookup.Get(a.Item)
		if !ok {
			m.logger.Warn("scene target not found", "scene", path, "state", state, "item", a.Item)
			continue
		}
		if err := target.Change(value, item.CallerScene, path, ""); err != nil {
			m.logger.Warn("scene value rejected", "scene", path, "item", a.Item, "value", value, "error", err)
		}
	}
	return nil
}

// Learn stores the current value of every learn action target of the
// state and saves the scene's learned values to <dir>/<path>_learned.yaml.
func (m *Manager) Learn(path string, state int) error {
	sc, st, lookup, err := m.state(path, state)
	if err != nil {
		return err
	}

	m.mu.Lock()
	for _, a := range st.Actions {
		if !a.Learn {
			continue
		}
		target, ok := lookup.Get(a.Item)
		if !ok {
			m.logger.Warn("scene target not found", "scene", path, "state", state, "item", a.Item)
			continue
		}
		sc.learned[learnKey(state, a.Item)] = target.Value()
	}
	snapshot := make(map[string]any, len(sc.learned))
	for k, v := range sc.learned {
		snapshot[k] = v
	}
	m.mu.Unlock()

	data, err := yaml.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encoding learned values: %w", err)
	}
	if err := os.WriteFile(m.learnedFile(path), data, filePerm); err != nil {
		return fmt.Errorf("saving learned values: %w", err)
	}
	m.logger.Info("scene state learned", "scene", path, "state", state, "name", st.Name)
	return nil
}

// Scenes returns the loaded scene paths in sorted order.
func (m *Manager) Scenes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.scenes))
	for p := range m.scenes {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Info describes one loaded scene.
func (m *Manager) Info(path string) (Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sc, ok := m.scenes[path]
	if !ok {
		return Info{}, fmt.Errorf("%w: %s", ErrSceneNotFound, path)
	}
	learned := make(map[string]any, len(sc.learned))
	for k, v := range sc.learned {
		learned[k] = v
	}
	return Info{Path: path, States: sc.states, Learned: learned}, nil
}

// Validate reports actions whose target item does not exist.
func (m *Manager) Validate() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.lookup == nil {
		return ErrUnbound
	}

	var errs []error
	for path, sc := range m.scenes {
		for state, st := range sc.states {
			for _, a := range st.Actions {
				if _, ok := m.lookup.Get(a.Item); !ok {
					errs = append(errs, fmt.Errorf("scene %s state %d: %w: %s", path, state, item.ErrItemNotFound, a.Item))
				}
			}
		}
	}
	return errors.Join(errs...)
}
