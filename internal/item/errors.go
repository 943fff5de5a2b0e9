package item

import (
	"errors"
	"fmt"
)

// Domain errors for the item package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, item.ErrItemNotFound) {
//	    // handle unknown path
//	}
var (
	// ErrItemNotFound is returned when no item exists at a path.
	ErrItemNotFound = errors.New("item: not found")

	// ErrItemExists is returned when an item path is registered twice.
	ErrItemExists = errors.New("item: already exists")

	// ErrUntyped is returned when a typed operation is attempted on an item
	// without a usable type.
	ErrUntyped = errors.New("item: no type")

	// ErrSelfTrigger is returned when an item is registered as its own
	// dependent.
	ErrSelfTrigger = errors.New("item: cannot trigger itself")

	// ErrNotNumeric is returned when a fade is requested on a non-numeric item.
	ErrNotNumeric = errors.New("item: not numeric")

	// ErrInvalidFade is returned for fade options that cannot make progress.
	ErrInvalidFade = errors.New("item: invalid fade")

	// ErrInvalidDuration is returned when a timer duration cannot be parsed.
	ErrInvalidDuration = errors.New("item: invalid duration")

	// ErrNoScheduler is returned when a recurring job is requested on an
	// item built without a scheduler.
	ErrNoScheduler = errors.New("item: no scheduler")

	// ErrCacheMiss is returned by a Persistence when nothing is stored for a path.
	ErrCacheMiss = errors.New("item: cache miss")

	// ErrCacheEmpty is returned by a Persistence when a stored record is empty.
	ErrCacheEmpty = errors.New("item: cache empty")
)

// CoercionError reports a value that does not satisfy an item type.
type CoercionError struct {
	Type  Type
	Value any
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("item: value %#v does not match type %q", e.Value, e.Type)
}

// ConfigError reports an item definition that cannot be honoured.
// The affected item is left without a type and ignores typed updates.
type ConfigError struct {
	Path   string
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("item %s: %s: %s", e.Path, e.Field, e.Reason)
}

// CallbackError wraps a failure raised by a plugin callback.
type CallbackError struct {
	Path string
	Err  error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("item %s: callback failed: %v", e.Path, e.Err)
}

func (e *CallbackError) Unwrap() error { return e.Err }

// PersistenceError wraps a cache read or write failure.
type PersistenceError struct {
	Path string
	Op   string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("item %s: cache %s: %v", e.Path, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
