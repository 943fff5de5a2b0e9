package scene

import "errors"

// Domain errors for the scene package.
var (
	// ErrSceneNotFound is returned for a path that is not a loaded scene.
	ErrSceneNotFound = errors.New("scene: not found")

	// ErrStateNotFound is returned when a scene has no such state.
	ErrStateNotFound = errors.New("scene: state not defined")

	// ErrInvalidState is returned for values outside 0..63 and 128..191.
	ErrInvalidState = errors.New("scene: invalid state")

	// ErrUnbound is returned when the manager has no item tree to act on.
	ErrUnbound = errors.New("scene: no item tree bound")
)
