package itemconfig

import "errors"

// Domain errors for item tree loading.
var (
	// ErrNotMapping is returned when a tree file's root is not a mapping.
	ErrNotMapping = errors.New("itemconfig: root must be a mapping")

	// ErrNoFiles is returned when a directory holds no YAML files.
	ErrNoFiles = errors.New("itemconfig: no item files found")
)
