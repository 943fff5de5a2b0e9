// Package history records item values in a time-series store.
//
// Items with the attribute "history: true" write every committed value.
// Only numeric and bool items are recorded; other types are skipped when
// the tree is built.
package history

import (
	"time"

	"github.com/nerrad567/gray-logic-items/internal/item"
)

// Attribute enables history on an item.
const Attribute = "history"

// Writer stores one item value. *influxdb.Client implements it.
type Writer interface {
	WriteItemValue(path, caller string, value any, ts time.Time) error
}

// Logger defines the logging interface used by the recorder.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Recorder implements item.Plugin.
type Recorder struct {
	writer Writer
	logger Logger
}

var _ item.Plugin = (*Recorder)(nil)

// New creates a Recorder writing through w.
func New(w Writer, logger Logger) *Recorder {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Recorder{writer: w, logger: logger}
}

// Name implements item.Plugin.
func (r *Recorder) Name() string { return "history" }

// ParseItem claims numeric and bool items carrying the history attribute.
func (r *Recorder) ParseItem(it *item.Item) item.PluginCallback {
	if !it.ConfBool(Attribute) {
		return nil
	}
	switch it.Type() {
	case item.TypeNum, item.TypeBool, item.TypeScene:
	default:
		r.logger.Warn("history needs a num, bool or scene item", "item", it.Path(), "type", it.Type())
		return nil
	}
	return r.record
}

func (r *Recorder) record(it *item.Item, caller item.CallerKind, _, _ string) error {
	snap := it.Snapshot()
	return r.writer.WriteItemValue(snap.Path, string(caller), snap.Value, snap.LastChange)
}
