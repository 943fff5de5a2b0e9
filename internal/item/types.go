package item

import (
	"context"
	"time"
)

// Type is the declared value type of an item.
// It is fixed at construction and selects the item's Caster.
type Type string

// Supported item types. The string values are the tags used in item
// configuration files.
const (
	TypeNone   Type = ""
	TypeString Type = "str"
	TypeList   Type = "list"
	TypeDict   Type = "dict"
	TypeBool   Type = "bool"
	TypeNum    Type = "num"
	TypeScene  Type = "scene"
	TypeFoo    Type = "foo"
)

// AllTypes lists every valid type tag in display order.
var AllTypes = []Type{TypeBool, TypeDict, TypeFoo, TypeList, TypeNum, TypeScene, TypeString}

// Valid reports whether t is a known type tag.
func (t Type) Valid() bool {
	_, ok := casters[t]
	return ok
}

// CallerKind identifies who requested a value change.
// Values are compared by equality; the attribution recorded on an item is
// "<CallerKind>:<source>".
type CallerKind string

// Well-known caller kinds.
const (
	CallerLogic     CallerKind = "Logic"
	CallerEval      CallerKind = "Eval"
	CallerInit      CallerKind = "Init"
	CallerFade      CallerKind = "fade"
	CallerTimer     CallerKind = "Timer"
	CallerAutotimer CallerKind = "Autotimer"
	CallerScheduler CallerKind = "Scheduler"
	CallerCache     CallerKind = "Cache"
	CallerScene     CallerKind = "Scene"
	CallerMQTT      CallerKind = "MQTT"
	CallerAPI       CallerKind = "API"
	CallerVisu      CallerKind = "Visu"
)

// Payload is the argument bundle handed to scheduled and dispatched jobs.
type Payload struct {
	Value  any
	Caller CallerKind
	Source string
	Dest   string
}

// Job is a unit of work executed by a Scheduler.
type Job func(p Payload)

// Scheduler runs jobs on behalf of items.
//
// Items never call dependents inline; every evaluation of a dependent item,
// every autotimer and every cycle/crontab entry goes through the Scheduler.
type Scheduler interface {
	// Dispatch enqueues a job for asynchronous execution. It must not block
	// on the job itself.
	Dispatch(name string, job Job, payload Payload, priority int)

	// AddOneShot runs a job once at the given time. Adding a job with an id
	// that is already pending replaces the pending job.
	AddOneShot(id string, job Job, payload Payload, when time.Time)

	// AddSchedule registers a recurring job. cron and cycle are forwarded
	// verbatim from item configuration; either may be empty.
	AddSchedule(id string, job Job, cron, cycle string) error
}

// PluginCallback is invoked after every committed change of an item it was
// registered on.
type PluginCallback func(it *Item, caller CallerKind, source, dest string) error

// Logic is a rule that wants to hear about item changes.
type Logic interface {
	// Trigger is called with kind "Item", the item's path and its new value.
	Trigger(kind, source string, value any)
}

// LogicFunc adapts a function to the Logic interface.
type LogicFunc func(kind, source string, value any)

// Trigger implements Logic.
func (f LogicFunc) Trigger(kind, source string, value any) { f(kind, source, value) }

// Persistence stores the last committed value of cached items.
type Persistence interface {
	// Read returns the stored value and the time it was written.
	// It returns ErrCacheMiss when nothing is stored for path and
	// ErrCacheEmpty when the stored record holds no value.
	Read(ctx context.Context, path string) (time.Time, any, error)

	// Write stores value for path.
	Write(ctx context.Context, path string, value any) error
}

// EvalEnv is what a host Evaluator can see while evaluating an item's
// expression.
type EvalEnv struct {
	Item   *Item
	Value  any
	Caller CallerKind
	Source string
	Dest   string

	// Lookup resolves another item by path.
	Lookup func(path string) (*Item, bool)
}

// Evaluator evaluates expression strings configured with "eval".
// Aggregates (and, or, sum, avg) are handled by the engine itself.
type Evaluator interface {
	Evaluate(expr string, env EvalEnv) (any, error)
}

// Logger defines the logging interface used by items and the tree.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Metrics receives engine events for instrumentation.
type Metrics interface {
	Committed(path string, caller CallerKind)
	Rejected(path string)
	CallbackFailed(path string)
	FadeStarted(path string)
	FadeFinished(path string, outcome string)
}

type noopMetrics struct{}

func (noopMetrics) Committed(string, CallerKind) {}
func (noopMetrics) Rejected(string)              {}
func (noopMetrics) CallbackFailed(string)        {}
func (noopMetrics) FadeStarted(string)           {}
func (noopMetrics) FadeFinished(string, string)  {}

// Deps holds the collaborators an item needs. They are injected at
// construction; a zero Deps gives an item that logs nothing, persists
// nothing and runs dispatched jobs on fresh goroutines.
type Deps struct {
	Scheduler   Scheduler
	Persistence Persistence
	Evaluator   Evaluator
	Logger      Logger
	Metrics     Metrics

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Scheduler == nil {
		d.Scheduler = goScheduler{}
	}
	if d.Logger == nil {
		d.Logger = noopLogger{}
	}
	if d.Metrics == nil {
		d.Metrics = noopMetrics{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// goScheduler runs each dispatched job on its own goroutine and drops timed
// jobs. It only exists so that an item built without a scheduler is still
// usable in isolation.
type goScheduler struct{}

func (goScheduler) Dispatch(_ string, job Job, p Payload, _ int) {
	go job(p)
}

func (goScheduler) AddOneShot(string, Job, Payload, time.Time) {}

func (goScheduler) AddSchedule(string, Job, string, string) error {
	return ErrNoScheduler
}
