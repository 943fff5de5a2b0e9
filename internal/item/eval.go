package item

import "fmt"

// Aggregate eval names computed by the engine over the eval_trigger items.
const (
	AggregateAnd = "and"
	AggregateOr  = "or"
	AggregateSum = "sum"
	AggregateAvg = "avg"
)

func isAggregate(expr string) bool {
	switch expr {
	case AggregateAnd, AggregateOr, AggregateSum, AggregateAvg:
		return true
	}
	return false
}

// Eval returns the configured eval expression.
func (it *Item) Eval() string { return it.eval }

// EvalTriggers returns the configured eval_trigger patterns.
func (it *Item) EvalTriggers() []string {
	return append([]string(nil), it.evalTrigger...)
}

// runEval evaluates the item and commits the result. Dependent items are
// dispatched here by the Scheduler.
func (it *Item) runEval(p Payload) {
	if it.eval == "" {
		return
	}
	v, err := it.evaluate(p)
	if err != nil {
		it.deps.Logger.Warn("evaluation failed", "item", it.path, "eval", it.eval, "error", err)
		return
	}
	caller := p.Caller
	if caller == "" {
		caller = CallerEval
	}
	// Rejections are logged by update.
	_ = it.update(v, caller, p.Source, p.Dest, nil)
}

func (it *Item) evaluate(p Payload) (any, error) {
	if isAggregate(it.eval) {
		return aggregate(it.eval, it.evalSources)
	}
	if it.deps.Evaluator == nil {
		return nil, fmt.Errorf("no evaluator for expression %q", it.eval)
	}
	return it.deps.Evaluator.Evaluate(it.eval, EvalEnv{
		Item:   it,
		Value:  p.Value,
		Caller: p.Caller,
		Source: p.Source,
		Dest:   p.Dest,
		Lookup: it.lookup,
	})
}

// lookup resolves another item of the same tree.
func (it *Item) lookup(path string) (*Item, bool) {
	if it.tree == nil {
		return nil, false
	}
	return it.tree.Get(path)
}

func aggregate(kind string, sources []*Item) (any, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("%s over no items", kind)
	}
	switch kind {
	case AggregateAnd:
		for _, s := range sources {
			if !Truthy(s.Value()) {
				return false, nil
			}
		}
		return true, nil
	case AggregateOr:
		for _, s := range sources {
			if Truthy(s.Value()) {
				return true, nil
			}
		}
		return false, nil
	}

	var sum float64
	for _, s := range sources {
		n, err := castNum(s.Value())
		if err != nil {
			return nil, fmt.Errorf("%s: item %s: %w", kind, s.path, err)
		}
		sum += n.(float64)
	}
	if kind == AggregateAvg {
		return sum / float64(len(sources)), nil
	}
	return sum, nil
}

// Truthy reports whether v counts as true in boolean aggregates.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	}
	if f, ok := asFloat(v); ok {
		return f != 0
	}
	return true
}
