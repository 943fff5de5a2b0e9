// Package item provides the reactive item value engine for Gray Logic Items.
//
// An Item is a typed value at a unique dotted path ("living.light.dimmer").
// Devices, rules, plugins and the API read items and change them; every
// committed change fans out to whoever subscribed.
//
// Architecture:
//
//	┌────────────────────────────────────────────────────────────┐
//	│                      Tree (tree.go)                         │
//	│  path registry • eval_trigger wiring • start-up evaluation  │
//	│  ┌──────────────────────────────────────────────────────┐  │
//	│  │                  Item (item.go)                       │  │
//	│  │  1. Coerce (cast.go)                                  │  │
//	│  │  2. Lock, compare, commit, unlock                     │  │
//	│  │  3. Plugin callbacks (trigger.go)                     │  │
//	│  │  4. Logics, directly or via threshold (threshold.go)  │  │
//	│  │  5. Dependent items via Scheduler.Dispatch            │  │
//	│  │  6. Persistence.Write when cached and not fading      │  │
//	│  │  7. Arm autotimer (autotimer.go)                      │  │
//	│  └──────────────────────────────────────────────────────┘  │
//	│         ▲                                                   │
//	│         │ fade steps                                        │
//	│  ┌──────┴───────┐                                           │
//	│  │ Fader        │  background ramp, stop/continue patterns  │
//	│  │ (fade.go)    │                                           │
//	│  └──────────────┘                                           │
//	└────────────────────────────────────────────────────────────┘
//
// # Key Types
//
//   - Item: typed value with its update pipeline
//   - Tree: owner of all items, addressed by path
//   - Config / Node: construction-time definitions
//   - Deps: injected Scheduler, Persistence, Evaluator, Logger and Metrics
//   - FadeOptions: step, cadence and interruption patterns of a ramp
//
// # Thread Safety
//
// Item methods are safe for concurrent use. Dependent evaluations never run
// inline on the committing goroutine; they are dispatched to the Scheduler.
//
// # Usage
//
//	tree := item.NewTree(item.Deps{Scheduler: sched, Persistence: cache, Logger: log})
//	if err := tree.Build(ctx, nodes); err != nil {
//	    log.Warn("item configuration errors", "error", err)
//	}
//	tree.InitPrerun()
//	tree.InitRun()
//
//	dimmer, _ := tree.Get("living.light.dimmer")
//	_ = dimmer.Change(40, item.CallerAPI, "panel", "")
//	_ = dimmer.StartFade(ctx, 100, item.FadeOptions{Step: 5, Delta: 200 * time.Millisecond})
package item
