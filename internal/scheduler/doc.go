// Package scheduler runs item jobs: dispatched evaluations, one-shot
// timers and recurring cycle/crontab entries.
//
// All work funnels through one FIFO queue drained by a fixed pool of
// workers. Timers and cron entries never run jobs themselves; they only
// enqueue them. A panicking job is recovered and logged.
//
// Usage:
//
//	sched := scheduler.New(scheduler.WithWorkers(4), scheduler.WithLogger(log))
//	tree := item.NewTree(item.Deps{Scheduler: sched})
//	...
//	if err := sched.Start(ctx); err != nil {
//	    return err
//	}
//	defer sched.Stop()
package scheduler
