package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-items/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-items/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-items/internal/item"
	"github.com/nerrad567/gray-logic-items/internal/itemconfig"
	"github.com/nerrad567/gray-logic-items/internal/scene"
	"github.com/nerrad567/gray-logic-items/internal/scheduler"
)

func newCheckCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Load the item tree and report configuration errors",
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := check(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d items, %d scenes\n", report.items, report.scenes)
			if len(report.problems) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "configuration OK")
				return nil
			}
			for _, p := range report.problems {
				fmt.Fprintf(cmd.OutOrStdout(), "  - %v\n", p)
			}
			return fmt.Errorf("%d configuration problem(s)", len(report.problems))
		},
	}
}

type checkReport struct {
	items    int
	scenes   int
	problems []error
}

// scheduleRecorder collects schedule errors that Build only logs.
type scheduleRecorder struct {
	*scheduler.Scheduler

	mu   sync.Mutex
	errs []error
}

func (r *scheduleRecorder) AddSchedule(id string, job item.Job, crontab, cycle string) error {
	err := r.Scheduler.AddSchedule(id, job, crontab, cycle)
	if err != nil {
		r.mu.Lock()
		r.errs = append(r.errs, fmt.Errorf("%s: %w", id, err))
		r.mu.Unlock()
	}
	return err
}

// check builds the tree without cache, transports or started scheduler.
func check(ctx context.Context, configPath string) (checkReport, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return checkReport{}, fmt.Errorf("loading config: %w", err)
	}
	log := logging.New(config.LoggingConfig{Level: "error", Format: cfg.Logging.Format, Output: "stderr"}, version)

	nodes, err := itemconfig.Load(cfg.Items.Path)
	if err != nil {
		return checkReport{}, fmt.Errorf("loading items: %w", err)
	}

	sched := &scheduleRecorder{Scheduler: scheduler.New(scheduler.WithLocation(cfg.Location()))}
	defer sched.Stop()
	scenes := scene.New(cfg.Items.ScenesDir, log)
	tree := item.NewTree(item.Deps{Scheduler: sched, Logger: log}, scenes)

	var report checkReport
	if buildErr := tree.Build(ctx, nodes); buildErr != nil {
		report.problems = append(report.problems, unjoin(buildErr)...)
	}
	report.problems = append(report.problems, sched.errs...)

	scenes.Bind(tree)
	if sceneErr := scenes.Validate(); sceneErr != nil {
		report.problems = append(report.problems, unjoin(sceneErr)...)
	}
	report.items = tree.Len()
	report.scenes = len(scenes.Scenes())
	return report, nil
}

// unjoin splits an errors.Join result into its parts.
func unjoin(err error) []error {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		return joined.Unwrap()
	}
	return []error{err}
}
