package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	scheduler "github.com/TudorHulban/production-scheduler"
	"github.com/TudorHulban/production-scheduler/internal/config"
	"github.com/TudorHulban/production-scheduler/internal/history"
	"github.com/TudorHulban/production-scheduler/internal/snapshot"
	"github.com/spf13/cobra"
)

// runtime is what every command works on: the settings and the snapshot
// they point at.
type runtime struct {
	cfg    config.Config
	logger *slog.Logger

	document *snapshot.Document
	context  *scheduler.SchedulingContext
}

func loadRuntime(cmd *cobra.Command) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	applyFlagOverrides(cmd, &cfg)

	result := runtime{
		cfg:    cfg,
		logger: newLogger(cfg.Verbose),
	}

	if err := result.reload(); err != nil {
		return nil, err
	}

	return &result, nil
}

// reload reads the snapshot again and rebuilds the context from it.
func (r *runtime) reload() error {
	document, err := snapshot.Load(r.cfg.Snapshot)
	if err != nil {
		return err
	}

	today, err := r.cfg.TodayDate()
	if err != nil {
		return err
	}

	sc, err := document.ToContext(
		&snapshot.ParamsToContext{
			BatchableResources: r.cfg.BatchableResources,
			BatchClasses:       r.cfg.BatchClassMap(),
			Today:              today,
		},
	)
	if err != nil {
		return err
	}

	r.logger.Debug(
		"snapshot loaded",
		"path", r.cfg.Snapshot,
		"steps", len(document.Steps),
		"today", scheduler.FormatDate(sc.Today()),
	)

	r.document = document
	r.context = sc

	return nil
}

// save writes an accepted context back, keeping a pinned plan date.
func (r *runtime) save(sc *scheduler.SchedulingContext) error {
	document := snapshot.FromContext(sc)
	document.Today = r.document.Today

	if err := snapshot.Save(r.cfg.Snapshot, document); err != nil {
		return err
	}

	r.logger.Debug(
		"snapshot saved",
		"path", r.cfg.Snapshot,
		"version", sc.Version(),
	)

	r.document = document
	r.context = sc

	return nil
}

// record keeps a plan in the history database when one is configured.
// Failures are logged, a plan is never lost over its history entry.
func (r *runtime) record(ctx context.Context, result *scheduler.ScheduleResult) {
	if r.cfg.History == "" || result == nil || !result.Status.HasSchedule() {
		return
	}

	store, err := history.Open(ctx, r.cfg.History)
	if err != nil {
		r.logger.Warn("history unavailable", "error", err)
		return
	}
	defer store.Close()

	planID, err := store.Record(ctx, r.cfg.Snapshot, result)
	if err != nil {
		r.logger.Warn("history record failed", "error", err)
		return
	}

	r.logger.Debug("plan recorded", "plan", planID)
}

func (r *runtime) solveOptions() *scheduler.SolveOptions {
	options := r.cfg.SolveOptions()
	options.Logger = r.logger

	return options
}

// applyFlagOverrides applies CLI flag values to the loaded config.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	if flag := cmd.Flags().Lookup("time-limit"); flag != nil && flag.Changed {
		cfg.TimeLimit, _ = cmd.Flags().GetDuration("time-limit")
	}
	if v, _ := cmd.Flags().GetInt("workers"); v > 0 {
		cfg.Workers = v
	}
	if v, _ := cmd.Flags().GetString("weighting"); v != "" {
		cfg.Weighting = v
	}
}

// addSolveFlags registers the solver overrides on commands that solve.
func addSolveFlags(cmd *cobra.Command) {
	cmd.Flags().Duration("time-limit", 0, "override the solver wall clock limit")
	cmd.Flags().Int("workers", 0, "override the number of solver workers")
	cmd.Flags().String("weighting", "", "override priority weighting: inverse-rank, linear-rank or exponential-rank")
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	return slog.New(
		slog.NewTextHandler(
			os.Stderr,
			&slog.HandlerOptions{
				Level: level,
			},
		),
	)
}

func setupSignalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("shutting down")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}
