package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/lvglgen/internal/config"
	"github.com/aristath/lvglgen/internal/scheduler"
)

// walCheckSchedule bounds WAL growth whether or not pruning runs.
const walCheckSchedule = "@every 30m"

// RegisterJobs creates the housekeeping jobs and registers them with the
// scheduler. The WAL checkpoint always runs; pruning only when the
// configuration has a prune schedule. The scheduler is not started here.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil || container.Scheduler == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}

	instances := &JobInstances{}

	prune := scheduler.NewPruneHistoryJob(container.HistoryRepo, container.HistoryDB, container.EventManager, cfg.Retention)
	prune.SetLogger(log)
	instances.PruneHistory = prune

	wal := scheduler.NewCheckWALJob(container.HistoryDB)
	wal.SetLogger(log)
	instances.CheckWAL = wal

	if err := container.Scheduler.AddJob(walCheckSchedule, wal); err != nil {
		return nil, fmt.Errorf("failed to register %s: %w", wal.Name(), err)
	}

	if cfg.PruneSchedule == "" {
		log.Info().Msg("History pruning disabled")
		return instances, nil
	}
	if err := container.Scheduler.AddJob(cfg.PruneSchedule, prune); err != nil {
		return nil, fmt.Errorf("failed to register %s: %w", prune.Name(), err)
	}
	return instances, nil
}
