package scheduler

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/lvglgen/internal/events"
)

// HistoryPruner deletes runs older than a cutoff.
type HistoryPruner interface {
	Prune(cutoff time.Time) (int64, error)
}

// Vacuumer returns freed pages to the filesystem.
type Vacuumer interface {
	IncrementalVacuum() error
}

// PruneHistoryJob drops generation runs older than the retention window.
type PruneHistoryJob struct {
	history   HistoryPruner
	db        Vacuumer
	events    *events.Manager
	retention time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

// NewPruneHistoryJob creates the job. db and em may be nil.
func NewPruneHistoryJob(history HistoryPruner, db Vacuumer, em *events.Manager, retention time.Duration) *PruneHistoryJob {
	return &PruneHistoryJob{
		history:   history,
		db:        db,
		events:    em,
		retention: retention,
		now:       time.Now,
		log:       zerolog.Nop(),
	}
}

// SetLogger sets the logger for the job
func (j *PruneHistoryJob) SetLogger(log zerolog.Logger) {
	j.log = log.With().Str("job", j.Name()).Logger()
}

// Name returns the job name
func (j *PruneHistoryJob) Name() string {
	return "prune_history"
}

// Run deletes expired runs and, when anything was removed, vacuums.
func (j *PruneHistoryJob) Run() error {
	if j.retention <= 0 {
		return fmt.Errorf("retention must be positive, got %s", j.retention)
	}
	cutoff := j.now().Add(-j.retention)

	removed, err := j.history.Prune(cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune history: %w", err)
	}

	if removed > 0 && j.db != nil {
		if err := j.db.IncrementalVacuum(); err != nil {
			// pages stay allocated until the next run
			j.log.Warn().Err(err).Msg("Incremental vacuum failed")
		}
	}

	if j.events != nil {
		j.events.EmitTyped("scheduler", &events.HistoryPrunedData{
			Removed: removed,
			Cutoff:  cutoff.UTC().Format(time.RFC3339),
		})
	}

	j.log.Info().
		Int64("removed", removed).
		Time("cutoff", cutoff).
		Msg("History pruned")
	return nil
}
