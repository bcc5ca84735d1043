package scheduler

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
)

// walWarnFrames is the WAL size, in frames, above which a truncating
// checkpoint is forced.
const walWarnFrames = 1000

// Checkpointer is the subset of database.DB the WAL job needs.
type Checkpointer interface {
	Conn() *sql.DB
	Name() string
	WALCheckpoint(mode string) error
}

// CheckWALJob keeps the history database's WAL file from growing without
// bound while the service runs.
type CheckWALJob struct {
	db  Checkpointer
	log zerolog.Logger
}

// NewCheckWALJob creates a new CheckWALJob
func NewCheckWALJob(db Checkpointer) *CheckWALJob {
	return &CheckWALJob{db: db, log: zerolog.Nop()}
}

// SetLogger sets the logger for the job
func (j *CheckWALJob) SetLogger(log zerolog.Logger) {
	j.log = log.With().Str("job", j.Name()).Logger()
}

// Name returns the job name
func (j *CheckWALJob) Name() string {
	return "check_wal"
}

// Run checks the WAL with a passive checkpoint and truncates it when it
// is large.
func (j *CheckWALJob) Run() error {
	if j.db == nil {
		return nil
	}

	// PRAGMA wal_checkpoint returns: busy, log, checkpointed
	var busy, frames, checkpointed int
	err := j.db.Conn().QueryRow("PRAGMA wal_checkpoint(PASSIVE)").Scan(&busy, &frames, &checkpointed)
	if err != nil {
		return fmt.Errorf("failed to check WAL of %s: %w", j.db.Name(), err)
	}

	if frames <= walWarnFrames {
		j.log.Debug().
			Str("database", j.db.Name()).
			Int("wal_frames", frames).
			Msg("WAL checkpoint status OK")
		return nil
	}

	j.log.Warn().
		Str("database", j.db.Name()).
		Int("wal_frames", frames).
		Int("checkpointed", checkpointed).
		Msg("WAL file is large, truncating")
	return j.db.WALCheckpoint("TRUNCATE")
}
