package scheduler

import (
	"github.com/rs/zerolog"

	"github.com/foliosync/foliosync/internal/cache"
)

// SnapshotJob periodically persists the warm cache snapshot so a daemon
// restart within TTL serves market data without refetching. The same
// save runs once more during shutdown.
type SnapshotJob struct {
	snapshots *cache.SnapshotManager
	log       zerolog.Logger
}

// NewSnapshotJob creates a new cache snapshot job.
func NewSnapshotJob(snapshots *cache.SnapshotManager, log zerolog.Logger) *SnapshotJob {
	return &SnapshotJob{
		snapshots: snapshots,
		log:       log.With().Str("job", "cache_snapshot").Logger(),
	}
}

// Name returns the job name for scheduling and logging.
func (j *SnapshotJob) Name() string {
	return "cache_snapshot"
}

// Run writes the snapshot file.
func (j *SnapshotJob) Run() error {
	if err := j.snapshots.Save(); err != nil {
		j.log.Error().Err(err).Msg("Failed to save cache snapshot")
		return err
	}
	return nil
}
