package cache

import (
	"time"

	"github.com/rs/zerolog"
)

// CleanupGrace is how long an entry may sit past its TTL before the
// cleanup job drops it. Stale-but-recent entries are kept as fallbacks
// for failed refetches.
const CleanupGrace = 30 * time.Minute

// CleanupJob removes long-expired entries so the store stays bounded.
// Scheduled to run every few minutes.
type CleanupJob struct {
	store *Store
	log   zerolog.Logger
}

// NewCleanupJob creates a new cache cleanup job.
func NewCleanupJob(store *Store, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		store: store,
		log:   log.With().Str("job", "cache_cleanup").Logger(),
	}
}

// Run drops entries stale for longer than the grace window.
func (j *CleanupJob) Run() error {
	removed := j.store.DeleteExpired(CleanupGrace)
	if removed > 0 {
		j.log.Info().
			Int("removed", removed).
			Int("remaining", j.store.Len()).
			Msg("Cleaned up expired cache entries")
	}
	return nil
}

// Name returns the job name for scheduling and logging.
func (j *CleanupJob) Name() string {
	return "cache_cleanup"
}
