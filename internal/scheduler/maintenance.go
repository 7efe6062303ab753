package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// SnapshotPruner removes stale snapshots.
type SnapshotPruner interface {
	Prune(maxAge time.Duration) (int64, error)
}

// SnapshotPruneJob keeps the cache database from growing without bound.
type SnapshotPruneJob struct {
	snapshots SnapshotPruner
	maxAge    time.Duration
	log       zerolog.Logger
}

// NewSnapshotPruneJob creates the snapshot prune job.
func NewSnapshotPruneJob(snapshots SnapshotPruner, maxAge time.Duration, log zerolog.Logger) *SnapshotPruneJob {
	return &SnapshotPruneJob{
		snapshots: snapshots,
		maxAge:    maxAge,
		log:       log.With().Str("job", "snapshot-prune").Logger(),
	}
}

// Name implements Job.
func (j *SnapshotPruneJob) Name() string { return "snapshot-prune" }

// Run implements Job.
func (j *SnapshotPruneJob) Run() error {
	_, err := j.snapshots.Prune(j.maxAge)
	return err
}

// BackupRunner creates and rotates off-site backups.
type BackupRunner interface {
	CreateAndUploadBackup(ctx context.Context) error
	PruneOldBackups(ctx context.Context) error
}

// BackupJob ships the data directory to off-site storage.
type BackupJob struct {
	backups BackupRunner
	log     zerolog.Logger
}

// NewBackupJob creates the backup job.
func NewBackupJob(backups BackupRunner, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		backups: backups,
		log:     log.With().Str("job", "backup").Logger(),
	}
}

// Name implements Job.
func (j *BackupJob) Name() string { return "backup" }

// Run implements Job.
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := j.backups.CreateAndUploadBackup(ctx); err != nil {
		return err
	}
	if err := j.backups.PruneOldBackups(ctx); err != nil {
		j.log.Warn().Err(err).Msg("Backup uploaded but rotation failed")
	}
	return nil
}
