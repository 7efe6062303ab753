package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

const backupPrefix = "backups/"

// BackupService archives the sqlite databases and ships them off-site.
type BackupService struct {
	dataDir string
	storage *R2Client
	keep    int
	log     zerolog.Logger
}

// NewBackupService creates a backup service. keep is the number of
// archives retained during rotation.
func NewBackupService(dataDir string, storage *R2Client, keep int, log zerolog.Logger) *BackupService {
	return &BackupService{
		dataDir: dataDir,
		storage: storage,
		keep:    keep,
		log:     log.With().Str("service", "backup").Logger(),
	}
}

// CreateAndUploadBackup archives every .db file in the data directory
// into a tar.gz and uploads it.
func (s *BackupService) CreateAndUploadBackup(ctx context.Context) error {
	archive, err := os.CreateTemp("", "neurotrader-backup-*.tar.gz")
	if err != nil {
		return fmt.Errorf("failed to create backup staging file: %w", err)
	}
	defer func() {
		_ = archive.Close()
		_ = os.Remove(archive.Name())
	}()

	count, err := s.writeArchive(archive)
	if err != nil {
		return err
	}
	if count == 0 {
		s.log.Warn().Str("dir", s.dataDir).Msg("No database files to back up")
		return nil
	}

	if _, err := archive.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind backup archive: %w", err)
	}

	key := fmt.Sprintf("%sneurotrader-%s.tar.gz",
		backupPrefix, time.Now().UTC().Format("20060102-150405"))
	if err := s.storage.Upload(ctx, key, archive); err != nil {
		return err
	}

	s.log.Info().Str("key", key).Int("files", count).Msg("Backup uploaded")
	return nil
}

// PruneOldBackups deletes the oldest archives beyond the retention count.
func (s *BackupService) PruneOldBackups(ctx context.Context) error {
	objects, err := s.storage.List(ctx, backupPrefix)
	if err != nil {
		return err
	}
	if len(objects) <= s.keep {
		return nil
	}

	sort.Slice(objects, func(i, j int) bool {
		return objects[i].LastModified.After(objects[j].LastModified)
	})

	for _, obj := range objects[s.keep:] {
		if err := s.storage.Delete(ctx, obj.Key); err != nil {
			return err
		}
		s.log.Info().Str("key", obj.Key).Msg("Deleted old backup")
	}
	return nil
}

func (s *BackupService) writeArchive(w io.Writer) (int, error) {
	paths, err := filepath.Glob(filepath.Join(s.dataDir, "*.db"))
	if err != nil {
		return 0, fmt.Errorf("failed to scan data directory: %w", err)
	}

	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	var count int
	for _, path := range paths {
		if err := addFile(tw, path); err != nil {
			return count, err
		}
		count++
	}

	if err := tw.Close(); err != nil {
		return count, fmt.Errorf("failed to finalize archive: %w", err)
	}
	if err := gz.Close(); err != nil {
		return count, fmt.Errorf("failed to finalize compression: %w", err)
	}
	return count, nil
}

func addFile(tw *tar.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("failed to build header for %s: %w", path, err)
	}
	header.Name = filepath.Base(path)

	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write header for %s: %w", path, err)
	}
	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("failed to archive %s: %w", path, err)
	}
	return nil
}
