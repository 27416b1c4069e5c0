// Package artifacts manages photo files referenced by pending mutations.
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"hotelsync/internal/models"

	"github.com/rs/zerolog"
)

// Store keeps artifact files under one directory.
type Store struct {
	baseDir string
	seq     atomic.Uint64
	now     func() time.Time
	logger  *zerolog.Logger
}

func NewStore(baseDir string, logger *zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifacts directory: %w", err)
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Store{baseDir: baseDir, now: time.Now, logger: logger}, nil
}

func (s *Store) Dir() string {
	return s.baseDir
}

// NewPath returns a collision-free path: <prefix>_<unix-nanos>_<index>.<ext>.
func (s *Store) NewPath(prefix string, index int, ext string) string {
	if prefix == "" {
		prefix = "photo"
	}
	if ext == "" {
		ext = ".jpg"
	}
	if ext[0] != '.' {
		ext = "." + ext
	}
	// the sequence keeps names unique when two captures share a timestamp
	n := s.seq.Add(1)
	name := fmt.Sprintf("%s_%d_%d_%d%s", prefix, s.now().UnixNano(), n, index, ext)
	return filepath.Join(s.baseDir, name)
}

// Save copies r into a new artifact file and returns its path.
func (s *Store) Save(prefix string, index int, ext string, r io.Reader) (string, error) {
	path := s.NewPath(prefix, index, ext)
	tmp, err := os.CreateTemp(s.baseDir, ".incoming-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to sync artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to move artifact into place: %w", err)
	}
	return path, nil
}

// Exists reports whether the artifact is still readable at path.
func (s *Store) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Partition splits paths into files still on disk and files that went missing.
func (s *Store) Partition(paths []string) (present, missing []string) {
	for _, p := range paths {
		if s.Exists(p) {
			present = append(present, p)
		} else {
			missing = append(missing, p)
		}
	}
	return present, missing
}

// Remove deletes the given files. Missing files are ignored.
func (s *Store) Remove(paths ...string) error {
	var errs []error
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove %s: %w", p, err))
			continue
		}
		s.logger.Debug().Str("path", p).Msg("artifact removed")
	}
	return errors.Join(errs...)
}

// OrphanLedger is the persistent list of artifacts left behind by fallback submissions.
type OrphanLedger interface {
	ListOrphans(ctx context.Context, before time.Time) ([]models.OrphanedArtifact, error)
	DeleteOrphan(ctx context.Context, id int64) error
}

// SweepOrphans removes orphaned artifacts recorded more than olderThan ago and returns
// how many ledger entries were cleared.
func (s *Store) SweepOrphans(ctx context.Context, ledger OrphanLedger, olderThan time.Duration) (int, error) {
	orphans, err := ledger.ListOrphans(ctx, s.now().Add(-olderThan))
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, o := range orphans {
		if err := ctx.Err(); err != nil {
			return swept, err
		}
		if err := s.Remove(o.Path); err != nil {
			s.logger.Warn().Err(err).Str("path", o.Path).Msg("orphan sweep: remove failed")
			continue
		}
		if err := ledger.DeleteOrphan(ctx, o.ID); err != nil {
			return swept, err
		}
		swept++
	}

	if swept > 0 {
		s.logger.Info().Int("swept", swept).Msg("orphaned artifacts removed")
	}
	return swept, nil
}
