// Package content implements the content store (C4): the on-disk directory
// tree rooted at the configured storage directory.
package content

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// dirPermissions matches the teacher's standard directory permissions
// (owner rwx, group/other rx).
const dirPermissions = 0o755

// filePermissions matches the teacher's standard file permissions
// (owner rw, group/other r).
const filePermissions = 0o644

// Store is the filesystem tree rooted at a configured storage directory.
// Every path it accepts is relative to that root (spec §4.4).
type Store struct {
	root   string
	logger *slog.Logger
}

// New returns a Store rooted at root. root must already exist.
func New(root string, logger *slog.Logger) *Store {
	return &Store{root: root, logger: logger}
}

// Resolve returns the absolute path for a storage-root-relative path,
// rejecting attempts to escape the root via "..".
func (s *Store) Resolve(relPath string) (string, error) {
	cleaned := filepath.Clean(relPath)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("content: path %q escapes storage root", relPath)
	}

	return filepath.Join(s.root, cleaned), nil
}

// CreateFile creates path (overwriting if it already exists — FileCreate
// and FileModify both truncate-and-write per spec §4.7) and writes body to
// it. modify distinguishes the log message only; both variants truncate.
// Write failures are tolerated per §4.4/§7 class 5: logged, not returned, so
// the caller still records the change in the change log regardless of
// whether the filesystem action actually succeeded.
func (s *Store) CreateFile(relPath string, body []byte, modify bool) error {
	abs, err := s.Resolve(relPath)
	if err != nil {
		return err
	}

	verb := "creating"
	if modify {
		verb = "modifying"
	}

	if mkErr := os.MkdirAll(filepath.Dir(abs), dirPermissions); mkErr != nil {
		s.logger.Warn(fmt.Sprintf("failed to create parent directories while %s file, recording change regardless", verb),
			slog.String("path", relPath), slog.String("error", mkErr.Error()))

		return nil
	}

	if err := os.WriteFile(abs, body, filePermissions); err != nil {
		s.logger.Warn(fmt.Sprintf("failed to write file while %s, recording change regardless", verb),
			slog.String("path", relPath), slog.String("error", err.Error()))
	}

	return nil
}

// OpenFile opens path for reading, returning its size and a ReadCloser for
// sync-down streaming.
func (s *Store) OpenFile(relPath string) (*os.File, int64, error) {
	abs, err := s.Resolve(relPath)
	if err != nil {
		return nil, 0, err
	}

	f, err := os.Open(abs)
	if err != nil {
		return nil, 0, fmt.Errorf("content: opening file %q: %w", relPath, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()

		return nil, 0, fmt.Errorf("content: stat-ing file %q: %w", relPath, err)
	}

	return f, info.Size(), nil
}

// DeleteFile removes a file. A missing source is tolerated: logged, not
// returned as an error (spec §4.4 leniency).
func (s *Store) DeleteFile(relPath string) error {
	abs, err := s.Resolve(relPath)
	if err != nil {
		return err
	}

	if _, statErr := os.Stat(abs); os.IsNotExist(statErr) {
		s.logger.Warn("file to delete does not exist, recording change regardless",
			slog.String("path", relPath))

		return nil
	}

	if err := os.Remove(abs); err != nil {
		s.logger.Warn("failed to delete file, recording change regardless",
			slog.String("path", relPath), slog.String("error", err.Error()))
	}

	return nil
}

// MoveFile renames a file. A missing source is tolerated per §4.4.
func (s *Store) MoveFile(fromRel, toRel string) error {
	return s.move(fromRel, toRel, "file")
}

// CreateDirectory creates a directory tree. A pre-existing target is
// tolerated per §4.4.
func (s *Store) CreateDirectory(relPath string) error {
	abs, err := s.Resolve(relPath)
	if err != nil {
		return err
	}

	if _, statErr := os.Stat(abs); statErr == nil {
		s.logger.Warn("directory to create already exists, recording change regardless",
			slog.String("path", relPath))

		return nil
	}

	if err := os.MkdirAll(abs, dirPermissions); err != nil {
		s.logger.Warn("failed to create directory, recording change regardless",
			slog.String("path", relPath), slog.String("error", err.Error()))
	}

	return nil
}

// DeleteDirectory recursively removes a directory tree. A missing source
// is tolerated per §4.4.
func (s *Store) DeleteDirectory(relPath string) error {
	abs, err := s.Resolve(relPath)
	if err != nil {
		return err
	}

	if _, statErr := os.Stat(abs); os.IsNotExist(statErr) {
		s.logger.Warn("directory to delete does not exist, recording change regardless",
			slog.String("path", relPath))

		return nil
	}

	if err := os.RemoveAll(abs); err != nil {
		s.logger.Warn("failed to delete directory, recording change regardless",
			slog.String("path", relPath), slog.String("error", err.Error()))
	}

	return nil
}

// MoveDirectory renames a directory tree. A missing source is tolerated
// per §4.4.
func (s *Store) MoveDirectory(fromRel, toRel string) error {
	return s.move(fromRel, toRel, "directory")
}

func (s *Store) move(fromRel, toRel, kind string) error {
	fromAbs, err := s.Resolve(fromRel)
	if err != nil {
		return err
	}

	toAbs, err := s.Resolve(toRel)
	if err != nil {
		return err
	}

	if _, statErr := os.Stat(fromAbs); os.IsNotExist(statErr) {
		s.logger.Warn(fmt.Sprintf("%s to move does not exist, recording change regardless", kind),
			slog.String("from", fromRel), slog.String("to", toRel))

		return nil
	}

	if mkErr := os.MkdirAll(filepath.Dir(toAbs), dirPermissions); mkErr != nil {
		s.logger.Warn("failed to create parent directory for move, recording change regardless",
			slog.String("to", toRel), slog.String("error", mkErr.Error()))

		return nil
	}

	if err := os.Rename(fromAbs, toAbs); err != nil {
		s.logger.Warn(fmt.Sprintf("failed to move %s, recording change regardless", kind),
			slog.String("from", fromRel), slog.String("to", toRel), slog.String("error", err.Error()))
	}

	return nil
}

// Stat returns the size in bytes of the file at relPath, used by sync-down
// to restat a file's actual size before streaming it (spec §4.8).
func (s *Store) Stat(relPath string) (int64, error) {
	abs, err := s.Resolve(relPath)
	if err != nil {
		return 0, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		return 0, fmt.Errorf("content: stat-ing %q: %w", relPath, err)
	}

	return info.Size(), nil
}
