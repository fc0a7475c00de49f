package backends

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/wayneeseguin/sinklog/internal/metrics"
	"github.com/wayneeseguin/sinklog/pkg/types"
)

// FileConfig configures a rotating file sink. The live file is
// <Dir>/<Name>.log and backups are <Name>.log.0 (newest) through
// <Name>.log.<BackupCount-1> (oldest).
//
// Rotation happens before a write that would push a non-empty file past
// SizeLimit. A zero SizeLimit or BackupCount disables rotation.
//
// ProcessLock serializes writers of several processes sharing the file with
// an advisory lock on <Name>.log.lock.
type FileConfig struct {
	Dir         string
	Name        string
	SizeLimit   int64
	BackupCount int
	ProcessLock bool
}

// Kind implements Config
func (FileConfig) Kind() Kind { return KindFile }

// Validate implements Config
func (c FileConfig) Validate() error {
	return validateFileTarget(c.Name, c.SizeLimit, c.BackupCount)
}

// Path returns the live file path
func (c FileConfig) Path() string {
	return logPath(c.Dir, c.Name)
}

func validateFileTarget(name string, sizeLimit int64, backups int) error {
	if name == "" {
		return invalidf("file name cannot be empty")
	}
	if strings.ContainsAny(name, `/\`) {
		return invalidf("file name %q contains a path separator", name)
	}
	if sizeLimit < 0 {
		return invalidf("negative size limit %d", sizeLimit)
	}
	if backups < 0 {
		return invalidf("negative backup count %d", backups)
	}
	return nil
}

func logPath(dir, name string) string {
	if dir == "" {
		dir = "."
	}
	return filepath.Join(filepath.Clean(dir), name+".log")
}

func backupPath(path string, i int) string {
	return fmt.Sprintf("%s.%d", path, i)
}

// shiftBackups evicts the oldest backup, moves every other backup up by one
// and renames the live file to backup 0.
func shiftBackups(path string, count int) error {
	if err := os.Remove(backupPath(path, count-1)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove oldest backup")
	}
	for i := count - 2; i >= 0; i-- {
		err := os.Rename(backupPath(path, i), backupPath(path, i+1))
		if err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "shift backup %d", i)
		}
	}
	if err := os.Rename(path, backupPath(path, 0)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "rename live file")
	}
	return nil
}

// FileSink appends records to a file with numbered backups.
type FileSink struct {
	mu     sync.Mutex
	cfg    FileConfig
	path   string
	file   *os.File
	size   int64
	lock   *flock.Flock
	closed bool
	stats  *metrics.Collector
}

// NewFileSink creates the directory if needed and opens the live file.
func NewFileSink(cfg FileConfig) (*FileSink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &FileSink{
		cfg:   cfg,
		path:  cfg.Path(),
		stats: metrics.NewCollector(),
	}

	// #nosec G301 - log directories need to be accessible by other processes
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return nil, errors.Wrap(err, "create directory")
	}
	if cfg.ProcessLock {
		s.lock = flock.New(s.path + ".lock")
	}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileSink) open() error {
	// #nosec G302 - log files need to be readable
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return errors.Wrap(err, "open file")
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return errors.Wrap(err, "stat file")
	}
	s.file = f
	s.size = info.Size()
	return nil
}

func (s *FileSink) closeFile() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// refresh catches up with rotations performed by other processes holding
// the same lock: if the live path no longer names our file, reopen it.
func (s *FileSink) refresh() error {
	if s.file == nil {
		return nil
	}
	ours, err := s.file.Stat()
	if err != nil {
		return errors.Wrap(err, "stat file")
	}
	live, err := os.Stat(s.path)
	if err != nil || !os.SameFile(ours, live) {
		_ = s.closeFile()
		return s.open()
	}
	s.size = ours.Size()
	return nil
}

func (s *FileSink) needsRotation(n int) bool {
	return s.cfg.BackupCount > 0 && s.cfg.SizeLimit > 0 &&
		s.size > 0 && s.size+int64(n) > s.cfg.SizeLimit
}

func (s *FileSink) rotate() error {
	if err := s.closeFile(); err != nil {
		return errors.Wrap(err, "close before rotation")
	}
	if err := shiftBackups(s.path, s.cfg.BackupCount); err != nil {
		return err
	}
	if err := s.open(); err != nil {
		return errors.Wrap(err, "reopen after rotation")
	}
	s.stats.TrackRotation()
	return nil
}

// Emit implements Sink
func (s *FileSink) Emit(record []byte, level types.Level) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.stats.TrackError(ErrClosed)
		return 0, ErrClosed
	}

	if s.lock != nil {
		if err := s.lock.Lock(); err != nil {
			err = errors.Wrap(err, "acquire lock")
			s.stats.TrackError(err)
			return 0, err
		}
		defer func() {
			_ = s.lock.Unlock()
		}()
		if err := s.refresh(); err != nil {
			s.stats.TrackError(err)
			return 0, err
		}
	}

	start := time.Now()
	if s.file == nil {
		if err := s.open(); err != nil {
			s.stats.TrackError(err)
			return 0, err
		}
	}
	if s.needsRotation(len(record)) {
		if err := s.rotate(); err != nil {
			s.stats.TrackError(err)
			return 0, err
		}
	}

	n, err := s.file.Write(record)
	if err != nil {
		// Drop the partial record and reopen on the next call
		err = errors.Wrapf(err, "write %s", s.path)
		if n > 0 {
			err = multierr.Append(err, errors.Wrap(s.file.Truncate(s.size), "drop partial record"))
		}
		_ = s.closeFile()
		s.stats.TrackError(err)
		return 0, err
	}
	s.size += int64(n)
	s.stats.TrackWrite(level, n, time.Since(start))
	return n, nil
}

// Rotate forces a rotation regardless of size.
func (s *FileSink) Rotate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.cfg.BackupCount == 0 {
		return errors.New("rotation disabled: backup count is zero")
	}
	return s.rotate()
}

// Flush syncs the file to disk
func (s *FileSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	return s.file.Sync()
}

// Size returns the number of bytes in the live file
func (s *FileSink) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Path returns the live file path
func (s *FileSink) Path() string {
	return s.path
}

// Close closes the file. Emit fails with ErrClosed afterwards.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	err := errors.Wrap(s.closeFile(), "close file")
	if s.lock != nil {
		err = multierr.Append(err, errors.Wrap(s.lock.Close(), "release lock"))
	}
	return err
}

// Describe implements Sink
func (s *FileSink) Describe() Info {
	s.mu.Lock()
	open := s.file != nil
	s.mu.Unlock()

	return Info{
		Kind:      KindFile,
		Target:    s.path,
		Connected: open,
		Stats:     s.stats.Snapshot(),
	}
}
