package backends

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/wayneeseguin/sinklog/internal/metrics"
	"github.com/wayneeseguin/sinklog/pkg/types"
)

// DefaultWindowSize is the mapped window of an mmap sink when none is set
const DefaultWindowSize = 1 << 20

// MmapConfig configures a memory-mapped rotating file sink. File naming and
// rotation follow FileConfig. WindowSize is rounded up to a multiple of the
// page size.
type MmapConfig struct {
	Dir         string
	Name        string
	SizeLimit   int64
	BackupCount int
	WindowSize  int
}

// Kind implements Config
func (MmapConfig) Kind() Kind { return KindMmap }

// Validate implements Config
func (c MmapConfig) Validate() error {
	if err := validateFileTarget(c.Name, c.SizeLimit, c.BackupCount); err != nil {
		return err
	}
	if c.WindowSize < 0 {
		return invalidf("negative window size %d", c.WindowSize)
	}
	return nil
}

// Path returns the live file path
func (c MmapConfig) Path() string {
	return logPath(c.Dir, c.Name)
}

func roundWindow(size, page int) int {
	if size <= 0 {
		size = DefaultWindowSize
	}
	if rem := size % page; rem != 0 {
		size += page - rem
	}
	return size
}

// window is the mapped state of an mmap sink: data maps the file range
// [fileOffset, fileOffset+len(data)) and dataOffset is the next free byte.
type window struct {
	data       []byte
	fileOffset int64
	dataOffset int
}

func (w *window) full() bool {
	return w.dataOffset >= len(w.data)
}

// MmapSink writes records into a mapped window of the backing file and
// advances the window when it fills. A nil window means unmapped.
//
// The file is extended one window at a time; Close and rotation truncate it
// back to the logical length, the number of bytes actually written.
type MmapSink struct {
	mu      sync.Mutex
	cfg     MmapConfig
	path    string
	winSize int
	file    *os.File
	fileLen int64
	size    int64
	win     *window
	closed  bool
	stats   *metrics.Collector
}

// NewMmapSink creates the directory if needed and opens the backing file.
// The first window is mapped lazily.
func NewMmapSink(cfg MmapConfig) (*MmapSink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &MmapSink{
		cfg:     cfg,
		path:    cfg.Path(),
		winSize: roundWindow(cfg.WindowSize, os.Getpagesize()),
		stats:   metrics.NewCollector(),
	}

	// #nosec G301 - log directories need to be accessible by other processes
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return nil, errors.Wrap(err, "create directory")
	}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

// WindowSize returns the effective window size
func (s *MmapSink) WindowSize() int {
	return s.winSize
}

func (s *MmapSink) open() error {
	// #nosec G302 - log files need to be readable
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return errors.Wrap(err, "open file")
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return errors.Wrap(err, "stat file")
	}
	s.file = f
	s.fileLen = info.Size()
	s.size = info.Size()
	return nil
}

// mapNext maps the window holding the logical end of the file.
func (s *MmapSink) mapNext() error {
	if err := s.unmap(); err != nil {
		return err
	}

	off := (s.size / int64(s.winSize)) * int64(s.winSize)
	end := off + int64(s.winSize)
	if s.fileLen < end {
		if err := truncateFile(s.file, end); err != nil {
			return errors.Wrap(err, "extend file")
		}
		s.fileLen = end
	}

	data, err := mapWindow(s.file, off, s.winSize)
	if err != nil {
		return errors.Wrap(err, "map window")
	}
	s.win = &window{
		data:       data,
		fileOffset: off,
		dataOffset: int(s.size - off),
	}
	return nil
}

func (s *MmapSink) unmap() error {
	if s.win == nil {
		return nil
	}
	data := s.win.data
	s.win = nil
	return errors.Wrap(unmapWindow(data), "unmap window")
}

// release unmaps, truncates the file to its logical length and closes it.
func (s *MmapSink) release() error {
	if s.file == nil {
		return nil
	}

	err := s.unmap()
	if s.fileLen != s.size {
		err = multierr.Append(err, errors.Wrap(truncateFile(s.file, s.size), "truncate"))
		s.fileLen = s.size
	}
	err = multierr.Append(err, errors.Wrap(s.file.Close(), "close file"))
	s.file = nil
	return err
}

func (s *MmapSink) needsRotation(n int) bool {
	return s.cfg.BackupCount > 0 && s.cfg.SizeLimit > 0 &&
		s.size > 0 && s.size+int64(n) > s.cfg.SizeLimit
}

func (s *MmapSink) rotate() error {
	if err := s.release(); err != nil {
		return errors.Wrap(err, "release before rotation")
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

// fail drops back to the unmapped, closed state so the next Emit reopens.
// The file is truncated to s.size.
func (s *MmapSink) fail(err error) error {
	_ = s.release()
	s.stats.TrackError(err)
	return err
}

// Emit implements Sink. A record crossing the end of the window is split:
// the head fills the old window and the tail starts the next one.
func (s *MmapSink) Emit(record []byte, level types.Level) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.stats.TrackError(ErrClosed)
		return 0, ErrClosed
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
			return 0, s.fail(err)
		}
	}

	// A record is written whole or not at all: on failure the logical length
	// goes back to before, so release truncates the head away.
	before := s.size
	written := 0
	for written < len(record) {
		if s.win == nil || s.win.full() {
			if err := s.mapNext(); err != nil {
				s.size = before
				return 0, s.fail(err)
			}
		}
		n := copy(s.win.data[s.win.dataOffset:], record[written:])
		s.win.dataOffset += n
		s.size += int64(n)
		written += n
	}

	s.stats.TrackWrite(level, written, time.Since(start))
	return written, nil
}

// Flush synchronously writes the mapped window back to the file
func (s *MmapSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.win == nil {
		return nil
	}
	return errors.Wrap(syncWindow(s.win.data), "msync")
}

// Size returns the logical length of the live file
func (s *MmapSink) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Path returns the live file path
func (s *MmapSink) Path() string {
	return s.path
}

// Close unmaps the window and truncates the file to its logical length.
func (s *MmapSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.release(); err != nil {
		return errors.Wrap(err, "close mmap sink")
	}
	return nil
}

// Describe implements Sink
func (s *MmapSink) Describe() Info {
	s.mu.Lock()
	mapped := s.win != nil
	s.mu.Unlock()

	return Info{
		Kind:      KindMmap,
		Target:    s.path,
		Connected: mapped,
		Stats:     s.stats.Snapshot(),
	}
}
