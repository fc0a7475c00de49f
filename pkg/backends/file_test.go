package backends_test

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wayneeseguin/sinklog/pkg/backends"
	"github.com/wayneeseguin/sinklog/pkg/types"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestFileSink_Emit(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	sink, err := backends.NewFileSink(backends.FileConfig{Dir: dir, Name: "app"})
	require.NoError(t, err)
	defer sink.Close()

	assert.Equal(t, filepath.Join(dir, "app.log"), sink.Path())

	for i := 0; i < 3; i++ {
		n, err := sink.Emit([]byte(fmt.Sprintf("line %d\n", i)), types.LevelInfo)
		require.NoError(t, err)
		assert.Equal(t, 7, n)
	}
	require.NoError(t, sink.Flush())

	assert.Equal(t, "line 0\nline 1\nline 2\n", readFile(t, sink.Path()))
	assert.Equal(t, int64(21), sink.Size())

	info := sink.Describe()
	assert.Equal(t, backends.KindFile, info.Kind)
	assert.True(t, info.Connected)
	assert.Equal(t, uint64(3), info.Stats.Records)
	assert.Equal(t, uint64(21), info.Stats.Bytes)
}

func TestFileSink_SizeStartsAtExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0644))

	sink, err := backends.NewFileSink(backends.FileConfig{Dir: dir, Name: "app", SizeLimit: 15, BackupCount: 2})
	require.NoError(t, err)
	defer sink.Close()
	assert.Equal(t, int64(10), sink.Size())

	// 10 + 6 > 15 rotates before the write
	_, err = sink.Emit([]byte("abcdef"), types.LevelInfo)
	require.NoError(t, err)

	assert.Equal(t, "0123456789", readFile(t, path+".0"))
	assert.Equal(t, "abcdef", readFile(t, path))
}

func TestFileSink_RotationCorrectness(t *testing.T) {
	const backups = 3
	dir := t.TempDir()
	sink, err := backends.NewFileSink(backends.FileConfig{
		Dir:         dir,
		Name:        "rot",
		SizeLimit:   20,
		BackupCount: backups,
	})
	require.NoError(t, err)
	defer sink.Close()

	// Records are 10 bytes: each file takes two before the next rotates.
	records := 2 * (backups + 2)
	for i := 0; i < records; i++ {
		_, err := sink.Emit([]byte(fmt.Sprintf("record-%02d\n", i)), types.LevelInfo)
		require.NoError(t, err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "rot.log.*"))
	require.NoError(t, err)
	assert.Len(t, matches, backups)
	for i := 0; i < backups; i++ {
		assert.FileExists(t, filepath.Join(dir, fmt.Sprintf("rot.log.%d", i)))
	}
	assert.NoFileExists(t, filepath.Join(dir, fmt.Sprintf("rot.log.%d", backups)))

	rotations := sink.Describe().Stats.Rotations
	assert.Greater(t, rotations, uint64(backups))

	// The live file holds only what was written since the last rotation and
	// the backups hold the preceding pairs, newest first.
	last := records - 1
	assert.Equal(t, fmt.Sprintf("record-%02d\nrecord-%02d\n", last-1, last), readFile(t, sink.Path()))
	assert.Equal(t, fmt.Sprintf("record-%02d\nrecord-%02d\n", last-3, last-2), readFile(t, sink.Path()+".0"))
	assert.Equal(t, fmt.Sprintf("record-%02d\nrecord-%02d\n", last-5, last-4), readFile(t, sink.Path()+".1"))
}

func TestFileSink_ExactlyNPlusOneRotations(t *testing.T) {
	dir := t.TempDir()
	sink, err := backends.NewFileSink(backends.FileConfig{Dir: dir, Name: "n", SizeLimit: 5, BackupCount: 2})
	require.NoError(t, err)
	defer sink.Close()

	// A 5-byte record fills the file; every following record rotates.
	for i := 0; i < 4; i++ {
		_, err := sink.Emit([]byte(fmt.Sprintf("rec%d\n", i)), types.LevelWarn)
		require.NoError(t, err)
	}

	assert.Equal(t, uint64(3), sink.Describe().Stats.Rotations)
	assert.Equal(t, "rec3\n", readFile(t, sink.Path()))
	assert.Equal(t, "rec2\n", readFile(t, sink.Path()+".0"))
	assert.Equal(t, "rec1\n", readFile(t, sink.Path()+".1"))
	assert.NoFileExists(t, sink.Path()+".2")
}

func TestFileSink_NoBackupsGrowsUnbounded(t *testing.T) {
	dir := t.TempDir()
	sink, err := backends.NewFileSink(backends.FileConfig{Dir: dir, Name: "grow", SizeLimit: 8})
	require.NoError(t, err)
	defer sink.Close()

	for i := 0; i < 10; i++ {
		_, err := sink.Emit([]byte("12345\n"), types.LevelInfo)
		require.NoError(t, err)
	}
	assert.Equal(t, int64(60), sink.Size())
	assert.NoFileExists(t, sink.Path()+".0")
	assert.Equal(t, uint64(0), sink.Describe().Stats.Rotations)
}

func TestFileSink_OversizedRecordGoesToFreshFile(t *testing.T) {
	dir := t.TempDir()
	sink, err := backends.NewFileSink(backends.FileConfig{Dir: dir, Name: "big", SizeLimit: 4, BackupCount: 1})
	require.NoError(t, err)
	defer sink.Close()

	big := strings.Repeat("x", 10)
	_, err = sink.Emit([]byte(big), types.LevelInfo)
	require.NoError(t, err)
	_, err = sink.Emit([]byte(big), types.LevelInfo)
	require.NoError(t, err)

	assert.Equal(t, big, readFile(t, sink.Path()))
	assert.Equal(t, big, readFile(t, sink.Path()+".0"))
}

func TestFileSink_Rotate(t *testing.T) {
	dir := t.TempDir()
	sink, err := backends.NewFileSink(backends.FileConfig{Dir: dir, Name: "manual", BackupCount: 2})
	require.NoError(t, err)
	defer sink.Close()

	_, err = sink.Emit([]byte("before\n"), types.LevelInfo)
	require.NoError(t, err)
	require.NoError(t, sink.Rotate())
	_, err = sink.Emit([]byte("after\n"), types.LevelInfo)
	require.NoError(t, err)

	assert.Equal(t, "before\n", readFile(t, sink.Path()+".0"))
	assert.Equal(t, "after\n", readFile(t, sink.Path()))

	disabled, err := backends.NewFileSink(backends.FileConfig{Dir: dir, Name: "norotate"})
	require.NoError(t, err)
	defer disabled.Close()
	assert.Error(t, disabled.Rotate())
}

func TestFileSink_ProcessLock(t *testing.T) {
	dir := t.TempDir()
	cfg := backends.FileConfig{Dir: dir, Name: "locked", SizeLimit: 64, BackupCount: 2, ProcessLock: true}

	a, err := backends.NewFileSink(cfg)
	require.NoError(t, err)
	defer a.Close()
	b, err := backends.NewFileSink(cfg)
	require.NoError(t, err)
	defer b.Close()

	var wg sync.WaitGroup
	for _, sink := range []*backends.FileSink{a, b} {
		wg.Add(1)
		go func(s *backends.FileSink) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_, _ = s.Emit([]byte("0123456789abcdef\n"), types.LevelInfo)
			}
		}(sink)
	}
	wg.Wait()

	// Every file holds whole records only
	paths, err := filepath.Glob(filepath.Join(dir, "locked.log*"))
	require.NoError(t, err)
	for _, p := range paths {
		if strings.HasSuffix(p, ".lock") {
			continue
		}
		for _, line := range strings.Split(strings.TrimSuffix(readFile(t, p), "\n"), "\n") {
			if line != "" {
				assert.Equal(t, "0123456789abcdef", line, p)
			}
		}
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.LessOrEqual(t, info.Size(), int64(64), p)
	}
}

func TestFileSink_ConcurrentWritersShareSink(t *testing.T) {
	dir := t.TempDir()
	sink, err := backends.NewFileSink(backends.FileConfig{Dir: dir, Name: "shared"})
	require.NoError(t, err)
	defer sink.Close()

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			rec := []byte(strings.Repeat(string(rune('a'+g)), 31) + "\n")
			for i := 0; i < 100; i++ {
				_, _ = sink.Emit(rec, types.LevelDebug)
			}
		}(g)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(readFile(t, sink.Path()), "\n"), "\n")
	assert.Len(t, lines, 400)
	for _, line := range lines {
		require.Len(t, line, 31)
		assert.Equal(t, strings.Repeat(line[:1], 31), line)
	}
	assert.Equal(t, uint64(400), sink.Describe().Stats.ByLevel[types.LevelDebug].Records)
}

func TestFileSink_Closed(t *testing.T) {
	sink, err := backends.NewFileSink(backends.FileConfig{Dir: t.TempDir(), Name: "closed"})
	require.NoError(t, err)
	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())

	_, err = sink.Emit([]byte("x"), types.LevelInfo)
	assert.True(t, errors.Is(err, backends.ErrClosed))
	assert.False(t, sink.Describe().Connected)
}

func TestFileConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		cfg  backends.FileConfig
		ok   bool
	}{
		{"valid", backends.FileConfig{Name: "app"}, true},
		{"empty name", backends.FileConfig{}, false},
		{"separator", backends.FileConfig{Name: "a/b"}, false},
		{"negative size", backends.FileConfig{Name: "a", SizeLimit: -1}, false},
		{"negative backups", backends.FileConfig{Name: "a", BackupCount: -1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, backends.ErrInvalidConfig)
			}
		})
	}
}
