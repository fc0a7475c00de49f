//go:build linux

package backends_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/wayneeseguin/sinklog/pkg/backends"
	"github.com/wayneeseguin/sinklog/pkg/types"
)

// limitFileSize lowers the soft RLIMIT_FSIZE of the test process and returns
// the function restoring it. The runtime ignores SIGXFSZ, so writes past the
// limit fail with EFBIG.
func limitFileSize(t *testing.T, size uint64) func() {
	t.Helper()
	var old unix.Rlimit
	require.NoError(t, unix.Getrlimit(unix.RLIMIT_FSIZE, &old))
	if old.Max != unix.RLIM_INFINITY && old.Max < size {
		t.Skipf("hard file size limit %d below %d", old.Max, size)
	}

	lowered := unix.Rlimit{Cur: size, Max: old.Max}
	require.NoError(t, unix.Setrlimit(unix.RLIMIT_FSIZE, &lowered))

	restored := false
	restore := func() {
		if !restored {
			restored = true
			require.NoError(t, unix.Setrlimit(unix.RLIMIT_FSIZE, &old))
		}
	}
	t.Cleanup(restore)
	return restore
}

func TestMmapSink_FailedExtensionDropsWholeRecord(t *testing.T) {
	sink, err := backends.NewMmapSink(backends.MmapConfig{Dir: t.TempDir(), Name: "torn", WindowSize: 1})
	require.NoError(t, err)
	defer sink.Close()

	window := sink.WindowSize()
	first := strings.Repeat("a", window*3/4-1) + "\n"
	second := strings.Repeat("b", window*3/4-1) + "\n"

	restore := limitFileSize(t, uint64(window))

	n, err := sink.Emit([]byte(first), types.LevelInfo)
	require.NoError(t, err)
	assert.Equal(t, len(first), n)

	// The second record fills the first window and then needs the file
	// extended past the limit.
	n, err = sink.Emit([]byte(second), types.LevelInfo)
	require.Error(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, int64(len(first)), sink.Size())

	restore()

	_, err = sink.Emit([]byte("next\n"), types.LevelInfo)
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	assert.Equal(t, first+"next\n", readFile(t, sink.Path()))
	assert.Equal(t, uint64(1), sink.Describe().Stats.Errors)
}

func TestFileSink_ShortWriteDropsWholeRecord(t *testing.T) {
	sink, err := backends.NewFileSink(backends.FileConfig{Dir: t.TempDir(), Name: "short"})
	require.NoError(t, err)
	defer sink.Close()

	first := strings.Repeat("a", 2999) + "\n"
	second := strings.Repeat("b", 2999) + "\n"

	restore := limitFileSize(t, 4096)

	_, err = sink.Emit([]byte(first), types.LevelInfo)
	require.NoError(t, err)

	n, err := sink.Emit([]byte(second), types.LevelInfo)
	require.Error(t, err)
	assert.Equal(t, 0, n)

	restore()

	_, err = sink.Emit([]byte("next\n"), types.LevelInfo)
	require.NoError(t, err)
	assert.Equal(t, int64(len(first)+len("next\n")), sink.Size())
	require.NoError(t, sink.Close())

	assert.Equal(t, first+"next\n", readFile(t, sink.Path()))
}
