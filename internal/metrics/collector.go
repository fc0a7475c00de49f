package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/wayneeseguin/sinklog/pkg/types"
)

const levelCount = int(types.LevelMax) + 1

// Collector accumulates emit counters for one sink. All methods are safe for
// concurrent use. The numbers are advisory diagnostics.
type Collector struct {
	// Records and bytes by level
	records [levelCount]atomic.Uint64
	bytes   [levelCount]atomic.Uint64

	// Failure and lifecycle counters
	errorCount     atomic.Uint64
	droppedCount   atomic.Uint64
	rotationCount  atomic.Uint64
	reconnectCount atomic.Uint64

	// Performance metrics
	totalWriteTime atomic.Int64 // nanoseconds
	maxWriteTime   atomic.Int64 // nanoseconds

	lastErrMu   sync.Mutex
	lastErr     string
	lastErrTime time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{}
}

// LevelStats holds the counters of a single level.
type LevelStats struct {
	Level   types.Level `json:"level"`
	Records uint64      `json:"records"`
	Bytes   uint64      `json:"bytes"`
}

// Snapshot is a point-in-time copy of a Collector.
type Snapshot struct {
	ByLevel          []LevelStats  `json:"by_level"`
	Records          uint64        `json:"records"`
	Bytes            uint64        `json:"bytes"`
	Errors           uint64        `json:"errors"`
	Dropped          uint64        `json:"dropped"`
	Rotations        uint64        `json:"rotations"`
	Reconnects       uint64        `json:"reconnects"`
	AverageWriteTime time.Duration `json:"average_write_time"`
	MaxWriteTime     time.Duration `json:"max_write_time"`
	LastError        string        `json:"last_error,omitempty"`
	LastErrorTime    time.Time     `json:"last_error_time,omitempty"`
}

// TrackWrite records one emitted record of n bytes at level.
func (c *Collector) TrackWrite(level types.Level, n int, duration time.Duration) {
	l := level.Clamp()
	c.records[l].Add(1)
	if n > 0 {
		c.bytes[l].Add(uint64(n))
	}
	c.totalWriteTime.Add(int64(duration))

	// Update max write time
	for {
		oldMax := c.maxWriteTime.Load()
		if int64(duration) <= oldMax {
			break
		}
		if c.maxWriteTime.CompareAndSwap(oldMax, int64(duration)) {
			break
		}
	}
}

// TrackError records a failed emit. The record is counted as dropped.
func (c *Collector) TrackError(err error) {
	c.errorCount.Add(1)
	c.droppedCount.Add(1)
	if err == nil {
		return
	}
	c.lastErrMu.Lock()
	c.lastErr = err.Error()
	c.lastErrTime = time.Now()
	c.lastErrMu.Unlock()
}

// TrackRotation increments the rotation counter.
func (c *Collector) TrackRotation() {
	c.rotationCount.Add(1)
}

// TrackReconnect increments the reconnect counter.
func (c *Collector) TrackReconnect() {
	c.reconnectCount.Add(1)
}

// Records returns the number of records emitted at level.
func (c *Collector) Records(level types.Level) uint64 {
	return c.records[level.Clamp()].Load()
}

// Errors returns the total error count.
func (c *Collector) Errors() uint64 {
	return c.errorCount.Load()
}

// Snapshot returns a copy of every counter.
func (c *Collector) Snapshot() Snapshot {
	s := Snapshot{
		ByLevel:      make([]LevelStats, 0, levelCount),
		Errors:       c.errorCount.Load(),
		Dropped:      c.droppedCount.Load(),
		Rotations:    c.rotationCount.Load(),
		Reconnects:   c.reconnectCount.Load(),
		MaxWriteTime: time.Duration(c.maxWriteTime.Load()),
	}
	for l := types.LevelMin; l <= types.LevelMax; l++ {
		ls := LevelStats{Level: l, Records: c.records[l].Load(), Bytes: c.bytes[l].Load()}
		s.Records += ls.Records
		s.Bytes += ls.Bytes
		s.ByLevel = append(s.ByLevel, ls)
	}
	if s.Records > 0 {
		s.AverageWriteTime = time.Duration(c.totalWriteTime.Load()) / time.Duration(s.Records)
	}

	c.lastErrMu.Lock()
	s.LastError = c.lastErr
	s.LastErrorTime = c.lastErrTime
	c.lastErrMu.Unlock()
	return s
}

// Reset zeroes every counter.
func (c *Collector) Reset() {
	for i := range c.records {
		c.records[i].Store(0)
		c.bytes[i].Store(0)
	}
	c.errorCount.Store(0)
	c.droppedCount.Store(0)
	c.rotationCount.Store(0)
	c.reconnectCount.Store(0)
	c.totalWriteTime.Store(0)
	c.maxWriteTime.Store(0)

	c.lastErrMu.Lock()
	c.lastErr = ""
	c.lastErrTime = time.Time{}
	c.lastErrMu.Unlock()
}
