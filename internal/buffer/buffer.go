package buffer

// TruncationMarker replaces the tail of a record that could not fit even
// after the buffer grew to its maximum capacity.
const TruncationMarker = " (truncated)"

// Default capacity bounds used when a caller passes non-positive limits.
const (
	DefaultMinSize = 1024
	DefaultMaxSize = 64 * 1024
)

// fill is the source for padding runs.
var (
	zeros  = [32]byte{'0', '0', '0', '0', '0', '0', '0', '0', '0', '0', '0', '0', '0', '0', '0', '0', '0', '0', '0', '0', '0', '0', '0', '0', '0', '0', '0', '0', '0', '0', '0', '0'}
	spaces = [32]byte{' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' ', ' '}
)

const hexDigits = "0123456789abcdef"

// Buffer is a bounded, growable byte buffer that accumulates one rendered
// record at a time. Its capacity only ever grows (up to max) so the cost of
// growth is amortized over the lifetime of the owner.
//
// Every append reports whether the bytes fit. Once a record overflows the
// maximum capacity the buffer writes as much as fits, stamps
// TruncationMarker over its last bytes and ignores further appends until
// Reset. Truncation is a signal, not an error: the shortened record is still
// meant to be emitted.
//
// Buffer is not safe for concurrent use.
type Buffer struct {
	buf       []byte
	min       int
	max       int
	truncated bool
}

// NewBuffer creates a buffer with min bytes of initial capacity that may grow
// up to max bytes.
func NewBuffer(min, max int) *Buffer {
	if min <= 0 {
		min = DefaultMinSize
	}
	if max <= 0 {
		max = DefaultMaxSize
	}
	if max < len(TruncationMarker) {
		max = len(TruncationMarker)
	}
	if min > max {
		min = max
	}
	return &Buffer{
		buf: make([]byte, 0, min),
		min: min,
		max: max,
	}
}

// Reset rewinds the buffer for the next record. Capacity is retained.
func (b *Buffer) Reset() {
	b.buf = b.buf[:0]
	b.truncated = false
}

// Bytes returns the rendered bytes. The slice is only valid until the next
// mutation of the buffer.
func (b *Buffer) Bytes() []byte { return b.buf }

// String returns a copy of the rendered bytes as a string.
func (b *Buffer) String() string { return string(b.buf) }

// Len returns the number of rendered bytes.
func (b *Buffer) Len() int { return len(b.buf) }

// Cap returns the current capacity.
func (b *Buffer) Cap() int { return cap(b.buf) }

// Min returns the initial capacity.
func (b *Buffer) Min() int { return b.min }

// Max returns the capacity limit.
func (b *Buffer) Max() int { return b.max }

// Truncated reports whether the current record hit the capacity limit.
func (b *Buffer) Truncated() bool { return b.truncated }

// reserve makes room for n more bytes and returns how many of them fit.
func (b *Buffer) reserve(n int) int {
	need := len(b.buf) + n
	if need <= cap(b.buf) {
		return n
	}
	if cap(b.buf) < b.max {
		grown := cap(b.buf) + cap(b.buf)/2
		if grown < need {
			grown = need
		}
		if grown > b.max {
			grown = b.max
		}
		next := make([]byte, len(b.buf), grown)
		copy(next, b.buf)
		b.buf = next
	}
	if room := cap(b.buf) - len(b.buf); room < n {
		return room
	}
	return n
}

// truncate stamps the marker over the end of a full buffer.
func (b *Buffer) truncate() {
	b.buf = b.buf[:cap(b.buf)]
	copy(b.buf[len(b.buf)-len(TruncationMarker):], TruncationMarker)
	b.truncated = true
}

// AppendLiteral appends p verbatim.
func (b *Buffer) AppendLiteral(p []byte) bool {
	if b.truncated {
		return false
	}
	fit := b.reserve(len(p))
	b.buf = append(b.buf, p[:fit]...)
	if fit < len(p) {
		b.truncate()
		return false
	}
	return true
}

// AppendString appends s verbatim.
func (b *Buffer) AppendString(s string) bool {
	if b.truncated {
		return false
	}
	fit := b.reserve(len(s))
	b.buf = append(b.buf, s[:fit]...)
	if fit < len(s) {
		b.truncate()
		return false
	}
	return true
}

// AppendByte appends a single byte.
func (b *Buffer) AppendByte(c byte) bool {
	if b.truncated {
		return false
	}
	if b.reserve(1) == 0 {
		b.truncate()
		return false
	}
	b.buf = append(b.buf, c)
	return true
}

// appendFill appends n copies of the padding byte c (either '0' or ' ').
func (b *Buffer) appendFill(c byte, n int) bool {
	src := spaces[:]
	if c == '0' {
		src = zeros[:]
	}
	for n > 0 {
		chunk := n
		if chunk > len(src) {
			chunk = len(src)
		}
		if !b.AppendLiteral(src[:chunk]) {
			return false
		}
		n -= chunk
	}
	return true
}

// AppendDecimal appends v in base 10, zero-padded to minWidth digits.
func (b *Buffer) AppendDecimal(v uint64, minWidth int) bool {
	var scratch [20]byte
	i := len(scratch)
	for {
		i--
		scratch[i] = byte('0' + v%10)
		v /= 10
		if v == 0 {
			break
		}
	}
	digits := scratch[i:]
	if pad := minWidth - len(digits); pad > 0 {
		if !b.appendFill('0', pad) {
			return false
		}
	}
	return b.AppendLiteral(digits)
}

// AppendHex appends v in lower-case base 16, zero-padded to minWidth digits.
func (b *Buffer) AppendHex(v uint32, minWidth int) bool {
	var scratch [8]byte
	i := len(scratch)
	for {
		i--
		scratch[i] = hexDigits[v&0xf]
		v >>= 4
		if v == 0 {
			break
		}
	}
	digits := scratch[i:]
	if pad := minWidth - len(digits); pad > 0 {
		if !b.appendFill('0', pad) {
			return false
		}
	}
	return b.AppendLiteral(digits)
}

// AppendPadded appends src clipped to maxWidth bytes (when maxWidth > 0) and
// padded to minWidth. Padding goes on the right when leftAdjust is set,
// otherwise on the left with '0' when zeroPad is set and spaces when not.
func (b *Buffer) AppendPadded(src []byte, leftAdjust, zeroPad bool, minWidth, maxWidth int) bool {
	if maxWidth > 0 && len(src) > maxWidth {
		src = src[:maxWidth]
	}
	pad := minWidth - len(src)
	if pad <= 0 {
		return b.AppendLiteral(src)
	}
	if leftAdjust {
		return b.AppendLiteral(src) && b.appendFill(' ', pad)
	}
	fill := byte(' ')
	if zeroPad {
		fill = '0'
	}
	return b.appendFill(fill, pad) && b.AppendLiteral(src)
}

// Write implements io.Writer so fmt.Fprintf can expand directly into the
// buffer. It never returns an error: overflow truncates instead.
func (b *Buffer) Write(p []byte) (int, error) {
	b.AppendLiteral(p)
	return len(p), nil
}

// WriteString implements io.StringWriter.
func (b *Buffer) WriteString(s string) (int, error) {
	b.AppendString(s)
	return len(s), nil
}

// WriteByte implements io.ByteWriter.
func (b *Buffer) WriteByte(c byte) error {
	b.AppendByte(c)
	return nil
}
