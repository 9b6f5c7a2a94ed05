package bitspacket

import (
	"encoding/binary"
	"fmt"
)

// maxTake is the widest field a single Take may read. No field in a BITS
// transmission is wider than 15 bits, so at most three bytes are touched.
const maxTake = 16

// BitCursor reads unsigned integers of up to 16 bits from a byte slice.
// Bits are consumed MSB-first within each byte (big-endian bit order).
//
// A BitCursor is the only mutable state of a decode; it is shared by
// every recursive packet parse of one transmission and must not be shared
// between goroutines.
type BitCursor struct {
	buf []byte
	pos int // current bit position, 0 <= pos <= 8*len(buf)
}

// NewBitCursor returns a cursor positioned at the first bit of b.
func NewBitCursor(b []byte) *BitCursor { return &BitCursor{buf: b} }

// Take reads n bits (1 ≤ n ≤ 16) and returns them as a uint32.
//
// The bytes containing the requested window are read as one big-endian
// integer, the bits trailing the window are shifted off and the result is
// masked to n bits. On error the cursor does not move.
func (c *BitCursor) Take(n int) (uint32, error) {
	if n < 1 || n > maxTake {
		return 0, fmt.Errorf("bit cursor: take %d bits: %w", n, ErrBitWidth)
	}
	end := c.pos + n
	if end > len(c.buf)*8 {
		return 0, fmt.Errorf("bit cursor: take %d bits at pos %d overflows buffer (%d bytes): %w",
			n, c.pos, len(c.buf), ErrShortBuffer)
	}

	first := c.pos / 8
	last := (end - 1) / 8
	var window uint32
	switch last - first {
	case 0:
		window = uint32(c.buf[first])
	case 1:
		window = uint32(binary.BigEndian.Uint16(c.buf[first:]))
	default:
		window = uint32(binary.BigEndian.Uint16(c.buf[first:]))<<8 | uint32(c.buf[first+2])
	}
	span := (last - first + 1) * 8
	shift := span - c.pos%8 - n

	c.pos = end
	return (window >> shift) & (uint32(1)<<n - 1), nil
}

// Pos returns the current bit position.
func (c *BitCursor) Pos() int { return c.pos }

// Len returns the size of the underlying buffer in bits.
func (c *BitCursor) Len() int { return len(c.buf) * 8 }

// Remaining returns the number of unread bits.
func (c *BitCursor) Remaining() int { return len(c.buf)*8 - c.pos }
