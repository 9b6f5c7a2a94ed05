package bitspacket

import (
	"fmt"
	"math/big"

	"go.uber.org/zap"
)

// Input sanity limits.
const (
	// DefaultMaxDepth bounds packet nesting. Each level costs at least
	// 18 header bits, so real transmissions stay far below it.
	DefaultMaxDepth = 512

	// Header field widths.
	versionBits     = 3
	typeBits        = 3
	lengthTypeBits  = 1
	totalLengthBits = 15
	countBits       = 11
	groupFlagBits   = 1
	groupBits       = 4
)

// Decoder decodes BITS transmissions into packet trees. The zero value is
// ready to use. A Decoder holds no per-transmission state and is safe for
// concurrent use; every Decode call gets its own BitCursor.
type Decoder struct {
	// MaxDepth limits packet nesting; 0 means DefaultMaxDepth.
	MaxDepth int
	// MaxBytes limits the transmission size; 0 means no limit.
	MaxBytes int
	// Logger receives a debug entry per decoded packet; nil disables logging.
	Logger *zap.Logger
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithMaxDepth sets the nesting limit.
func WithMaxDepth(n int) Option { return func(d *Decoder) { d.MaxDepth = n } }

// WithMaxBytes sets the transmission size limit.
func WithMaxBytes(n int) Option { return func(d *Decoder) { d.MaxBytes = n } }

// WithLogger sets the logger used for per-packet debug tracing.
func WithLogger(l *zap.Logger) Option { return func(d *Decoder) { d.Logger = l } }

// NewDecoder returns a Decoder with opts applied.
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

var defaultDecoder = NewDecoder()

// Decode decodes the root packet of buf with default limits.
func Decode(buf []byte) (*Packet, error) { return defaultDecoder.Decode(buf) }

// DecodeHex parses a hexadecimal transmission and decodes its root packet.
func DecodeHex(s string) (*Packet, error) { return defaultDecoder.DecodeHex(s) }

// Evaluate decodes buf and returns its version sum and value.
func Evaluate(buf []byte) (Result, error) {
	p, err := Decode(buf)
	if err != nil {
		return Result{}, err
	}
	return p.Result(), nil
}

// Result returns the version sum and value of p.
func (p *Packet) Result() Result {
	return Result{VersionSum: p.versionSum, Value: p.Value()}
}

// DecodeHex parses a hexadecimal transmission and decodes its root packet.
func (d *Decoder) DecodeHex(s string) (*Packet, error) {
	buf, err := ParseHex(s)
	if err != nil {
		return nil, err
	}
	return d.Decode(buf)
}

// Decode decodes the root packet of buf. Bits after the root packet are
// padding and are ignored.
func (d *Decoder) Decode(buf []byte) (*Packet, error) {
	if len(buf) == 0 {
		return nil, ErrEmpty
	}
	if d.MaxBytes > 0 && len(buf) > d.MaxBytes {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, len(buf), d.MaxBytes)
	}
	c := NewBitCursor(buf)
	p, err := d.parse(c, 0)
	if err != nil {
		return nil, err
	}
	d.logger().Debug("decoded transmission",
		zap.Int("bytes", len(buf)),
		zap.Int("packet_bits", p.Bits),
		zap.Int("padding_bits", c.Remaining()),
		zap.Int("version_sum", p.versionSum))
	return p, nil
}

func (d *Decoder) maxDepth() int {
	if d.MaxDepth > 0 {
		return d.MaxDepth
	}
	return DefaultMaxDepth
}

func (d *Decoder) logger() *zap.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return zap.NewNop()
}

// parse decodes one packet starting at the cursor, recursing into
// subpackets. The version sum and value are computed on the way back up,
// so the tree is traversed once.
//
// Errors raised here are wrapped with the packet's bit offset; errors from
// subpackets already carry their own offset and are returned unchanged.
func (d *Decoder) parse(c *BitCursor, depth int) (*Packet, error) {
	off := c.Pos()
	if depth > d.maxDepth() {
		return nil, fmt.Errorf("packet at bit %d: depth %d: %w", off, depth, ErrTooDeep)
	}

	version, err := c.Take(versionBits)
	if err != nil {
		return nil, fmt.Errorf("packet at bit %d: version: %w", off, err)
	}
	typ, err := c.Take(typeBits)
	if err != nil {
		return nil, fmt.Errorf("packet at bit %d: type: %w", off, err)
	}
	p := &Packet{Version: uint8(version), TypeID: TypeID(typ), Offset: off}
	p.versionSum = int(version)

	if p.IsLiteral() {
		lit, err := readLiteral(c)
		if err != nil {
			return nil, fmt.Errorf("packet at bit %d: literal: %w", off, err)
		}
		p.Literal = lit
		p.value = lit
	} else {
		if err := d.parseOperator(c, p, depth); err != nil {
			return nil, err
		}
		val, err := apply(p.TypeID, p.Subpackets)
		if err != nil {
			return nil, fmt.Errorf("packet at bit %d: %w", off, err)
		}
		p.value = val
	}
	p.Bits = c.Pos() - off

	d.logger().Debug("packet",
		zap.Int("offset", off),
		zap.Int("depth", depth),
		zap.Uint8("version", p.Version),
		zap.Stringer("type", p.TypeID),
		zap.Int("bits", p.Bits))
	return p, nil
}

// readLiteral reads 5-bit groups (continuation flag + nibble) until a group
// with a clear flag. Nibbles are packed big-endian, two per byte, and
// converted once, keeping long literals linear in their length.
func readLiteral(c *BitCursor) (*big.Int, error) {
	var nibs []byte
	for {
		more, err := c.Take(groupFlagBits)
		if err != nil {
			return nil, err
		}
		g, err := c.Take(groupBits)
		if err != nil {
			return nil, err
		}
		nibs = append(nibs, byte(g))
		if more == 0 {
			break
		}
	}

	// An odd count leaves the high nibble of the first byte empty.
	skew := len(nibs) % 2
	packed := make([]byte, (len(nibs)+1)/2)
	for i, nb := range nibs {
		k := i + skew
		packed[k/2] |= nb << (groupBits * (1 - k%2))
	}
	return new(big.Int).SetBytes(packed), nil
}

// parseOperator reads the length header of operator packet p and decodes
// its subpackets.
func (d *Decoder) parseOperator(c *BitCursor, p *Packet, depth int) error {
	lt, err := c.Take(lengthTypeBits)
	if err != nil {
		return fmt.Errorf("packet at bit %d: length type: %w", p.Offset, err)
	}
	p.LengthType = LengthType(lt)

	switch p.LengthType {
	case LengthBits:
		total, err := c.Take(totalLengthBits)
		if err != nil {
			return fmt.Errorf("packet at bit %d: subpacket length: %w", p.Offset, err)
		}
		// The stop condition is bits consumed, not a subpacket count.
		start := c.Pos()
		for c.Pos()-start < int(total) {
			sp, err := d.parse(c, depth+1)
			if err != nil {
				return err
			}
			p.add(sp)
		}
		if used := c.Pos() - start; used != int(total) {
			return fmt.Errorf("packet at bit %d: declared %d bits, subpackets used %d: %w",
				p.Offset, total, used, ErrLengthMismatch)
		}
	case LengthCount:
		count, err := c.Take(countBits)
		if err != nil {
			return fmt.Errorf("packet at bit %d: subpacket count: %w", p.Offset, err)
		}
		p.Subpackets = make([]*Packet, 0, count)
		for i := 0; i < int(count); i++ {
			sp, err := d.parse(c, depth+1)
			if err != nil {
				return err
			}
			p.add(sp)
		}
	}
	return nil
}

func (p *Packet) add(sp *Packet) {
	p.Subpackets = append(p.Subpackets, sp)
	p.versionSum += sp.versionSum
}
