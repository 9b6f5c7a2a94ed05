package bitspacket

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// TypeID is the 3-bit packet type. TypeLiteral marks a literal value;
// every other value is an operator.
type TypeID uint8

const (
	TypeSum     TypeID = 0
	TypeProduct TypeID = 1
	TypeMinimum TypeID = 2
	TypeMaximum TypeID = 3
	TypeLiteral TypeID = 4
	TypeGreater TypeID = 5
	TypeLess    TypeID = 6
	TypeEqual   TypeID = 7
)

var typeNames = [8]string{"sum", "mul", "min", "max", "lit", "gt", "lt", "eq"}

func (t TypeID) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// LengthType selects how an operator packet delimits its subpackets.
type LengthType uint8

const (
	// LengthBits: a 15-bit field gives the total bit length of the subpackets.
	LengthBits LengthType = 0
	// LengthCount: an 11-bit field gives the number of subpackets.
	LengthCount LengthType = 1
)

func (l LengthType) String() string {
	if l == LengthCount {
		return "count"
	}
	return "bits"
}

// Packet is one decoded unit of a transmission: a literal when TypeID is
// TypeLiteral, otherwise an operator over Subpackets.
type Packet struct {
	Version uint8
	TypeID  TypeID

	// Literal holds the value of a literal packet; nil for operators.
	Literal *big.Int

	// LengthType and Subpackets are set for operator packets only.
	LengthType LengthType
	Subpackets []*Packet

	// Offset is the bit position of the packet header in the transmission,
	// Bits the number of bits the packet (with all subpackets) occupies.
	Offset int
	Bits   int

	versionSum int
	value      *big.Int
}

// IsLiteral reports whether p is a literal packet.
func (p *Packet) IsLiteral() bool { return p.TypeID == TypeLiteral }

// VersionSum returns the version of p plus the versions of all its descendants.
func (p *Packet) VersionSum() int { return p.versionSum }

// Value returns the evaluated value of p. The result is a copy and may be
// modified by the caller.
func (p *Packet) Value() *big.Int { return new(big.Int).Set(p.value) }

// Walk calls fn for p and each descendant in pre-order. Returning false
// from fn skips the children of that packet.
func (p *Packet) Walk(fn func(p *Packet, depth int) bool) {
	p.walk(fn, 0)
}

func (p *Packet) walk(fn func(*Packet, int) bool, depth int) {
	if !fn(p, depth) {
		return
	}
	for _, sp := range p.Subpackets {
		sp.walk(fn, depth+1)
	}
}

// String renders the expression p encodes, e.g. "sum(1, mul(2, 3))".
func (p *Packet) String() string {
	var sb strings.Builder
	p.writeExpr(&sb)
	return sb.String()
}

func (p *Packet) writeExpr(sb *strings.Builder) {
	if p.IsLiteral() {
		sb.WriteString(p.Literal.String())
		return
	}
	sb.WriteString(p.TypeID.String())
	sb.WriteByte('(')
	for i, sp := range p.Subpackets {
		if i > 0 {
			sb.WriteString(", ")
		}
		sp.writeExpr(sb)
	}
	sb.WriteByte(')')
}

// jsonPacket is the wire form of a Packet. Values are decimal strings so
// literals wider than 53 bits survive JSON consumers.
type jsonPacket struct {
	Version    uint8     `json:"version"`
	Type       string    `json:"type"`
	TypeID     uint8     `json:"type_id"`
	Offset     int       `json:"offset"`
	Bits       int       `json:"bits"`
	Value      string    `json:"value"`
	LengthType string    `json:"length_type,omitempty"`
	Subpackets []*Packet `json:"subpackets,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (p *Packet) MarshalJSON() ([]byte, error) {
	jp := jsonPacket{
		Version: p.Version,
		Type:    p.TypeID.String(),
		TypeID:  uint8(p.TypeID),
		Offset:  p.Offset,
		Bits:    p.Bits,
	}
	if p.value != nil {
		jp.Value = p.value.String()
	}
	if !p.IsLiteral() {
		jp.LengthType = p.LengthType.String()
		jp.Subpackets = p.Subpackets
	}
	return json.Marshal(jp)
}

// Result holds the two answers for a transmission.
type Result struct {
	VersionSum int
	Value      *big.Int
}
