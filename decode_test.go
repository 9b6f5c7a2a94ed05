package bitspacket

import (
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var packetCmp = []cmp.Option{
	cmpopts.IgnoreUnexported(Packet{}),
	cmp.Comparer(func(a, b *big.Int) bool {
		if a == nil || b == nil {
			return a == b
		}
		return a.Cmp(b) == 0
	}),
}

func TestDecodeLiteral(t *testing.T) {
	p, err := DecodeHex("D2FE28")
	require.NoError(t, err)

	want := &Packet{Version: 6, TypeID: TypeLiteral, Literal: big.NewInt(2021), Bits: 21}
	if diff := cmp.Diff(want, p, packetCmp...); diff != "" {
		t.Errorf("D2FE28 mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 6, p.VersionSum())
	assert.Equal(t, "2021", p.Value().String())
}

func TestDecodeOperatorLengthBits(t *testing.T) {
	p, err := DecodeHex("38006F45291200")
	require.NoError(t, err)

	want := &Packet{
		Version: 1, TypeID: TypeLess, LengthType: LengthBits, Bits: 49,
		Subpackets: []*Packet{
			{Version: 6, TypeID: TypeLiteral, Literal: big.NewInt(10), Offset: 22, Bits: 11},
			{Version: 2, TypeID: TypeLiteral, Literal: big.NewInt(20), Offset: 33, Bits: 16},
		},
	}
	if diff := cmp.Diff(want, p, packetCmp...); diff != "" {
		t.Errorf("38006F45291200 mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 9, p.VersionSum())
	assert.Equal(t, "lt(10, 20)", p.String())
	assert.Equal(t, int64(1), p.Value().Int64())
}

func TestDecodeOperatorLengthCount(t *testing.T) {
	p, err := DecodeHex("EE00D40C823060")
	require.NoError(t, err)

	want := &Packet{
		Version: 7, TypeID: TypeMaximum, LengthType: LengthCount, Bits: 51,
		Subpackets: []*Packet{
			{Version: 2, TypeID: TypeLiteral, Literal: big.NewInt(1), Offset: 18, Bits: 11},
			{Version: 4, TypeID: TypeLiteral, Literal: big.NewInt(2), Offset: 29, Bits: 11},
			{Version: 1, TypeID: TypeLiteral, Literal: big.NewInt(3), Offset: 40, Bits: 11},
		},
	}
	if diff := cmp.Diff(want, p, packetCmp...); diff != "" {
		t.Errorf("EE00D40C823060 mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "max(1, 2, 3)", p.String())
	assert.Equal(t, int64(3), p.Value().Int64())
}

func TestVersionSum(t *testing.T) {
	cases := []struct {
		hex  string
		want int
	}{
		{"8A004A801A8002F478", 16},
		{"620080001611562C8802118E34", 12},
		{"C0015000016115A2E0802F182340", 23},
		{"A0016C880162017C3686B18A3D4780", 31},
	}
	for _, tc := range cases {
		t.Run(tc.hex, func(t *testing.T) {
			p, err := DecodeHex(tc.hex)
			require.NoError(t, err)
			assert.Equal(t, tc.want, p.VersionSum())
		})
	}
}

func TestEvaluate(t *testing.T) {
	cases := []struct {
		name string
		hex  string
		want int64
	}{
		{"sum", "C200B40A82", 3},
		{"product", "04005AC33890", 54},
		{"minimum", "880086C3E88112", 7},
		{"maximum", "CE00C43D881120", 9},
		{"less than", "D8005AC2A8F0", 1},
		{"greater than", "F600BC2D8F", 0},
		{"equal", "9C005AC2F8F0", 0},
		{"equality chain", "9C0141080250320F1802104A08", 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buf, err := ParseHex(tc.hex)
			require.NoError(t, err)
			res, err := Evaluate(buf)
			require.NoError(t, err)
			assert.Equal(t, big.NewInt(tc.want).String(), res.Value.String())
		})
	}
}

func TestDecodeIdempotent(t *testing.T) {
	buf, err := ParseHex("9C0141080250320F1802104A08")
	require.NoError(t, err)

	first, err := Decode(buf)
	require.NoError(t, err)
	second, err := Decode(buf)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second, packetCmp...); diff != "" {
		t.Errorf("second decode differs (-first +second):\n%s", diff)
	}
	assert.Equal(t, first.Result(), second.Result())
}

func TestDecoderConcurrentUse(t *testing.T) {
	d := NewDecoder()
	inputs := map[string]int{
		"8A004A801A8002F478":             16,
		"620080001611562C8802118E34":     12,
		"C0015000016115A2E0802F182340":   23,
		"A0016C880162017C3686B18A3D4780": 31,
	}
	var wg sync.WaitGroup
	for hex, want := range inputs {
		hex, want := hex, want
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				p, err := d.DecodeHex(hex)
				if assert.NoError(t, err) {
					assert.Equal(t, want, p.VersionSum())
				}
			}()
		}
	}
	wg.Wait()
}

func TestDecodeWideLiteral(t *testing.T) {
	nibbles := make([]uint8, 17)
	for i := range nibbles {
		nibbles[i] = 0xF
	}
	p, err := Decode(build(lit(3, nibbles...)))
	require.NoError(t, err)

	want := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 68), big.NewInt(1))
	assert.Equal(t, want.String(), p.Value().String())
	assert.Equal(t, 6+17*5, p.Bits)
}

func TestDecodeLiteralNibbleCounts(t *testing.T) {
	cases := []struct {
		nibbles []uint8
		want    string
	}{
		{[]uint8{0}, "0"},
		{[]uint8{0xA}, "10"},
		{[]uint8{1, 2}, "18"},
		{[]uint8{0, 0, 7}, "7"},
		{[]uint8{0xA, 0xB, 0xC}, "2748"},
		{[]uint8{0xA, 0xB, 0xC, 0xD}, "43981"},
	}
	for _, tc := range cases {
		p, err := Decode(build(lit(1, tc.nibbles...)))
		require.NoError(t, err)
		assert.Equal(t, tc.want, p.Value().String(), "nibbles %x", tc.nibbles)
	}
}

func TestDecodeEmptyOperators(t *testing.T) {
	sum, err := Decode(build(opCount(1, TypeSum)))
	require.NoError(t, err)
	assert.Equal(t, "0", sum.Value().String())

	product, err := Decode(build(opCount(1, TypeProduct)))
	require.NoError(t, err)
	assert.Equal(t, "1", product.Value().String())

	bits := build(func(w *bitWriter) { w.opBits(2, TypeSum, -1) })
	empty, err := Decode(bits)
	require.NoError(t, err)
	assert.Empty(t, empty.Subpackets)
	assert.Equal(t, 2, empty.VersionSum())
}

func TestDecodeNestedLengthBits(t *testing.T) {
	// mul(sum(1, 2), eq(5, 5))
	buf := build(func(w *bitWriter) {
		w.opBits(1, TypeProduct, -1,
			func(w *bitWriter) { w.opBits(2, TypeSum, -1, lit(3, 1), lit(4, 2)) },
			opCount(5, TypeEqual, lit(6, 5), lit(7, 5)),
		)
	})
	p, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, "mul(sum(1, 2), eq(5, 5))", p.String())
	assert.Equal(t, "3", p.Value().String())
	assert.Equal(t, 1+2+3+4+5+6+7, p.VersionSum())
}

func TestDecodeErrors(t *testing.T) {
	deep := lit(0, 1)
	for i := 0; i < 5; i++ {
		deep = opCount(0, TypeSum, deep)
	}

	cases := []struct {
		name    string
		dec     *Decoder
		buf     []byte
		wantErr error
	}{
		{"empty", NewDecoder(), nil, ErrEmpty},
		{"truncated literal", NewDecoder(), []byte{0xD2, 0xFE}, ErrShortBuffer},
		{"truncated header", NewDecoder(), []byte{0x38}, ErrShortBuffer},
		{"missing subpacket", NewDecoder(), build(opCount(1, TypeSum, lit(0, 1)))[:2], ErrShortBuffer},
		{"equal with three operands", NewDecoder(), build(opCount(1, TypeEqual, lit(0, 1), lit(0, 1), lit(0, 1))), ErrOperandCount},
		{"greater with one operand", NewDecoder(), build(opCount(1, TypeGreater, lit(0, 1))), ErrOperandCount},
		{"minimum of nothing", NewDecoder(), build(opCount(1, TypeMinimum)), ErrOperandCount},
		{"length overrun", NewDecoder(), build(func(w *bitWriter) { w.opBits(0, TypeSum, 10, lit(0, 1)) }), ErrLengthMismatch},
		{"too deep", NewDecoder(WithMaxDepth(3)), build(deep), ErrTooDeep},
		{"too large", NewDecoder(WithMaxBytes(2)), []byte{0xD2, 0xFE, 0x28}, ErrTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := tc.dec.Decode(tc.buf)
			require.ErrorIs(t, err, tc.wantErr)
			assert.Nil(t, p)
		})
	}
}

func TestDecodeErrorCarriesOffset(t *testing.T) {
	buf := build(opCount(1, TypeSum, lit(0, 1), opCount(2, TypeLess, lit(0, 1))))
	_, err := Decode(buf)
	require.ErrorIs(t, err, ErrOperandCount)
	// The failing lt packet follows the 18-bit root header and an 11-bit literal.
	assert.True(t, strings.HasPrefix(err.Error(), "packet at bit 29:"), err.Error())
}

func TestDecodeDepthWithinLimit(t *testing.T) {
	deep := lit(0, 7)
	for i := 0; i < 3; i++ {
		deep = opCount(0, TypeMaximum, deep)
	}
	p, err := NewDecoder(WithMaxDepth(3)).Decode(build(deep))
	require.NoError(t, err)
	assert.Equal(t, "max(max(max(7)))", p.String())
}

func TestDecoderLogsPackets(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	d := NewDecoder(WithLogger(zap.New(core)))

	_, err := d.DecodeHex("EE00D40C823060")
	require.NoError(t, err)

	assert.Equal(t, 4, logs.FilterMessage("packet").Len())
	done := logs.FilterMessage("decoded transmission").All()
	require.Len(t, done, 1)
	assert.Equal(t, int64(14), done[0].ContextMap()["version_sum"])
	assert.Equal(t, int64(5), done[0].ContextMap()["padding_bits"])
}

func TestWalk(t *testing.T) {
	p, err := DecodeHex("A0016C880162017C3686B18A3D4780")
	require.NoError(t, err)

	var versions, maxDepth int
	p.Walk(func(sp *Packet, depth int) bool {
		versions += int(sp.Version)
		if depth > maxDepth {
			maxDepth = depth
		}
		return true
	})
	assert.Equal(t, p.VersionSum(), versions)
	assert.Equal(t, 3, maxDepth)

	var visited int
	p.Walk(func(*Packet, int) bool {
		visited++
		return false
	})
	assert.Equal(t, 1, visited)
}
