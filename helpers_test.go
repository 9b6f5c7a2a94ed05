package bitspacket

// bitWriter packs fields MSB-first, the inverse of BitCursor. Tests use it
// to build transmissions the puzzle examples do not cover.
type bitWriter struct {
	buf []byte
	n   int // bits written
}

func (w *bitWriter) write(v uint64, width int) {
	for i := width - 1; i >= 0; i-- {
		if w.n%8 == 0 {
			w.buf = append(w.buf, 0)
		}
		if (v>>uint(i))&1 == 1 {
			w.buf[w.n/8] |= 1 << uint(7-w.n%8)
		}
		w.n++
	}
}

// append copies all bits written to o.
func (w *bitWriter) append(o *bitWriter) {
	for i := 0; i < o.n; i++ {
		w.write(uint64(o.buf[i/8]>>uint(7-i%8))&1, 1)
	}
}

func (w *bitWriter) bytes() []byte { return w.buf }

// literal writes a literal packet whose value is the given nibbles, most
// significant first.
func (w *bitWriter) literal(version uint8, nibbles ...uint8) {
	w.write(uint64(version), versionBits)
	w.write(uint64(TypeLiteral), typeBits)
	for i, nb := range nibbles {
		more := uint64(1)
		if i == len(nibbles)-1 {
			more = 0
		}
		w.write(more, groupFlagBits)
		w.write(uint64(nb), groupBits)
	}
}

// opCount writes a length-type-1 operator over the packets written by subs.
func (w *bitWriter) opCount(version uint8, t TypeID, subs ...func(*bitWriter)) {
	w.write(uint64(version), versionBits)
	w.write(uint64(t), typeBits)
	w.write(uint64(LengthCount), lengthTypeBits)
	w.write(uint64(len(subs)), countBits)
	for _, s := range subs {
		s(w)
	}
}

// opBits writes a length-type-0 operator declaring total bits of subpackets.
// A negative total declares the real length of subs.
func (w *bitWriter) opBits(version uint8, t TypeID, total int, subs ...func(*bitWriter)) {
	body := &bitWriter{}
	for _, s := range subs {
		s(body)
	}
	if total < 0 {
		total = body.n
	}
	w.write(uint64(version), versionBits)
	w.write(uint64(t), typeBits)
	w.write(uint64(LengthBits), lengthTypeBits)
	w.write(uint64(total), totalLengthBits)
	w.append(body)
}

func lit(version uint8, nibbles ...uint8) func(*bitWriter) {
	return func(w *bitWriter) { w.literal(version, nibbles...) }
}

func opCount(version uint8, t TypeID, subs ...func(*bitWriter)) func(*bitWriter) {
	return func(w *bitWriter) { w.opCount(version, t, subs...) }
}

func build(f func(*bitWriter)) []byte {
	w := &bitWriter{}
	f(w)
	return w.bytes()
}
