package bitspacket

import "errors"

// Sentinel errors returned (wrapped) by the decoder. Match them with errors.Is.
var (
	// ErrInvalidHex reports a transmission that is not an even-length run of hex digits.
	ErrInvalidHex = errors.New("invalid hex transmission")

	// ErrBitWidth reports a BitCursor read outside 1..16 bits.
	ErrBitWidth = errors.New("bit width out of range")

	// ErrShortBuffer reports a read past the end of the transmission.
	ErrShortBuffer = errors.New("transmission truncated")

	// ErrLengthMismatch reports length-type-0 subpackets that overrun their declared bit length.
	ErrLengthMismatch = errors.New("subpackets overrun declared bit length")

	// ErrOperandCount reports an operator applied to the wrong number of subpackets.
	ErrOperandCount = errors.New("wrong number of operands")

	// ErrTooDeep reports packet nesting beyond the decoder's depth limit.
	ErrTooDeep = errors.New("packet nesting too deep")

	// ErrTooLarge reports a transmission larger than the decoder's size limit.
	ErrTooLarge = errors.New("transmission too large")

	// ErrEmpty reports a transmission with no bytes.
	ErrEmpty = errors.New("empty transmission")
)
