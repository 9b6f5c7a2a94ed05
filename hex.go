package bitspacket

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ParseHex decodes a hexadecimal transmission into bytes, two digits per
// byte. Surrounding whitespace is ignored so a line read from a file can be
// passed as is.
func ParseHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrEmpty
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		var ierr hex.InvalidByteError
		if errors.As(err, &ierr) {
			pos := strings.IndexByte(s, byte(ierr))
			return nil, fmt.Errorf("%w: character %q at %d", ErrInvalidHex, rune(ierr), pos)
		}
		if errors.Is(err, hex.ErrLength) {
			return nil, fmt.Errorf("%w: odd digit count %d", ErrInvalidHex, len(s))
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidHex, err)
	}
	return b, nil
}
