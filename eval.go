package bitspacket

import (
	"fmt"
	"math/big"
)

var (
	bigZero = big.NewInt(0)
	bigOne  = big.NewInt(1)
)

// apply evaluates operator t over the already evaluated subpackets.
func apply(t TypeID, operands []*Packet) (*big.Int, error) {
	switch t {
	case TypeSum:
		v := new(big.Int)
		for _, o := range operands {
			v.Add(v, o.value)
		}
		return v, nil
	case TypeProduct:
		v := big.NewInt(1)
		for _, o := range operands {
			v.Mul(v, o.value)
		}
		return v, nil
	case TypeMinimum, TypeMaximum:
		if len(operands) == 0 {
			return nil, fmt.Errorf("%s of no operands: %w", t, ErrOperandCount)
		}
		v := operands[0].value
		for _, o := range operands[1:] {
			c := o.value.Cmp(v)
			if (t == TypeMinimum && c < 0) || (t == TypeMaximum && c > 0) {
				v = o.value
			}
		}
		return new(big.Int).Set(v), nil
	case TypeGreater, TypeLess, TypeEqual:
		if len(operands) != 2 {
			return nil, fmt.Errorf("%s needs 2 operands, got %d: %w", t, len(operands), ErrOperandCount)
		}
		c := operands[0].value.Cmp(operands[1].value)
		var ok bool
		switch t {
		case TypeGreater:
			ok = c > 0
		case TypeLess:
			ok = c < 0
		default:
			ok = c == 0
		}
		if ok {
			return new(big.Int).Set(bigOne), nil
		}
		return new(big.Int).Set(bigZero), nil
	}
	// TypeLiteral never reaches here and a 3-bit field has no other values.
	return nil, fmt.Errorf("type %d is not an operator", uint8(t))
}
