package vault

import (
	"clob/domain/errs"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// Mul returns a*b or ErrArithmeticOverflow when the product does not fit
// in 64 bits.
func Mul(a, b uint64) (uint64, error) {
	p := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	if !p.IsUint64() {
		return 0, errors.Wrapf(errs.ErrArithmeticOverflow, "%d * %d", a, b)
	}
	return p.Uint64(), nil
}

// Add returns a+b or ErrArithmeticOverflow.
func Add(a, b uint64) (uint64, error) {
	s := new(uint256.Int).Add(uint256.NewInt(a), uint256.NewInt(b))
	if !s.IsUint64() {
		return 0, errors.Wrapf(errs.ErrArithmeticOverflow, "%d + %d", a, b)
	}
	return s.Uint64(), nil
}

// Sub returns a-b or ErrArithmeticOverflow on underflow.
func Sub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, errors.Wrapf(errs.ErrArithmeticOverflow, "%d - %d underflows", a, b)
	}
	return a - b, nil
}

// Notional is the quote amount of size base units at price.
func Notional(price, size uint64) (uint64, error) {
	return Mul(price, size)
}
