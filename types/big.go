package types

import (
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"
)

// BigInt wraps big.Int so that roots, commitments and nullifiers always
// serialize as decimal strings, in JSON as well as in CBOR artifacts.
// A nil value marshals as "0".
type BigInt big.Int

// NewInt returns a BigInt holding the given value.
func NewInt(x int) *BigInt {
	return new(BigInt).SetInt(x)
}

// SetInt sets i to x and returns i.
func (i *BigInt) SetInt(x int) *BigInt {
	return (*BigInt)(i.MathBigInt().SetInt64(int64(x)))
}

// SetBigInt sets i to x and returns i.
func (i *BigInt) SetBigInt(x *big.Int) *BigInt {
	return (*BigInt)(i.MathBigInt().Set(x))
}

// MathBigInt returns i as a math/big *Int sharing the same storage.
func (i *BigInt) MathBigInt() *big.Int {
	return (*big.Int)(i)
}

func (i *BigInt) String() string {
	return (*big.Int)(i).String()
}

// Equal reports whether i and j hold the same value. Two nil values are
// equal, which is what quicktest and go-cmp expect.
func (i *BigInt) Equal(j *BigInt) bool {
	if i == nil || j == nil {
		return (i == nil) == (j == nil)
	}
	return i.MathBigInt().Cmp(j.MathBigInt()) == 0
}

// MarshalText returns the decimal representation of the value.
func (i *BigInt) MarshalText() ([]byte, error) {
	if i == nil {
		return []byte("0"), nil
	}
	return (*big.Int)(i).MarshalText()
}

// UnmarshalText parses a decimal representation.
func (i *BigInt) UnmarshalText(data []byte) error {
	if i == nil {
		return fmt.Errorf("cannot unmarshal into nil BigInt")
	}
	return (*big.Int)(i).UnmarshalText(data)
}

// UnmarshalJSON accepts both quoted and bare numeric representations,
// since proving toolchains emit either.
func (i *BigInt) UnmarshalJSON(data []byte) error {
	if i == nil {
		return fmt.Errorf("cannot unmarshal into nil BigInt")
	}
	if len(data) > 1 && data[0] == '"' && data[len(data)-1] == '"' {
		return i.UnmarshalText(data[1 : len(data)-1])
	}
	return i.UnmarshalText(data)
}

// MarshalCBOR encodes the value as a CBOR text string, so that numbers
// beyond 64 bits survive the artifact round trip.
func (i *BigInt) MarshalCBOR() ([]byte, error) {
	txt, err := i.MarshalText()
	if err != nil {
		return nil, err
	}
	return cbor.Marshal(string(txt))
}

// UnmarshalCBOR decodes a CBOR text string into the value.
func (i *BigInt) UnmarshalCBOR(data []byte) error {
	var s string
	if err := cbor.Unmarshal(data, &s); err != nil {
		return err
	}
	return i.UnmarshalText([]byte(s))
}
