package types

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

// HexBytes is a byte slice rendered in JSON as a 0x-prefixed hexadecimal
// string, used for transaction hashes and participant identifiers.
type HexBytes []byte

func (b HexBytes) String() string {
	return "0x" + hex.EncodeToString(b)
}

// Equal reports whether b and other hold the same bytes.
func (b HexBytes) Equal(other HexBytes) bool {
	return bytes.Equal(b, other)
}

// MarshalJSON implements json.Marshaler, always emitting the 0x prefix.
func (b HexBytes) MarshalJSON() ([]byte, error) {
	enc := make([]byte, hex.EncodedLen(len(b))+4)
	enc[0] = '"'
	enc[1] = '0'
	enc[2] = 'x'
	hex.Encode(enc[3:], b)
	enc[len(enc)-1] = '"'
	return enc, nil
}

// UnmarshalJSON implements json.Unmarshaler, accepting hex strings with
// or without the 0x prefix.
func (b *HexBytes) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("invalid hex string: %q", data)
	}
	data = data[1 : len(data)-1]
	if len(data) >= 2 && data[0] == '0' && (data[1] == 'x' || data[1] == 'X') {
		data = data[2:]
	}
	dec := make([]byte, hex.DecodedLen(len(data)))
	if _, err := hex.Decode(dec, data); err != nil {
		return fmt.Errorf("invalid hex string: %w", err)
	}
	*b = dec
	return nil
}
