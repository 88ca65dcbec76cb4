package crypto

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
)

// AddressLength is the byte length of every account identity.
const AddressLength = 32

// AddressPrefix defines the human-readable part used when rendering addresses.
type AddressPrefix string

const (
	StakePrefix AddressPrefix = "stk"
)

// DefaultPrefix is used by Address.String. Binaries may override it from
// configuration before any address is rendered.
var DefaultPrefix = StakePrefix

// Address identifies an account: a user wallet, an asset, a collection, a
// program or a record location derived from one.
type Address [AddressLength]byte

// BytesToAddress copies b into an Address. It panics when b is not exactly
// AddressLength bytes long.
func BytesToAddress(b []byte) Address {
	if len(b) != AddressLength {
		panic(fmt.Sprintf("address must be %d bytes long", AddressLength))
	}
	var a Address
	copy(a[:], b)
	return a
}

func (a Address) Bytes() []byte {
	return append([]byte(nil), a[:]...)
}

// IsZero reports whether the address is the all-zero identity.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Less orders addresses bytewise.
func (a Address) Less(other Address) bool {
	return bytes.Compare(a[:], other[:]) < 0
}

// Encode renders the address as bech32 using the supplied prefix.
func (a Address) Encode(prefix AddressPrefix) string {
	conv, err := bech32.ConvertBits(a[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(string(prefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

func (a Address) String() string {
	return a.Encode(DefaultPrefix)
}

// MarshalText renders the address in its bech32 form so JSON payloads carry
// readable identities.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText accepts any prefix; callers that care check it with
// DecodeAddressWithPrefix.
func (a *Address) UnmarshalText(text []byte) error {
	decoded, _, err := DecodeAddress(string(text))
	if err != nil {
		return err
	}
	*a = decoded
	return nil
}

// DecodeAddress parses a bech32 address and returns it with its prefix.
func DecodeAddress(addrStr string) (Address, AddressPrefix, error) {
	trimmed := strings.TrimSpace(addrStr)
	if trimmed == "" {
		return Address{}, "", fmt.Errorf("address required")
	}
	prefix, decoded, err := bech32.Decode(trimmed)
	if err != nil {
		return Address{}, "", fmt.Errorf("invalid bech32 string: %w", err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, "", fmt.Errorf("error converting bits: %w", err)
	}
	if len(conv) != AddressLength {
		return Address{}, "", fmt.Errorf("address must be %d bytes long, got %d", AddressLength, len(conv))
	}
	return BytesToAddress(conv), AddressPrefix(prefix), nil
}

// DecodeAddressWithPrefix parses addrStr and rejects prefixes other than want.
func DecodeAddressWithPrefix(addrStr string, want AddressPrefix) (Address, error) {
	addr, prefix, err := DecodeAddress(addrStr)
	if err != nil {
		return Address{}, err
	}
	if prefix != want {
		return Address{}, fmt.Errorf("address prefix %q, want %q", prefix, want)
	}
	return addr, nil
}

// MustDecodeAddress is DecodeAddress for compile-time constants.
func MustDecodeAddress(addrStr string) Address {
	addr, _, err := DecodeAddress(addrStr)
	if err != nil {
		panic(err)
	}
	return addr
}
