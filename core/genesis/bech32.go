package genesis

import (
	"fmt"

	"nftstake/crypto"
)

// ParseBech32Account decodes a genesis address. Only the node's configured
// prefix is accepted.
func ParseBech32Account(addr string) (crypto.Address, error) {
	out, err := crypto.DecodeAddressWithPrefix(addr, crypto.DefaultPrefix)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("decode bech32 account: %w", err)
	}
	if out.IsZero() {
		return crypto.Address{}, fmt.Errorf("decode bech32 account: zero address")
	}
	return out, nil
}
