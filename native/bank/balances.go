package bank

import (
	"fmt"
	"math"

	"nftstake/crypto"
)

// kvState abstracts the subset of state manager functionality required for
// lamport balances.
type kvState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var balancePrefix = []byte("bank/balance/")

func balanceKey(addr crypto.Address) []byte {
	buf := make([]byte, len(balancePrefix)+len(addr))
	copy(buf, balancePrefix)
	copy(buf[len(balancePrefix):], addr[:])
	return buf
}

// Balance returns the lamports held by addr. Unknown accounts hold zero.
func Balance(st kvState, addr crypto.Address) (uint64, error) {
	if st == nil {
		return 0, fmt.Errorf("bank: state required")
	}
	var amount uint64
	if _, err := st.KVGet(balanceKey(addr), &amount); err != nil {
		return 0, err
	}
	return amount, nil
}

// Credit adds amount to addr, clamping at the maximum balance.
func Credit(st kvState, addr crypto.Address, amount uint64) (uint64, error) {
	if addr.IsZero() {
		return 0, fmt.Errorf("bank: address required")
	}
	current, err := Balance(st, addr)
	if err != nil {
		return 0, err
	}
	next := current + amount
	if next < current {
		next = math.MaxUint64
	}
	if amount == 0 {
		return current, nil
	}
	if err := st.KVPut(balanceKey(addr), next); err != nil {
		return 0, err
	}
	return next, nil
}
