package bank

import (
	"math"
	"testing"

	"nftstake/core/state"
	"nftstake/crypto"
	"nftstake/storage"
)

func TestCreditAccumulates(t *testing.T) {
	st := state.NewManager(storage.NewMemDB())
	var addr crypto.Address
	addr[0] = 0x01

	if bal, err := Balance(st, addr); err != nil || bal != 0 {
		t.Fatalf("initial balance: got %d, %v want 0", bal, err)
	}
	if bal, err := Credit(st, addr, 1_500); err != nil || bal != 1_500 {
		t.Fatalf("credit: got %d, %v want 1500", bal, err)
	}
	if bal, err := Credit(st, addr, 0); err != nil || bal != 1_500 {
		t.Fatalf("zero credit: got %d, %v want 1500", bal, err)
	}
	if bal, err := Credit(st, addr, 250); err != nil || bal != 1_750 {
		t.Fatalf("second credit: got %d, %v want 1750", bal, err)
	}
	if bal, _ := Balance(st, addr); bal != 1_750 {
		t.Fatalf("balance: got %d want 1750", bal)
	}
}

func TestCreditSaturates(t *testing.T) {
	st := state.NewManager(storage.NewMemDB())
	var addr crypto.Address
	addr[1] = 0x02
	if _, err := Credit(st, addr, math.MaxUint64-1); err != nil {
		t.Fatalf("credit: %v", err)
	}
	bal, err := Credit(st, addr, 10)
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if bal != math.MaxUint64 {
		t.Fatalf("saturated balance: got %d want %d", bal, uint64(math.MaxUint64))
	}
}

func TestCreditRejectsZeroAddress(t *testing.T) {
	st := state.NewManager(storage.NewMemDB())
	if _, err := Credit(st, crypto.Address{}, 1); err == nil {
		t.Fatalf("expected error for zero address")
	}
}
