package common

import (
	"errors"
	"testing"
)

func TestGuard(t *testing.T) {
	if err := Guard(nil, "staking"); err != nil {
		t.Fatalf("nil view: %v", err)
	}
	pauses := NewPauses("Staking")
	if err := Guard(pauses, "staking"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("paused module: got %v want %v", err, ErrModulePaused)
	}
	if err := Guard(pauses, "custody"); err != nil {
		t.Fatalf("unpaused module: %v", err)
	}
	pauses.Set("staking", false)
	if err := Guard(pauses, "staking"); err != nil {
		t.Fatalf("resumed module: %v", err)
	}
	if err := Guard(pauses, ""); err != nil {
		t.Fatalf("empty module: %v", err)
	}
}
