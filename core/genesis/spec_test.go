// core/genesis/spec_test.go
package genesis

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"nftstake/core/state"
	"nftstake/crypto"
	"nftstake/native/bank"
	"nftstake/native/custody"
	"nftstake/native/staking"
	"nftstake/storage"
)

func account(b byte) crypto.Address {
	return crypto.BytesToAddress(bytes.Repeat([]byte{b}, crypto.AddressLength))
}

func sampleSpec() GenesisSpec {
	owner := account(0x01).String()
	return GenesisSpec{
		GenesisTime: "2024-01-01T00:00:00Z",
		Config:      ConfigSpec{PointsPerStake: 10, MaxStake: 5, FreezePeriodDays: 7},
		Balances:    map[string]uint64{owner: 500},
		Collections: []CollectionSpec{{Address: account(0x0c).String(), Name: "Genesis Apes"}},
		Users:       []UserSpec{{Address: owner, Points: 3}},
		Stakes: []StakeSpec{{
			Owner:      owner,
			Asset:      account(0x0a).String(),
			Collection: account(0x0c).String(),
			Name:       "Ape #1",
			StakedAt:   "2023-12-20T00:00:00Z",
			Rent:       1_000,
		}},
	}
}

func writeSpec(t *testing.T, spec GenesisSpec) string {
	t.Helper()
	raw, err := json.Marshal(spec)
	if err != nil {
		t.Fatalf("marshal spec: %v", err)
	}
	path := filepath.Join(t.TempDir(), "genesis.json")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write spec: %v", err)
	}
	return path
}

func TestLoadGenesisSpecAndSeedState(t *testing.T) {
	spec, err := LoadGenesisSpec(writeSpec(t, sampleSpec()))
	if err != nil {
		t.Fatalf("load spec: %v", err)
	}
	if got := spec.Stakes[0].StakedAtTime(); !got.Equal(time.Date(2023, 12, 20, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected stakedAt %s", got)
	}

	st := state.NewManager(storage.NewMemDB())
	assets := custody.NewEngine()
	result, err := BuildGenesisFromSpec(spec, st, assets, crypto.Address{})
	if err != nil {
		t.Fatalf("build genesis: %v", err)
	}
	if result.Collections != 1 || result.Users != 1 || result.Stakes != 1 {
		t.Fatalf("unexpected result %+v", result)
	}

	owner := account(0x01)
	balance, err := bank.Balance(st, owner)
	if err != nil || balance != 500 {
		t.Fatalf("balance: got %d err %v", balance, err)
	}
	asset, ok, err := assets.Asset(st, account(0x0a))
	if err != nil || !ok {
		t.Fatalf("asset missing: ok=%v err=%v", ok, err)
	}
	if !asset.Frozen() {
		t.Fatalf("genesis stake must be frozen")
	}

	engine := staking.NewEngine(st, assets, crypto.Address{})
	engine.SetNowFunc(func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) })
	req, err := engine.CanonicalRequest(owner, account(0x0a), account(0x0c))
	if err != nil {
		t.Fatalf("canonical request: %v", err)
	}
	if req.Config != result.Config {
		t.Fatalf("config address mismatch")
	}
	receipt, err := engine.Unstake(context.Background(), req)
	if err != nil {
		t.Fatalf("unstake genesis stake: %v", err)
	}
	if receipt.PointsEarned != 120 || receipt.PointsTotal != 123 {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
	if receipt.AmountStaked != 0 {
		t.Fatalf("amount staked should derive from listed stakes, got %d", receipt.AmountStaked)
	}
	balance, _ = bank.Balance(st, owner)
	if balance != 1_500 {
		t.Fatalf("rent not refunded: balance %d", balance)
	}
}

func TestBuildGenesisIsAtomic(t *testing.T) {
	spec := sampleSpec()
	spec.Stakes = append(spec.Stakes, spec.Stakes[0])
	spec.Stakes[1].Asset = account(0x0b).String()
	parsed, err := ParseGenesisSpec(mustJSON(t, spec))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	db := storage.NewMemDB()
	st := state.NewManager(db)
	assets := custody.NewEngine()
	// Pre-existing asset collides with the second stake.
	colAuthority, err := staking.NewLedger(st, staking.DefaultProgramID).CollectionInfoAddress(account(0x0c))
	if err != nil {
		t.Fatalf("derive authority: %v", err)
	}
	if err := assets.CreateCollection(st, custody.Collection{Address: account(0x0d), UpdateAuthority: colAuthority}); err != nil {
		t.Fatalf("create collection: %v", err)
	}
	if err := assets.CreateAsset(st, custody.Asset{Address: account(0x0b), Owner: account(0x02), Collection: account(0x0d)}); err != nil {
		t.Fatalf("create asset: %v", err)
	}
	before := db.Len()

	if _, err := BuildGenesisFromSpec(parsed, st, assets, crypto.Address{}); err == nil {
		t.Fatalf("expected collision error")
	}
	if db.Len() != before {
		t.Fatalf("failed genesis leaked writes: %d keys, want %d", db.Len(), before)
	}
}

func TestGenesisSpecValidation(t *testing.T) {
	cases := map[string]func(*GenesisSpec){
		"missing time":        func(s *GenesisSpec) { s.GenesisTime = "" },
		"bad balance address": func(s *GenesisSpec) { s.Balances = map[string]uint64{"nope": 1} },
		"duplicate collection": func(s *GenesisSpec) {
			s.Collections = append(s.Collections, s.Collections[0])
		},
		"undefined collection": func(s *GenesisSpec) { s.Stakes[0].Collection = account(0x0e).String() },
		"owner without user":   func(s *GenesisSpec) { s.Users = nil },
		"duplicate asset":      func(s *GenesisSpec) { s.Stakes = append(s.Stakes, s.Stakes[0]) },
		"bad stakedAt":         func(s *GenesisSpec) { s.Stakes[0].StakedAt = "yesterday" },
		"foreign prefix": func(s *GenesisSpec) {
			s.Users[0].Address = account(0x01).Encode("nhb")
		},
	}
	for name, mutate := range cases {
		spec := sampleSpec()
		mutate(&spec)
		if _, err := ParseGenesisSpec(mustJSON(t, spec)); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}

	raw := strings.Replace(string(mustJSON(t, sampleSpec())), `"genesisTime"`, `"unknownField":1,"genesisTime"`, 1)
	if _, err := ParseGenesisSpec([]byte(raw)); err == nil {
		t.Fatalf("unknown fields must be rejected")
	}
}

func mustJSON(t *testing.T, spec GenesisSpec) []byte {
	t.Helper()
	raw, err := json.Marshal(spec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}
