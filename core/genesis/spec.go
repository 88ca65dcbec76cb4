// core/genesis/spec.go
package genesis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

// GenesisSpec describes the records a fresh node is seeded with.
type GenesisSpec struct {
	GenesisTime string            `json:"genesisTime"`
	Config      ConfigSpec        `json:"config"`
	Balances    map[string]uint64 `json:"balances,omitempty"` // addr -> lamports
	Collections []CollectionSpec  `json:"collections"`
	Users       []UserSpec        `json:"users,omitempty"`
	Stakes      []StakeSpec       `json:"stakes,omitempty"`

	genesisTimestamp time.Time
}

type ConfigSpec struct {
	PointsPerStake   uint8  `json:"pointsPerStake"`
	MaxStake         uint8  `json:"maxStake"`
	FreezePeriodDays uint32 `json:"freezePeriodDays"`
	RewardsBump      uint8  `json:"rewardsBump,omitempty"`
	Rent             uint64 `json:"rent,omitempty"`
}

type CollectionSpec struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
	URI     string `json:"uri,omitempty"`
	Rent    uint64 `json:"rent,omitempty"`
}

type UserSpec struct {
	Address string `json:"address"`
	Points  uint32 `json:"points,omitempty"`
	Rent    uint64 `json:"rent,omitempty"`

	// AmountStaked defaults to the number of stakes listed for the user.
	AmountStaked *uint8 `json:"amountStaked,omitempty"`
}

// StakeSpec mints an asset into a collection, freezes it under the
// collection's delegated authority and records the lock.
type StakeSpec struct {
	Owner      string `json:"owner"`
	Asset      string `json:"asset"`
	Collection string `json:"collection"`
	Name       string `json:"name,omitempty"`
	URI        string `json:"uri,omitempty"`
	StakedAt   string `json:"stakedAt,omitempty"`
	Rent       uint64 `json:"rent,omitempty"`

	stakedAt time.Time
}

func LoadGenesisSpec(path string) (*GenesisSpec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	spec, err := ParseGenesisSpec(raw)
	if err != nil {
		return nil, fmt.Errorf("genesis spec %q: %w", path, err)
	}
	return spec, nil
}

// ParseGenesisSpec decodes and validates a JSON genesis document.
func ParseGenesisSpec(raw []byte) (*GenesisSpec, error) {
	var spec GenesisSpec
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := spec.validate(); err != nil {
		return nil, fmt.Errorf("invalid: %w", err)
	}
	return &spec, nil
}

func (s *GenesisSpec) GenesisTimestamp() time.Time { return s.genesisTimestamp }

// StakedAtTime returns the parsed lock timestamp; an omitted value means genesis
// time.
func (s *StakeSpec) StakedAtTime() time.Time { return s.stakedAt }

func (s *GenesisSpec) validate() error {
	parsedTime, err := parseGenesisTime(s.GenesisTime)
	if err != nil {
		return err
	}
	s.genesisTimestamp = parsedTime

	// balances
	accounts := make([]string, 0, len(s.Balances))
	for account := range s.Balances {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)
	for _, account := range accounts {
		if _, err := ParseBech32Account(account); err != nil {
			return fmt.Errorf("balances[%q]: %w", account, err)
		}
	}

	// collections
	collections := make(map[string]struct{}, len(s.Collections))
	for i := range s.Collections {
		addr, err := ParseBech32Account(s.Collections[i].Address)
		if err != nil {
			return fmt.Errorf("collection[%d]: %w", i, err)
		}
		key := string(addr[:])
		if _, dup := collections[key]; dup {
			return fmt.Errorf("collection[%d]: duplicate address %q", i, s.Collections[i].Address)
		}
		collections[key] = struct{}{}
	}

	// users
	users := make(map[string]struct{}, len(s.Users))
	for i := range s.Users {
		addr, err := ParseBech32Account(s.Users[i].Address)
		if err != nil {
			return fmt.Errorf("user[%d]: %w", i, err)
		}
		key := string(addr[:])
		if _, dup := users[key]; dup {
			return fmt.Errorf("user[%d]: duplicate address %q", i, s.Users[i].Address)
		}
		users[key] = struct{}{}
	}

	// stakes
	assets := make(map[string]struct{}, len(s.Stakes))
	for i := range s.Stakes {
		stake := &s.Stakes[i]
		owner, err := ParseBech32Account(stake.Owner)
		if err != nil {
			return fmt.Errorf("stake[%d]: owner: %w", i, err)
		}
		if _, ok := users[string(owner[:])]; !ok {
			return fmt.Errorf("stake[%d]: owner %q has no user entry", i, stake.Owner)
		}
		asset, err := ParseBech32Account(stake.Asset)
		if err != nil {
			return fmt.Errorf("stake[%d]: asset: %w", i, err)
		}
		if _, dup := assets[string(asset[:])]; dup {
			return fmt.Errorf("stake[%d]: duplicate asset %q", i, stake.Asset)
		}
		assets[string(asset[:])] = struct{}{}
		collection, err := ParseBech32Account(stake.Collection)
		if err != nil {
			return fmt.Errorf("stake[%d]: collection: %w", i, err)
		}
		if _, ok := collections[string(collection[:])]; !ok {
			return fmt.Errorf("stake[%d]: undefined collection %q", i, stake.Collection)
		}
		stake.stakedAt = s.genesisTimestamp
		if strings.TrimSpace(stake.StakedAt) != "" {
			ts, err := parseGenesisTime(stake.StakedAt)
			if err != nil {
				return fmt.Errorf("stake[%d]: stakedAt: %w", i, err)
			}
			stake.stakedAt = ts
		}
	}
	return nil
}

func parseGenesisTime(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, fmt.Errorf("genesisTime must be provided")
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", value)
}
