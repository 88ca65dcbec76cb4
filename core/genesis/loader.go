// core/genesis/loader.go
package genesis

import (
	"fmt"
	"sort"

	"nftstake/core/state"
	"nftstake/crypto"
	"nftstake/native/bank"
	"nftstake/native/custody"
	"nftstake/native/staking"
)

// Result summarises what BuildGenesisFromSpec wrote.
type Result struct {
	Config      crypto.Address
	Collections int
	Users       int
	Stakes      int
}

// BuildGenesisFromSpec seeds st with the records described by spec. Every
// write lands in one transaction; a failure leaves the database untouched.
func BuildGenesisFromSpec(spec *GenesisSpec, st *state.Manager, assets *custody.Engine, programID crypto.Address) (*Result, error) {
	if spec == nil {
		return nil, fmt.Errorf("genesis spec must not be nil")
	}
	if st == nil || assets == nil {
		return nil, fmt.Errorf("state and custody engine must not be nil")
	}
	if programID.IsZero() {
		programID = staking.DefaultProgramID
	}

	tx := st.Begin()
	defer tx.Discard()
	ledger := staking.NewLedger(tx, programID)
	result := &Result{}

	// 1) Config
	configAddr, err := ledger.InitConfig(staking.StakeConfig{
		PointsPerStake: spec.Config.PointsPerStake,
		MaxStake:       spec.Config.MaxStake,
		FreezePeriod:   spec.Config.FreezePeriodDays,
		RewardsBump:    spec.Config.RewardsBump,
		Rent:           spec.Config.Rent,
	})
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	result.Config = configAddr

	// 2) Balances (addresses sorted)
	accounts := make([]string, 0, len(spec.Balances))
	for account := range spec.Balances {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)
	for _, account := range accounts {
		addr, err := ParseBech32Account(account)
		if err != nil {
			return nil, fmt.Errorf("balances[%q]: %w", account, err)
		}
		if _, err := bank.Credit(tx, addr, spec.Balances[account]); err != nil {
			return nil, fmt.Errorf("balances[%q]: %w", account, err)
		}
	}

	// 3) Collections and their authority records
	for i := range spec.Collections {
		col := &spec.Collections[i]
		addr, err := ParseBech32Account(col.Address)
		if err != nil {
			return nil, fmt.Errorf("collection[%d]: %w", i, err)
		}
		authority, err := ledger.InitCollectionInfo(addr, col.Rent)
		if err != nil {
			return nil, fmt.Errorf("collection[%d]: %w", i, err)
		}
		if err := assets.CreateCollection(tx, custody.Collection{
			Address:         addr,
			UpdateAuthority: authority,
			Name:            col.Name,
			URI:             col.URI,
		}); err != nil {
			return nil, fmt.Errorf("collection[%d]: %w", i, err)
		}
		result.Collections++
	}

	// 4) Stakes
	staked := make(map[crypto.Address]uint8)
	for i := range spec.Stakes {
		stake := &spec.Stakes[i]
		owner, err := ParseBech32Account(stake.Owner)
		if err != nil {
			return nil, fmt.Errorf("stake[%d]: %w", i, err)
		}
		asset, err := ParseBech32Account(stake.Asset)
		if err != nil {
			return nil, fmt.Errorf("stake[%d]: %w", i, err)
		}
		collection, err := ParseBech32Account(stake.Collection)
		if err != nil {
			return nil, fmt.Errorf("stake[%d]: %w", i, err)
		}
		authority, err := ledger.CollectionInfoAddress(collection)
		if err != nil {
			return nil, fmt.Errorf("stake[%d]: %w", i, err)
		}
		if err := assets.CreateAsset(tx, custody.Asset{
			Address:    asset,
			Owner:      owner,
			Collection: collection,
			Name:       stake.Name,
			URI:        stake.URI,
		}); err != nil {
			return nil, fmt.Errorf("stake[%d]: %w", i, err)
		}
		if err := assets.AddFreezeDelegate(tx, asset, custody.DirectSigner(owner), authority, true); err != nil {
			return nil, fmt.Errorf("stake[%d]: %w", i, err)
		}
		if _, err := ledger.PutStake(owner, asset, stake.StakedAtTime().Unix(), stake.Rent); err != nil {
			return nil, fmt.Errorf("stake[%d]: %w", i, err)
		}
		if staked[owner] < ^uint8(0) {
			staked[owner]++
		}
		result.Stakes++
	}

	// 5) Users
	for i := range spec.Users {
		u := &spec.Users[i]
		addr, err := ParseBech32Account(u.Address)
		if err != nil {
			return nil, fmt.Errorf("user[%d]: %w", i, err)
		}
		acctAddr, err := ledger.InitUser(addr, u.Rent)
		if err != nil {
			return nil, fmt.Errorf("user[%d]: %w", i, err)
		}
		acct, err := ledger.User(acctAddr, addr)
		if err != nil {
			return nil, fmt.Errorf("user[%d]: %w", i, err)
		}
		acct.Points = u.Points
		acct.AmountStaked = staked[addr]
		if u.AmountStaked != nil {
			acct.AmountStaked = *u.AmountStaked
		}
		if err := ledger.PutUser(acctAddr, acct); err != nil {
			return nil, fmt.Errorf("user[%d]: %w", i, err)
		}
		result.Users++
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit genesis: %w", err)
	}
	return result, nil
}
