package staking

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"nftstake/crypto"
	"nftstake/native/bank"
)

// kvStore abstracts the subset of state manager functionality required by the
// staking ledger. Both the Manager and an open transaction satisfy it.
type kvStore interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

type accountKind uint8

const (
	kindConfig accountKind = iota + 1
	kindUser
	kindStake
	kindCollectionInfo
)

func (k accountKind) String() string {
	switch k {
	case kindConfig:
		return "StakeConfig"
	case kindUser:
		return "UserAccount"
	case kindStake:
		return "StakeRecord"
	case kindCollectionInfo:
		return "CollectionInfo"
	default:
		return "Unknown"
	}
}

// storedAccount tags every record with its kind so a record of one type can
// never be read as another.
type storedAccount struct {
	Kind uint8
	Data []byte
}

// Ledger reads and writes staking records at their derived addresses. Every
// load verifies the supplied address against the record's seeds and stored
// bump.
type Ledger struct {
	store     kvStore
	programID crypto.Address
}

// NewLedger binds a ledger to a state view and the staking program identity.
func NewLedger(store kvStore, programID crypto.Address) *Ledger {
	return &Ledger{store: store, programID: programID}
}

// ProgramID returns the staking program identity records are derived under.
func (l *Ledger) ProgramID() crypto.Address {
	return l.programID
}

func (l *Ledger) load(addr crypto.Address, kind accountKind, out interface{}) error {
	if l == nil || l.store == nil {
		return errUninitialised
	}
	var stored storedAccount
	ok, err := l.store.KVGet(accountKey(addr), &stored)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s at %s", ErrAccountNotInitialized, kind, addr)
	}
	if accountKind(stored.Kind) != kind {
		return fmt.Errorf("%w: want %s, found %s", ErrAccountKindMismatch, kind, accountKind(stored.Kind))
	}
	if err := rlp.DecodeBytes(stored.Data, out); err != nil {
		return fmt.Errorf("staking: decode %s: %w", kind, err)
	}
	return nil
}

func (l *Ledger) put(addr crypto.Address, kind accountKind, value interface{}) error {
	if l == nil || l.store == nil {
		return errUninitialised
	}
	data, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("staking: encode %s: %w", kind, err)
	}
	return l.store.KVPut(accountKey(addr), &storedAccount{Kind: uint8(kind), Data: data})
}

func (l *Ledger) exists(addr crypto.Address) (bool, error) {
	if l == nil || l.store == nil {
		return false, errUninitialised
	}
	return l.store.KVGet(accountKey(addr), nil)
}

func (l *Ledger) initAccount(seeds [][]byte, kind accountKind, build func(bump uint8) interface{}) (crypto.Address, error) {
	addr, bump, err := crypto.FindProgramAddress(seeds, l.programID)
	if err != nil {
		return crypto.Address{}, err
	}
	exists, err := l.exists(addr)
	if err != nil {
		return crypto.Address{}, err
	}
	if exists {
		return crypto.Address{}, fmt.Errorf("%w: %s at %s", ErrAccountExists, kind, addr)
	}
	if err := l.put(addr, kind, build(bump)); err != nil {
		return crypto.Address{}, err
	}
	return addr, nil
}

// ConfigAddress returns the canonical address of the config record.
func (l *Ledger) ConfigAddress() (crypto.Address, error) {
	addr, _, err := crypto.FindProgramAddress(configSeeds(), l.programID)
	return addr, err
}

// UserAddress returns the canonical address of a user's account.
func (l *Ledger) UserAddress(user crypto.Address) (crypto.Address, error) {
	addr, _, err := crypto.FindProgramAddress(userSeeds(user), l.programID)
	return addr, err
}

// StakeAddress returns the canonical address of the lock record for asset.
func (l *Ledger) StakeAddress(asset crypto.Address) (crypto.Address, error) {
	config, err := l.ConfigAddress()
	if err != nil {
		return crypto.Address{}, err
	}
	addr, _, err := crypto.FindProgramAddress(stakeSeeds(config, asset), l.programID)
	return addr, err
}

// CollectionInfoAddress returns the canonical CollectionInfo address, which is
// also the collection's delegated freeze authority.
func (l *Ledger) CollectionInfoAddress(collection crypto.Address) (crypto.Address, error) {
	addr, _, err := crypto.FindProgramAddress(collectionInfoSeeds(collection), l.programID)
	return addr, err
}

// InitConfig writes the singleton config record at its canonical address.
func (l *Ledger) InitConfig(cfg StakeConfig) (crypto.Address, error) {
	return l.initAccount(configSeeds(), kindConfig, func(bump uint8) interface{} {
		cfg.Bump = bump
		return &cfg
	})
}

// InitUser creates an empty account for user.
func (l *Ledger) InitUser(user crypto.Address, rent uint64) (crypto.Address, error) {
	if user.IsZero() {
		return crypto.Address{}, fmt.Errorf("staking: user required")
	}
	return l.initAccount(userSeeds(user), kindUser, func(bump uint8) interface{} {
		return &UserAccount{Bump: bump, Rent: rent}
	})
}

// InitCollectionInfo creates the authority record for collection.
func (l *Ledger) InitCollectionInfo(collection crypto.Address, rent uint64) (crypto.Address, error) {
	if collection.IsZero() {
		return crypto.Address{}, fmt.Errorf("staking: collection required")
	}
	return l.initAccount(collectionInfoSeeds(collection), kindCollectionInfo, func(bump uint8) interface{} {
		return &CollectionInfo{Collection: collection, Bump: bump, Rent: rent}
	})
}

// PutStake writes a lock record for asset owned by owner. It performs no
// stake-side policy; the stake flow and genesis loader own that.
func (l *Ledger) PutStake(owner, asset crypto.Address, stakedAt int64, rent uint64) (crypto.Address, error) {
	if owner.IsZero() || asset.IsZero() {
		return crypto.Address{}, fmt.Errorf("staking: owner and asset required")
	}
	config, err := l.ConfigAddress()
	if err != nil {
		return crypto.Address{}, err
	}
	return l.initAccount(stakeSeeds(config, asset), kindStake, func(bump uint8) interface{} {
		return newStakeRecordStored(&StakeRecord{Owner: owner, Asset: asset, StakedAt: stakedAt, Bump: bump, Rent: rent})
	})
}

// Config loads the config record at addr.
func (l *Ledger) Config(addr crypto.Address) (*StakeConfig, error) {
	var cfg StakeConfig
	if err := l.load(addr, kindConfig, &cfg); err != nil {
		return nil, err
	}
	if err := verifyAddress(l.programID, configSeeds(), cfg.Bump, addr); err != nil {
		return nil, fmt.Errorf("%w: config", err)
	}
	return &cfg, nil
}

// User loads the account of user at addr.
func (l *Ledger) User(addr, user crypto.Address) (*UserAccount, error) {
	var acct UserAccount
	if err := l.load(addr, kindUser, &acct); err != nil {
		return nil, err
	}
	if err := verifyAddress(l.programID, userSeeds(user), acct.Bump, addr); err != nil {
		return nil, fmt.Errorf("%w: user account", err)
	}
	return &acct, nil
}

// PutUser overwrites the account at addr.
func (l *Ledger) PutUser(addr crypto.Address, acct *UserAccount) error {
	return l.put(addr, kindUser, acct)
}

// Stake loads the lock record at addr for the (config, asset) pair.
func (l *Ledger) Stake(addr, config, asset crypto.Address) (*StakeRecord, error) {
	var stored stakeRecordStored
	if err := l.load(addr, kindStake, &stored); err != nil {
		return nil, err
	}
	if err := verifyAddress(l.programID, stakeSeeds(config, asset), stored.Bump, addr); err != nil {
		return nil, fmt.Errorf("%w: stake account", err)
	}
	return stored.toStakeRecord(), nil
}

// CollectionInfo loads the authority record at addr for collection.
func (l *Ledger) CollectionInfo(addr, collection crypto.Address) (*CollectionInfo, error) {
	var info CollectionInfo
	if err := l.load(addr, kindCollectionInfo, &info); err != nil {
		return nil, err
	}
	if err := verifyAddress(l.programID, collectionInfoSeeds(collection), info.Bump, addr); err != nil {
		return nil, fmt.Errorf("%w: collection info", err)
	}
	return &info, nil
}

// CloseStake deletes the lock record at addr and credits its rent deposit to
// recipient. It returns the refunded amount.
func (l *Ledger) CloseStake(addr crypto.Address, record *StakeRecord, recipient crypto.Address) (uint64, error) {
	if l == nil || l.store == nil {
		return 0, errUninitialised
	}
	if err := l.store.KVDelete(accountKey(addr)); err != nil {
		return 0, err
	}
	if record == nil || record.Rent == 0 {
		return 0, nil
	}
	if _, err := bank.Credit(l.store, recipient, record.Rent); err != nil {
		return 0, fmt.Errorf("staking: refund rent: %w", err)
	}
	return record.Rent, nil
}
