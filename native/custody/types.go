package custody

import (
	"errors"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"nftstake/crypto"
)

// ProgramID is the fixed identity of the custody service. Callers that accept
// a custody program account must reject any other value.
var ProgramID = crypto.BytesToAddress(ethcrypto.Keccak256([]byte("nftstake/custody/v1")))

// PluginType identifies a capability that can be attached to an asset.
type PluginType uint8

const (
	// PluginFreezeDelegate marks an asset as non-transferable while its flag is
	// set. The flag is toggled by the delegate recorded on the plugin.
	PluginFreezeDelegate PluginType = iota + 1
)

func (p PluginType) String() string {
	switch p {
	case PluginFreezeDelegate:
		return "FreezeDelegate"
	default:
		return "Unknown"
	}
}

// Collection groups assets under a shared update authority.
type Collection struct {
	Address         crypto.Address
	UpdateAuthority crypto.Address
	Name            string
	URI             string
	NumMinted       uint32
}

// FreezeDelegate is the lock-flag capability.
type FreezeDelegate struct {
	Frozen    bool
	Authority crypto.Address
}

// Asset is a unique collectible owned by a wallet.
type Asset struct {
	Address    crypto.Address
	Owner      crypto.Address
	Collection crypto.Address
	Name       string
	URI        string
	// FreezeDelegate is nil when the capability is absent.
	FreezeDelegate *FreezeDelegate
}

// Frozen reports whether the asset currently carries a set lock flag.
func (a *Asset) Frozen() bool {
	return a != nil && a.FreezeDelegate != nil && a.FreezeDelegate.Frozen
}

type storedAsset struct {
	Address         crypto.Address
	Owner           crypto.Address
	Collection      crypto.Address
	Name            string
	URI             string
	HasFreeze       bool
	Frozen          bool
	FreezeAuthority crypto.Address
}

func newStoredAsset(a *Asset) *storedAsset {
	stored := &storedAsset{
		Address:    a.Address,
		Owner:      a.Owner,
		Collection: a.Collection,
		Name:       a.Name,
		URI:        a.URI,
	}
	if a.FreezeDelegate != nil {
		stored.HasFreeze = true
		stored.Frozen = a.FreezeDelegate.Frozen
		stored.FreezeAuthority = a.FreezeDelegate.Authority
	}
	return stored
}

func (s *storedAsset) toAsset() *Asset {
	asset := &Asset{
		Address:    s.Address,
		Owner:      s.Owner,
		Collection: s.Collection,
		Name:       s.Name,
		URI:        s.URI,
	}
	if s.HasFreeze {
		asset.FreezeDelegate = &FreezeDelegate{Frozen: s.Frozen, Authority: s.FreezeAuthority}
	}
	return asset
}

// Signer authorises a custody call. A direct signer is a wallet that signed
// the enclosing transaction. A program signer carries the seeds, bump
// included, that reproduce its address under the id of the program invoking
// custody; no private key exists for it.
type Signer struct {
	Key   crypto.Address
	Seeds [][]byte
}

// DirectSigner wraps a wallet that signed the transaction.
func DirectSigner(key crypto.Address) Signer {
	return Signer{Key: key}
}

// ProgramSigner wraps a signer derived from seeds under the invoking program.
func ProgramSigner(seeds ...[]byte) Signer {
	cloned := make([][]byte, len(seeds))
	for i, seed := range seeds {
		cloned[i] = append([]byte(nil), seed...)
	}
	return Signer{Seeds: cloned}
}

// IsProgram reports whether the signer is program-derived.
func (s Signer) IsProgram() bool {
	return len(s.Seeds) > 0
}

// resolve returns the identity the signer stands for. Program signers are
// derived under caller, the program that made the call; a call made without
// an invoking program cannot present one.
func (s Signer) resolve(caller crypto.Address) (crypto.Address, error) {
	if !s.IsProgram() {
		if s.Key.IsZero() {
			return crypto.Address{}, errors.New("custody: signer required")
		}
		return s.Key, nil
	}
	if caller.IsZero() {
		return crypto.Address{}, errors.New("custody: program signer outside a program invocation")
	}
	return crypto.CreateProgramAddress(s.Seeds, caller)
}

// SetLockFlagArgs carries the accounts and payload of SetLockFlag.
type SetLockFlagArgs struct {
	Asset      crypto.Address
	Collection crypto.Address
	Payer      crypto.Address
	Authority  Signer
	Frozen     bool
}

// RemoveLockCapabilityArgs carries the accounts and payload of
// RemoveLockCapability.
type RemoveLockCapabilityArgs struct {
	Asset      crypto.Address
	Collection crypto.Address
	Payer      crypto.Address
	Authority  Signer
	Plugin     PluginType
}
