package custody

import (
	"errors"
	"fmt"
	"strings"

	"nftstake/core/events"
	"nftstake/crypto"
)

// State abstracts the subset of state manager functionality required by the
// custody engine. Staking passes its open transaction so custody mutations
// commit or abort together with the caller's.
type State interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

var (
	ErrAssetNotFound       = errors.New("custody: asset not found")
	ErrAssetExists         = errors.New("custody: asset already exists")
	ErrCollectionNotFound  = errors.New("custody: collection not found")
	ErrCollectionExists    = errors.New("custody: collection already exists")
	ErrCollectionMismatch  = errors.New("custody: asset does not belong to collection")
	ErrPluginNotFound      = errors.New("custody: plugin not found")
	ErrPluginExists        = errors.New("custody: plugin already attached")
	ErrPluginFrozen        = errors.New("custody: plugin is frozen")
	ErrUnsupportedPlugin   = errors.New("custody: unsupported plugin")
	ErrInvalidAuthority    = errors.New("custody: invalid authority")
	ErrPayerRequired       = errors.New("custody: payer required")
	errEngineUninitialised = errors.New("custody: state unavailable")
)

// Engine implements the custody service's asset operations.
type Engine struct{}

// NewEngine constructs the custody engine.
func NewEngine() *Engine {
	return &Engine{}
}

// ID returns the fixed program identity of the service.
func (e *Engine) ID() crypto.Address {
	return ProgramID
}

// Collection loads a collection record.
func (e *Engine) Collection(st State, addr crypto.Address) (*Collection, bool, error) {
	if st == nil {
		return nil, false, errEngineUninitialised
	}
	var col Collection
	ok, err := st.KVGet(collectionKey(addr), &col)
	if err != nil || !ok {
		return nil, false, err
	}
	return &col, true, nil
}

// Asset loads an asset record.
func (e *Engine) Asset(st State, addr crypto.Address) (*Asset, bool, error) {
	if st == nil {
		return nil, false, errEngineUninitialised
	}
	var stored storedAsset
	ok, err := st.KVGet(AssetKey(addr), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return stored.toAsset(), true, nil
}

func (e *Engine) putAsset(st State, asset *Asset) error {
	return st.KVPut(AssetKey(asset.Address), newStoredAsset(asset))
}

// CreateCollection registers a new collection.
func (e *Engine) CreateCollection(st State, col Collection) error {
	if st == nil {
		return errEngineUninitialised
	}
	if col.Address.IsZero() || col.UpdateAuthority.IsZero() {
		return fmt.Errorf("custody: collection and update authority required")
	}
	if _, exists, err := e.Collection(st, col.Address); err != nil {
		return err
	} else if exists {
		return ErrCollectionExists
	}
	col.Name = strings.TrimSpace(col.Name)
	col.URI = strings.TrimSpace(col.URI)
	col.NumMinted = 0
	return st.KVPut(collectionKey(col.Address), &col)
}

// CreateAsset mints an asset into an existing collection.
func (e *Engine) CreateAsset(st State, asset Asset) error {
	if st == nil {
		return errEngineUninitialised
	}
	if asset.Address.IsZero() || asset.Owner.IsZero() {
		return fmt.Errorf("custody: asset and owner required")
	}
	if _, exists, err := e.Asset(st, asset.Address); err != nil {
		return err
	} else if exists {
		return ErrAssetExists
	}
	col, ok, err := e.Collection(st, asset.Collection)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCollectionNotFound
	}
	asset.Name = strings.TrimSpace(asset.Name)
	asset.URI = strings.TrimSpace(asset.URI)
	if err := e.putAsset(st, &asset); err != nil {
		return err
	}
	if col.NumMinted < ^uint32(0) {
		col.NumMinted++
	}
	return st.KVPut(collectionKey(col.Address), col)
}

// AddFreezeDelegate attaches the lock-flag capability to an asset on behalf
// of its owner, naming delegate as the authority allowed to toggle it.
func (e *Engine) AddFreezeDelegate(st State, assetAddr crypto.Address, owner Signer, delegate crypto.Address, frozen bool) error {
	asset, err := e.loadAsset(st, assetAddr)
	if err != nil {
		return err
	}
	if err := requireOwner(asset, owner); err != nil {
		return err
	}
	if asset.FreezeDelegate != nil {
		return ErrPluginExists
	}
	if delegate.IsZero() {
		return fmt.Errorf("%w: delegate required", ErrInvalidAuthority)
	}
	asset.FreezeDelegate = &FreezeDelegate{Frozen: frozen, Authority: delegate}
	return e.putAsset(st, asset)
}

// Invoker is a handle on the engine bound to the program making the calls.
// Program signers presented through it are derived under that program only.
type Invoker struct {
	engine  *Engine
	program crypto.Address
}

// Invoker binds the engine to program.
func (e *Engine) Invoker(program crypto.Address) *Invoker {
	return &Invoker{engine: e, program: program}
}

// ID returns the custody program identity.
func (i *Invoker) ID() crypto.Address { return i.engine.ID() }

// Program returns the invoking program the handle is bound to.
func (i *Invoker) Program() crypto.Address { return i.program }

// SetLockFlag is Engine.SetLockFlag issued by the bound program.
func (i *Invoker) SetLockFlag(st State, args SetLockFlagArgs) (*events.CustodyLockFlagUpdated, error) {
	return i.engine.setLockFlag(st, i.program, args)
}

// RemoveLockCapability is Engine.RemoveLockCapability issued by the bound
// program.
func (i *Invoker) RemoveLockCapability(st State, args RemoveLockCapabilityArgs) (*events.CustodyLockCapabilityRemoved, error) {
	return i.engine.RemoveLockCapability(st, args)
}

// SetLockFlag updates the freeze flag of an asset from a wallet-signed call.
// The authority must resolve to the delegate recorded on the plugin. Program
// signers are only accepted through an Invoker. Setting the flag to its
// current value succeeds without change.
func (e *Engine) SetLockFlag(st State, args SetLockFlagArgs) (*events.CustodyLockFlagUpdated, error) {
	return e.setLockFlag(st, crypto.Address{}, args)
}

func (e *Engine) setLockFlag(st State, caller crypto.Address, args SetLockFlagArgs) (*events.CustodyLockFlagUpdated, error) {
	if args.Payer.IsZero() {
		return nil, ErrPayerRequired
	}
	asset, err := e.loadAssetInCollection(st, args.Asset, args.Collection)
	if err != nil {
		return nil, err
	}
	if asset.FreezeDelegate == nil {
		return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, PluginFreezeDelegate)
	}
	authority, err := args.Authority.resolve(caller)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAuthority, err)
	}
	if authority != asset.FreezeDelegate.Authority {
		return nil, fmt.Errorf("%w: %s is not the freeze delegate", ErrInvalidAuthority, authority)
	}
	if asset.FreezeDelegate.Frozen != args.Frozen {
		asset.FreezeDelegate.Frozen = args.Frozen
		if err := e.putAsset(st, asset); err != nil {
			return nil, err
		}
	}
	return &events.CustodyLockFlagUpdated{
		Asset:      asset.Address,
		Collection: asset.Collection,
		Authority:  authority,
		Frozen:     args.Frozen,
	}, nil
}

// RemoveLockCapability strips a plugin from an asset. Only the asset owner,
// signing directly, may remove it, and never while the lock flag is set.
func (e *Engine) RemoveLockCapability(st State, args RemoveLockCapabilityArgs) (*events.CustodyLockCapabilityRemoved, error) {
	if args.Plugin != PluginFreezeDelegate {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlugin, args.Plugin)
	}
	if args.Payer.IsZero() {
		return nil, ErrPayerRequired
	}
	asset, err := e.loadAssetInCollection(st, args.Asset, args.Collection)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(asset, args.Authority); err != nil {
		return nil, err
	}
	if asset.FreezeDelegate == nil {
		return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, args.Plugin)
	}
	if asset.FreezeDelegate.Frozen {
		return nil, ErrPluginFrozen
	}
	asset.FreezeDelegate = nil
	if err := e.putAsset(st, asset); err != nil {
		return nil, err
	}
	return &events.CustodyLockCapabilityRemoved{
		Asset:      asset.Address,
		Collection: asset.Collection,
		Authority:  asset.Owner,
	}, nil
}

func (e *Engine) loadAsset(st State, addr crypto.Address) (*Asset, error) {
	asset, ok, err := e.Asset(st, addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAssetNotFound
	}
	return asset, nil
}

func (e *Engine) loadAssetInCollection(st State, assetAddr, collection crypto.Address) (*Asset, error) {
	asset, err := e.loadAsset(st, assetAddr)
	if err != nil {
		return nil, err
	}
	if asset.Collection != collection {
		return nil, ErrCollectionMismatch
	}
	_, ok, err := e.Collection(st, collection)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCollectionNotFound
	}
	return asset, nil
}

func requireOwner(asset *Asset, signer Signer) error {
	if signer.IsProgram() {
		return fmt.Errorf("%w: owner must sign directly", ErrInvalidAuthority)
	}
	if signer.Key != asset.Owner {
		return fmt.Errorf("%w: %s does not own the asset", ErrInvalidAuthority, signer.Key)
	}
	return nil
}
