package events

import (
	"encoding/hex"
	"strconv"

	"nftstake/core/types"
	"nftstake/crypto"
)

const (
	// TypeStakeUnstaked is emitted once an asset has been released from its
	// lock and the lock record closed.
	TypeStakeUnstaked = "staking.unstaked"
	// TypeCustodyLockFlagUpdated is emitted when the custody service toggles an
	// asset's freeze flag.
	TypeCustodyLockFlagUpdated = "custody.lockFlagUpdated"
	// TypeCustodyLockCapabilityRemoved is emitted when the freeze capability is
	// stripped from an asset.
	TypeCustodyLockCapabilityRemoved = "custody.lockCapabilityRemoved"
)

// StakeUnstaked captures the outcome of a successful unstake.
type StakeUnstaked struct {
	ReceiptID    [32]byte
	User         crypto.Address
	Asset        crypto.Address
	Collection   crypto.Address
	StakedAt     int64
	UnstakedAt   int64
	DaysElapsed  uint64
	PointsEarned uint32
	PointsTotal  uint32
	AmountStaked uint8
	RentRefunded uint64
}

// EventType satisfies the Event interface.
func (StakeUnstaked) EventType() string { return TypeStakeUnstaked }

// Event converts the structured payload into a broadcastable event.
func (e StakeUnstaked) Event() *types.Event {
	attrs := map[string]string{
		"receiptId":    hex.EncodeToString(e.ReceiptID[:]),
		"user":         formatAddress(e.User),
		"asset":        formatAddress(e.Asset),
		"stakedAt":     formatInt(e.StakedAt),
		"unstakedAt":   formatInt(e.UnstakedAt),
		"daysElapsed":  formatUint(e.DaysElapsed),
		"pointsEarned": formatUint(uint64(e.PointsEarned)),
		"pointsTotal":  formatUint(uint64(e.PointsTotal)),
		"amountStaked": formatUint(uint64(e.AmountStaked)),
	}
	if !e.Collection.IsZero() {
		attrs["collection"] = formatAddress(e.Collection)
	}
	if e.RentRefunded > 0 {
		attrs["rentRefunded"] = formatUint(e.RentRefunded)
	}
	return &types.Event{Type: TypeStakeUnstaked, Attributes: attrs}
}

// CustodyLockFlagUpdated records a freeze flag transition on an asset.
type CustodyLockFlagUpdated struct {
	Asset      crypto.Address
	Collection crypto.Address
	Authority  crypto.Address
	Frozen     bool
}

// EventType satisfies the Event interface.
func (CustodyLockFlagUpdated) EventType() string { return TypeCustodyLockFlagUpdated }

// Event converts the structured payload into a broadcastable event.
func (e CustodyLockFlagUpdated) Event() *types.Event {
	return &types.Event{Type: TypeCustodyLockFlagUpdated, Attributes: map[string]string{
		"asset":      formatAddress(e.Asset),
		"collection": formatAddress(e.Collection),
		"authority":  formatAddress(e.Authority),
		"frozen":     strconv.FormatBool(e.Frozen),
	}}
}

// CustodyLockCapabilityRemoved records the removal of the freeze capability.
type CustodyLockCapabilityRemoved struct {
	Asset      crypto.Address
	Collection crypto.Address
	Authority  crypto.Address
}

// EventType satisfies the Event interface.
func (CustodyLockCapabilityRemoved) EventType() string { return TypeCustodyLockCapabilityRemoved }

// Event converts the structured payload into a broadcastable event.
func (e CustodyLockCapabilityRemoved) Event() *types.Event {
	return &types.Event{Type: TypeCustodyLockCapabilityRemoved, Attributes: map[string]string{
		"asset":      formatAddress(e.Asset),
		"collection": formatAddress(e.Collection),
		"authority":  formatAddress(e.Authority),
	}}
}
