package staking

import (
	"encoding/hex"
	"fmt"
	"time"

	"nftstake/crypto"
)

// StakeConfig holds the global staking parameters.
type StakeConfig struct {
	PointsPerStake uint8
	MaxStake       uint8
	// FreezePeriod is the minimum lock duration in days.
	FreezePeriod uint32
	RewardsBump  uint8
	Bump         uint8
	Rent         uint64
}

// UserAccount aggregates a user's points and open stakes.
type UserAccount struct {
	Points       uint32
	AmountStaked uint8
	Bump         uint8
	Rent         uint64
}

// StakeRecord is the lock record of one staked asset.
type StakeRecord struct {
	Owner    crypto.Address
	Asset    crypto.Address
	StakedAt int64
	Bump     uint8
	Rent     uint64
}

// CollectionInfo binds a collection to the derived authority that freezes
// and thaws its staked assets.
type CollectionInfo struct {
	Collection crypto.Address
	Bump       uint8
	Rent       uint64
}

// stakeRecordStored keeps StakedAt as its two's complement bits because RLP
// has no signed integers.
type stakeRecordStored struct {
	Owner    crypto.Address
	Asset    crypto.Address
	StakedAt uint64
	Bump     uint8
	Rent     uint64
}

func newStakeRecordStored(r *StakeRecord) *stakeRecordStored {
	return &stakeRecordStored{
		Owner:    r.Owner,
		Asset:    r.Asset,
		StakedAt: uint64(r.StakedAt),
		Bump:     r.Bump,
		Rent:     r.Rent,
	}
}

func (s *stakeRecordStored) toStakeRecord() *StakeRecord {
	return &StakeRecord{
		Owner:    s.Owner,
		Asset:    s.Asset,
		StakedAt: int64(s.StakedAt),
		Bump:     s.Bump,
		Rent:     s.Rent,
	}
}

// UnstakeRequest lists the accounts an unstake touches. User is the signer of
// the request.
type UnstakeRequest struct {
	User           crypto.Address `json:"user"`
	Asset          crypto.Address `json:"asset"`
	Collection     crypto.Address `json:"collection"`
	StakeAccount   crypto.Address `json:"stakeAccount"`
	Config         crypto.Address `json:"config"`
	UserAccount    crypto.Address `json:"userAccount"`
	CollectionInfo crypto.Address `json:"collectionInfo"`
	CustodyProgram crypto.Address `json:"custodyProgram"`
}

// ReceiptID identifies one unstake.
type ReceiptID [32]byte

func (id ReceiptID) String() string {
	return hex.EncodeToString(id[:])
}

// MarshalText renders the id as lowercase hex.
func (id ReceiptID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText parses the hex form produced by MarshalText.
func (id *ReceiptID) UnmarshalText(text []byte) error {
	decoded, err := hex.DecodeString(string(text))
	if err != nil {
		return fmt.Errorf("staking: decode receipt id: %w", err)
	}
	if len(decoded) != len(id) {
		return fmt.Errorf("staking: receipt id must be %d bytes, got %d", len(id), len(decoded))
	}
	copy(id[:], decoded)
	return nil
}

// UnstakeReceipt reports the effects of a successful (or previewed) unstake.
type UnstakeReceipt struct {
	ID           ReceiptID      `json:"id"`
	User         crypto.Address `json:"user"`
	Asset        crypto.Address `json:"asset"`
	Collection   crypto.Address `json:"collection"`
	StakedAt     int64          `json:"stakedAt"`
	UnstakedAt   int64          `json:"unstakedAt"`
	Elapsed      int64          `json:"elapsedSeconds"`
	DaysElapsed  uint64         `json:"daysElapsed"`
	PointsEarned uint32         `json:"pointsEarned"`
	PointsTotal  uint32         `json:"pointsTotal"`
	AmountStaked uint8          `json:"amountStaked"`
	RentRefunded uint64         `json:"rentRefunded"`
}

// UnstakedTime returns the unstake timestamp as a time.Time in UTC.
func (r *UnstakeReceipt) UnstakedTime() time.Time {
	return time.Unix(r.UnstakedAt, 0).UTC()
}
