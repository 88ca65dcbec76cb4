package rpc

import (
	"time"

	"nftstake/crypto"
	"nftstake/indexer"
	"nftstake/native/staking"
)

type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// UnstakeRequest is the POST /v1/unstake body. User, Asset and Collection are
// required; derived accounts left empty are filled with their canonical
// addresses.
type UnstakeRequest struct {
	User           string `json:"user"`
	Asset          string `json:"asset"`
	Collection     string `json:"collection"`
	StakeAccount   string `json:"stakeAccount,omitempty"`
	Config         string `json:"config,omitempty"`
	UserAccount    string `json:"userAccount,omitempty"`
	CollectionInfo string `json:"collectionInfo,omitempty"`
	CustodyProgram string `json:"custodyProgram,omitempty"`
}

type UserResponse struct {
	Address      crypto.Address `json:"address"`
	Account      crypto.Address `json:"account"`
	Points       uint32         `json:"points"`
	AmountStaked uint8          `json:"amountStaked"`
	Balance      uint64         `json:"balance"`
}

type HistoryEntry struct {
	ReceiptID    string `json:"receiptId"`
	Asset        string `json:"asset"`
	Collection   string `json:"collection"`
	StakedAt     int64  `json:"stakedAt"`
	UnstakedAt   int64  `json:"unstakedAt"`
	DaysElapsed  int64  `json:"daysElapsed"`
	PointsEarned int64  `json:"pointsEarned"`
	RentRefunded int64  `json:"rentRefunded"`
}

func historyEntry(row indexer.UnstakeRecord) HistoryEntry {
	return HistoryEntry{
		ReceiptID:    row.ReceiptID,
		Asset:        row.Asset,
		Collection:   row.Collection,
		StakedAt:     row.StakedAt,
		UnstakedAt:   row.UnstakedAt,
		DaysElapsed:  row.DaysElapsed,
		PointsEarned: row.PointsEarned,
		RentRefunded: row.RentRefunded,
	}
}

func lockEntry(row indexer.LockEvent) LockEntry {
	return LockEntry{
		Type:      row.Type,
		Authority: row.Authority,
		Frozen:    row.Frozen,
		At:        row.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type HistoryResponse struct {
	Address     crypto.Address `json:"address"`
	TotalPoints uint64         `json:"totalPoints"`
	Unstakes    []HistoryEntry `json:"unstakes"`
}

type LockEntry struct {
	Type      string `json:"type"`
	Authority string `json:"authority"`
	Frozen    bool   `json:"frozen"`
	At        string `json:"at"`
}

// AssetHistoryResponse lists every indexed unstake of one asset with the
// custody transitions observed for it, oldest first.
type AssetHistoryResponse struct {
	Asset      crypto.Address `json:"asset"`
	Unstakes   []HistoryEntry `json:"unstakes"`
	LockEvents []LockEntry    `json:"lockEvents"`
}

type ReceiptResponse struct {
	Receipt *staking.UnstakeReceipt `json:"receipt"`
	Preview bool                    `json:"preview,omitempty"`
}
