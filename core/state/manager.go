package state

import (
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"nftstake/storage"
)

// KV is the record-level view shared by the Manager and its transactions.
// Values are RLP encoded; keys are hashed before they reach the database.
type KV interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

// Manager provides record-level access to the ledger database.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func (m *Manager) getRaw(hashed []byte) ([]byte, bool, error) {
	if m == nil || m.db == nil {
		return nil, false, errors.New("state: database unavailable")
	}
	data, err := m.db.Get(hashed)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if len(data) == 0 {
		return nil, false, nil
	}
	return data, true, nil
}

// KVGet decodes the value stored under key into out. The boolean reports
// whether the key exists; out may be nil for an existence check.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	data, ok, err := m.getRaw(kvKey(key))
	if err != nil || !ok {
		return false, err
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("state: decode %x: %w", key, err)
	}
	return true, nil
}

// KVPut stores value under key, overwriting any previous value.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if m == nil || m.db == nil {
		return errors.New("state: database unavailable")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode %x: %w", key, err)
	}
	return m.db.Put(kvKey(key), encoded)
}

// KVDelete removes the value stored under key.
func (m *Manager) KVDelete(key []byte) error {
	if m == nil || m.db == nil {
		return errors.New("state: database unavailable")
	}
	return m.db.Delete(kvKey(key))
}

// Begin opens a write-buffering transaction over the manager. Nothing written
// through the transaction reaches the database until Commit.
func (m *Manager) Begin() *Tx {
	return &Tx{
		mgr:     m,
		writes:  make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}
