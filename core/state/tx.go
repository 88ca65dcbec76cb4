package state

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"
)

// ErrTxClosed is returned by every Tx method once Commit or Discard ran.
var ErrTxClosed = errors.New("state: transaction closed")

// Tx is an overlay that buffers writes and deletes on top of a Manager. Reads
// observe the overlay first. Commit flushes every buffered change in a single
// database batch; Discard drops them.
//
// Tx is not safe for concurrent use.
type Tx struct {
	mgr     *Manager
	writes  map[string][]byte
	deletes map[string]struct{}
	closed  bool
}

// KVGet implements KV.
func (tx *Tx) KVGet(key []byte, out interface{}) (bool, error) {
	if tx.closed {
		return false, ErrTxClosed
	}
	hashed := string(kvKey(key))
	if _, deleted := tx.deletes[hashed]; deleted {
		return false, nil
	}
	data, ok := tx.writes[hashed]
	if !ok {
		var err error
		data, ok, err = tx.mgr.getRaw([]byte(hashed))
		if err != nil || !ok {
			return false, err
		}
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("state: decode %x: %w", key, err)
	}
	return true, nil
}

// KVPut implements KV.
func (tx *Tx) KVPut(key []byte, value interface{}) error {
	if tx.closed {
		return ErrTxClosed
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode %x: %w", key, err)
	}
	hashed := string(kvKey(key))
	delete(tx.deletes, hashed)
	tx.writes[hashed] = encoded
	return nil
}

// KVDelete implements KV.
func (tx *Tx) KVDelete(key []byte) error {
	if tx.closed {
		return ErrTxClosed
	}
	hashed := string(kvKey(key))
	delete(tx.writes, hashed)
	tx.deletes[hashed] = struct{}{}
	return nil
}

// Pending reports the number of buffered changes.
func (tx *Tx) Pending() int {
	return len(tx.writes) + len(tx.deletes)
}

// Commit writes the buffered changes atomically and closes the transaction.
func (tx *Tx) Commit() error {
	if tx.closed {
		return ErrTxClosed
	}
	tx.closed = true
	if tx.Pending() == 0 {
		return nil
	}
	if tx.mgr == nil || tx.mgr.db == nil {
		return errors.New("state: database unavailable")
	}
	batch := tx.mgr.db.NewBatch()
	for _, key := range sortedKeys(tx.writes) {
		batch.Put([]byte(key), tx.writes[key])
	}
	for _, key := range sortedSet(tx.deletes) {
		batch.Delete([]byte(key))
	}
	tx.writes = nil
	tx.deletes = nil
	return batch.Write()
}

// Discard drops the buffered changes. It is safe to call after Commit, which
// makes `defer tx.Discard()` the usual pattern.
func (tx *Tx) Discard() {
	tx.closed = true
	tx.writes = nil
	tx.deletes = nil
}

func sortedKeys(m map[string][]byte) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func sortedSet(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
