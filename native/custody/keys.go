package custody

import "nftstake/crypto"

var (
	assetPrefix      = []byte("custody/asset/")
	collectionPrefix = []byte("custody/collection/")
)

func prefixed(prefix []byte, addr crypto.Address) []byte {
	buf := make([]byte, len(prefix)+len(addr))
	copy(buf, prefix)
	copy(buf[len(prefix):], addr[:])
	return buf
}

// AssetKey returns the state key holding the asset record. Callers use it to
// take the per-record lock before mutating the asset.
func AssetKey(addr crypto.Address) []byte {
	return prefixed(assetPrefix, addr)
}

func collectionKey(addr crypto.Address) []byte {
	return prefixed(collectionPrefix, addr)
}
