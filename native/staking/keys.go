package staking

import (
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"nftstake/crypto"
)

// Seed tags for every record the staking program derives.
const (
	SeedConfig         = "config"
	SeedStake          = "stake"
	SeedUser           = "user"
	SeedCollectionInfo = "collection_info"
)

// DefaultProgramID is the staking program identity used when the node
// configuration does not override it.
var DefaultProgramID = crypto.BytesToAddress(ethcrypto.Keccak256([]byte("nftstake/staking/v1")))

var accountPrefix = []byte("staking/account/")

func accountKey(addr crypto.Address) []byte {
	buf := make([]byte, len(accountPrefix)+len(addr))
	copy(buf, accountPrefix)
	copy(buf[len(accountPrefix):], addr[:])
	return buf
}

func configSeeds() [][]byte {
	return [][]byte{[]byte(SeedConfig)}
}

func stakeSeeds(config, asset crypto.Address) [][]byte {
	return [][]byte{[]byte(SeedStake), config.Bytes(), asset.Bytes()}
}

func userSeeds(user crypto.Address) [][]byte {
	return [][]byte{[]byte(SeedUser), user.Bytes()}
}

func collectionInfoSeeds(collection crypto.Address) [][]byte {
	return [][]byte{[]byte(SeedCollectionInfo), collection.Bytes()}
}

// CollectionSignerSeeds returns the full seed list, bump included, that signs
// custody calls on behalf of a collection's CollectionInfo account.
func CollectionSignerSeeds(collection crypto.Address, bump uint8) [][]byte {
	return withBump(collectionInfoSeeds(collection), bump)
}

func withBump(seeds [][]byte, bump uint8) [][]byte {
	out := make([][]byte, len(seeds), len(seeds)+1)
	copy(out, seeds)
	return append(out, []byte{bump})
}

// verifyAddress re-derives the address for seeds and bump and compares it
// with the supplied one.
func verifyAddress(programID crypto.Address, seeds [][]byte, bump uint8, want crypto.Address) error {
	got, err := crypto.CreateProgramAddress(withBump(seeds, bump), programID)
	if err != nil || got != want {
		return ErrSeedsConstraint
	}
	return nil
}
