package crypto

import (
	"errors"

	"filippo.io/edwards25519"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

const (
	// MaxSeeds bounds the number of seeds, bump included, in one derivation.
	MaxSeeds = 16
	// MaxSeedLength bounds the length of an individual seed.
	MaxSeedLength = 32

	programAddressMarker = "ProgramDerivedAddress"
)

var (
	ErrMaxSeedLengthExceeded = errors.New("crypto: seed length or count exceeded")
	// ErrAddressOnCurve marks a digest that is a valid ed25519 public key. Such
	// a digest could have a private key and is never used as a program address.
	ErrAddressOnCurve = errors.New("crypto: derived address lies on the ed25519 curve")
	ErrNoViableBump   = errors.New("crypto: unable to find a viable program address bump")
)

// CreateProgramAddress derives the address owned by programID for the given
// seeds. The result is a pure function of its inputs, so any party holding the
// seeds, the trailing bump included, can reproduce and verify it.
func CreateProgramAddress(seeds [][]byte, programID Address) (Address, error) {
	if len(seeds) > MaxSeeds {
		return Address{}, ErrMaxSeedLengthExceeded
	}
	parts := make([][]byte, 0, len(seeds)+2)
	for _, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return Address{}, ErrMaxSeedLengthExceeded
		}
		parts = append(parts, seed)
	}
	parts = append(parts, programID[:], []byte(programAddressMarker))
	digest := ethcrypto.Keccak256(parts...)
	if IsOnCurve(digest) {
		return Address{}, ErrAddressOnCurve
	}
	return BytesToAddress(digest), nil
}

// FindProgramAddress searches bumps from 255 down and returns the first
// off-curve address together with the bump that produced it.
func FindProgramAddress(seeds [][]byte, programID Address) (Address, uint8, error) {
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		addr, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrAddressOnCurve) {
			return Address{}, 0, err
		}
	}
	return Address{}, 0, ErrNoViableBump
}

// IsOnCurve reports whether b decodes as a point on edwards25519.
func IsOnCurve(b []byte) bool {
	if len(b) != AddressLength {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}
