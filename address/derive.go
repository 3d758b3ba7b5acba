package address

import (
	"crypto/sha256"

	"go.dedis.ch/cothority/v3"
	"golang.org/x/xerrors"
)

const (
	// MaxSeeds is the maximum number of seeds, bump included.
	MaxSeeds = 16
	// MaxSeedLength is the maximum length of a single seed.
	MaxSeedLength = 32
)

// pdaMarker is appended to every derivation digest so that a program
// address can never collide with a plain hash of the same seeds.
var pdaMarker = []byte("ProgramDerivedAddress")

var (
	// ErrMaxSeeds is returned when too many seeds are given.
	ErrMaxSeeds = xerrors.New("too many seeds")
	// ErrMaxSeedLength is returned when a seed is longer than MaxSeedLength.
	ErrMaxSeedLength = xerrors.New("seed too long")
	// ErrInvalidSeeds is returned when the seeds hash onto the Ed25519
	// curve, i.e. the result could have a private key.
	ErrInvalidSeeds = xerrors.New("seeds produce an on-curve address")
	// ErrDerivationExhausted is returned when no bump in [255..0] yields an
	// off-curve address.
	ErrDerivationExhausted = xerrors.New("unable to find a viable program address bump")
)

// IsOnCurve reports whether b decodes as a point of the Ed25519 group.
func IsOnCurve(b []byte) bool {
	return cothority.Suite.Point().UnmarshalBinary(b) == nil
}

// CreateProgramAddress derives the address owned by program for the given
// seeds. The bump, if any, must already be the last seed.
func CreateProgramAddress(seeds [][]byte, program Address) (Address, error) {
	return createProgramAddress(seeds, program, IsOnCurve)
}

// FindProgramAddress probes bumps from 255 down to 0 and returns the first
// off-curve address together with its bump.
func FindProgramAddress(seeds [][]byte, program Address) (Address, uint8, error) {
	return findProgramAddress(seeds, program, IsOnCurve)
}

func createProgramAddress(seeds [][]byte, program Address, onCurve func([]byte) bool) (Address, error) {
	if len(seeds) > MaxSeeds {
		return Zero, ErrMaxSeeds
	}
	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return Zero, xerrors.Errorf("seed of %d bytes: %w", len(seed), ErrMaxSeedLength)
		}
		h.Write(seed)
	}
	h.Write(program[:])
	h.Write(pdaMarker)
	digest := h.Sum(nil)
	if onCurve(digest) {
		return Zero, ErrInvalidSeeds
	}
	var a Address
	copy(a[:], digest)
	return a, nil
}

func findProgramAddress(seeds [][]byte, program Address, onCurve func([]byte) bool) (Address, uint8, error) {
	if len(seeds) >= MaxSeeds {
		return Zero, 0, ErrMaxSeeds
	}
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{uint8(bump)}
		a, err := createProgramAddress(withBump, program, onCurve)
		if err == nil {
			return a, uint8(bump), nil
		}
		if !xerrors.Is(err, ErrInvalidSeeds) {
			return Zero, 0, err
		}
	}
	return Zero, 0, ErrDerivationExhausted
}
