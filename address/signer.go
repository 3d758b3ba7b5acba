package address

import (
	"golang.org/x/xerrors"
)

// ErrAuthorityMismatch is returned when a presented derivation proof does
// not re-derive the address it is acting for.
var ErrAuthorityMismatch = xerrors.New("authority proof does not match address")

// Signer is the capability to act with the authority of a program
// address. It pairs the owning program with the seeds and the bump that
// re-derive the address; whoever holds it can sign for that address
// without any private key.
type Signer struct {
	program Address
	seeds   [][]byte
	bump    uint8
	address Address
}

// NewSigner re-derives the program address from the seeds and the bump
// recorded at derivation time.
func NewSigner(program Address, bump uint8, seeds ...[]byte) (Signer, error) {
	all := make([][]byte, 0, len(seeds)+1)
	for _, s := range seeds {
		all = append(all, append([]byte{}, s...))
	}
	all = append(all, []byte{bump})
	a, err := CreateProgramAddress(all, program)
	if err != nil {
		return Signer{}, xerrors.Errorf("couldn't derive signer address: %w", err)
	}
	return Signer{program: program, seeds: all[:len(seeds)], bump: bump, address: a}, nil
}

// FindSigner derives the address for seeds and returns its capability.
func FindSigner(program Address, seeds ...[]byte) (Signer, error) {
	_, bump, err := FindProgramAddress(seeds, program)
	if err != nil {
		return Signer{}, err
	}
	return NewSigner(program, bump, seeds...)
}

// Address is the program address this capability signs for.
func (s Signer) Address() Address {
	return s.address
}

// Program is the program that owns the address.
func (s Signer) Program() Address {
	return s.program
}

// Bump is the discriminator byte of the derivation.
func (s Signer) Bump() uint8 {
	return s.bump
}

// Seeds returns the seeds without the bump.
func (s Signer) Seeds() [][]byte {
	out := make([][]byte, len(s.seeds))
	for i, seed := range s.seeds {
		out[i] = append([]byte{}, seed...)
	}
	return out
}

// IsZero reports whether s is the zero capability.
func (s Signer) IsZero() bool {
	return s.address.IsZero() && s.program.IsZero()
}

// Verify checks that the capability signs for expected.
func (s Signer) Verify(expected Address) error {
	if s.IsZero() || s.address != expected {
		return xerrors.Errorf("signer %s for %s: %w", s.address, expected, ErrAuthorityMismatch)
	}
	return nil
}
