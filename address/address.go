// Package address holds ledger addresses and the derivation of program
// addresses: deterministic addresses that no private key can sign for.
package address

import (
	"bytes"

	"github.com/mr-tron/base58"
	"golang.org/x/xerrors"
)

// Size is the length of an address in bytes.
const Size = 32

// Address identifies an account, a program or a signer on the ledger. Key
// addresses are the encoding of an Ed25519 public key; program addresses
// are guaranteed to be off the curve.
type Address [Size]byte

// Zero is the null identity. It also stands for "no authority" in module
// records.
var Zero Address

// FromBytes copies b into an Address.
func FromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != Size {
		return a, xerrors.Errorf("invalid address length %d", len(b))
	}
	copy(a[:], b)
	return a, nil
}

// FromString parses the base58 form of an address.
func FromString(s string) (Address, error) {
	buf, err := base58.Decode(s)
	if err != nil {
		return Zero, xerrors.Errorf("couldn't decode address %q: %v", s, err)
	}
	return FromBytes(buf)
}

// MustFromString is FromString for package-level constants.
func MustFromString(s string) Address {
	a, err := FromString(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) String() string {
	return base58.Encode(a[:])
}

// Bytes returns a copy of the address bytes.
func (a Address) Bytes() []byte {
	return append([]byte{}, a[:]...)
}

// IsZero reports whether a is the null identity.
func (a Address) IsZero() bool {
	return a == Zero
}

// Equal compares two addresses.
func (a Address) Equal(other Address) bool {
	return bytes.Equal(a[:], other[:])
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(input []byte) error {
	res, err := FromString(string(input))
	if err != nil {
		return err
	}
	*a = res
	return nil
}
