// Package ledger hosts programs. A transaction is a list of instructions
// signed by one or more keys; the ledger runs them in order over one state
// transaction and commits only if all of them succeed.
package ledger

import (
	"github.com/dedis/tokenlottery/address"
	"github.com/dedis/tokenlottery/utils"
	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/kyber/v3/sign/schnorr"
	"go.dedis.ch/kyber/v3/util/key"
	"golang.org/x/xerrors"
)

var (
	// ErrMissingArgument is returned when an instruction lacks an argument.
	ErrMissingArgument = xerrors.New("missing argument")
	// ErrInvalidSignature is returned when a transaction signature does not
	// verify.
	ErrInvalidSignature = xerrors.New("invalid signature")
)

// Argument is a named instruction argument.
type Argument struct {
	Name  string
	Value []byte
}

// Instruction is one call into a program.
type Instruction struct {
	Program address.Address
	Command string
	Args    []Argument
}

// NewInstruction builds an instruction. Arguments are given as
// name/value pairs.
func NewInstruction(program address.Address, command string, args ...Argument) Instruction {
	return Instruction{Program: program, Command: command, Args: args}
}

// Arg returns the value of the named argument.
func (inst Instruction) Arg(name string) ([]byte, error) {
	for _, a := range inst.Args {
		if a.Name == name {
			return a.Value, nil
		}
	}
	return nil, xerrors.Errorf("%s: %w", name, ErrMissingArgument)
}

// ArgUint64 returns a little-endian uint64 argument.
func (inst Instruction) ArgUint64(name string) (uint64, error) {
	buf, err := inst.Arg(name)
	if err != nil {
		return 0, err
	}
	val, err := utils.BytesToUint64(buf)
	if err != nil {
		return 0, xerrors.Errorf("argument %s: %v", name, err)
	}
	return val, nil
}

// ArgAddress returns an address argument.
func (inst Instruction) ArgAddress(name string) (address.Address, error) {
	buf, err := inst.Arg(name)
	if err != nil {
		return address.Zero, err
	}
	a, err := address.FromBytes(buf)
	if err != nil {
		return address.Zero, xerrors.Errorf("argument %s: %v", name, err)
	}
	return a, nil
}

// Transaction is an ordered list of instructions. The first signer pays
// for the accounts the transaction creates.
type Transaction struct {
	Instructions []Instruction
	Signers      []address.Address
	Signatures   [][]byte
}

type signedMessage struct {
	Instructions []Instruction
	Signers      []address.Address
}

// NewTransaction wraps instructions into an unsigned transaction.
func NewTransaction(instructions ...Instruction) *Transaction {
	return &Transaction{Instructions: instructions}
}

// KeyAddress is the address of a public key.
func KeyAddress(kp *key.Pair) (address.Address, error) {
	buf, err := kp.Public.MarshalBinary()
	if err != nil {
		return address.Zero, xerrors.Errorf("couldn't marshal public key: %v", err)
	}
	return address.FromBytes(buf)
}

// digest is what signer i signs: the instructions and the signers up to
// and including i.
func (tx *Transaction) digest(i int) ([]byte, error) {
	return utils.HashEncoded(&signedMessage{
		Instructions: tx.Instructions,
		Signers:      tx.Signers[:i+1],
	})
}

// Sign appends kp as the next signer.
func (tx *Transaction) Sign(kp *key.Pair) error {
	signer, err := KeyAddress(kp)
	if err != nil {
		return err
	}
	tx.Signers = append(tx.Signers, signer)
	msg, err := tx.digest(len(tx.Signers) - 1)
	if err != nil {
		tx.Signers = tx.Signers[:len(tx.Signers)-1]
		return err
	}
	sig, err := schnorr.Sign(cothority.Suite, kp.Private, msg)
	if err != nil {
		tx.Signers = tx.Signers[:len(tx.Signers)-1]
		return xerrors.Errorf("couldn't sign: %v", err)
	}
	tx.Signatures = append(tx.Signatures, sig)
	return nil
}

// Verify checks every signature.
func (tx *Transaction) Verify() error {
	if len(tx.Signers) != len(tx.Signatures) {
		return xerrors.Errorf("%d signers but %d signatures: %w",
			len(tx.Signers), len(tx.Signatures), ErrInvalidSignature)
	}
	for i, signer := range tx.Signers {
		pub := cothority.Suite.Point()
		if err := pub.UnmarshalBinary(signer[:]); err != nil {
			return xerrors.Errorf("signer %s is not a key: %w", signer, ErrInvalidSignature)
		}
		msg, err := tx.digest(i)
		if err != nil {
			return err
		}
		if err := schnorr.Verify(cothority.Suite, pub, msg, tx.Signatures[i]); err != nil {
			return xerrors.Errorf("signer %s: %v: %w", signer, err, ErrInvalidSignature)
		}
	}
	return nil
}
