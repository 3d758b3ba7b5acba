// Package metadata is the registry of token metadata: the name, symbol
// and URI of a mint, its creators and collection, and the master edition
// record that caps the supply of a non-fungible token.
package metadata

import (
	"github.com/dedis/tokenlottery/address"
	"github.com/dedis/tokenlottery/state"
	"go.dedis.ch/protobuf"
	"golang.org/x/xerrors"
)

// ProgramID owns metadata and edition records.
var ProgramID = address.MustFromString("metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s")

const (
	MaxNameLength     = 32
	MaxSymbolLength   = 10
	MaxURILength      = 200
	MaxCreators       = 5
	MaxBasisPoints    = 10000
	MetadataSize      = 679
	MasterEditionSize = 282

	prefix  = "metadata"
	edition = "edition"
)

var (
	ErrNameTooLong        = xerrors.New("name too long")
	ErrSymbolTooLong      = xerrors.New("symbol too long")
	ErrURITooLong         = xerrors.New("uri too long")
	ErrInvalidBasisPoints = xerrors.New("seller fee basis points above 10000")
	ErrTooManyCreators    = xerrors.New("too many creators")
	ErrInvalidShares      = xerrors.New("creator shares must add up to 100")
	ErrCannotPreVerify    = xerrors.New("cannot create a verified creator or collection")
	ErrInvalidOwner       = xerrors.New("account is not owned by the metadata program")
	ErrCreatorNotFound    = xerrors.New("creator not found")
	ErrNotMasterEdition   = xerrors.New("mint is not a master edition candidate")
	ErrNotSizedCollection = xerrors.New("collection has no size")
	ErrImmutable          = xerrors.New("metadata is immutable")
	ErrMintMismatch       = xerrors.New("metadata belongs to another mint")
)

// Creator is a party credited in the metadata. Verified is only ever set
// by the creator signing.
type Creator struct {
	Address  address.Address
	Verified bool
	Share    uint32
}

// Collection links an item to its collection mint.
type Collection struct {
	Verified bool
	Key      address.Address
}

// CollectionDetails marks a collection parent and counts its verified
// items.
type CollectionDetails struct {
	Size uint64
}

// DataV2 is the descriptive part of the metadata.
type DataV2 struct {
	Name                 string
	Symbol               string
	URI                  string
	SellerFeeBasisPoints uint32
	Creators             []Creator
	Collection           *Collection
}

// Metadata is the record stored at MetadataAddress(mint).
type Metadata struct {
	UpdateAuthority     address.Address
	Mint                address.Address
	Data                DataV2
	PrimarySaleHappened bool
	IsMutable           bool
	CollectionDetails   *CollectionDetails
}

// MasterEdition is the record stored at EditionAddress(mint).
type MasterEdition struct {
	Supply       uint64
	MaxSupply    uint64
	HasMaxSupply bool
}

// MetadataAddress is the registry record of mint.
func MetadataAddress(mint address.Address) (address.Address, error) {
	a, _, err := address.FindProgramAddress(
		[][]byte{[]byte(prefix), ProgramID.Bytes(), mint.Bytes()}, ProgramID)
	if err != nil {
		return address.Zero, xerrors.Errorf("couldn't derive metadata address: %w", err)
	}
	return a, nil
}

// EditionAddress is the master edition record of mint.
func EditionAddress(mint address.Address) (address.Address, error) {
	a, _, err := address.FindProgramAddress(
		[][]byte{[]byte(prefix), ProgramID.Bytes(), mint.Bytes(), []byte(edition)}, ProgramID)
	if err != nil {
		return address.Zero, xerrors.Errorf("couldn't derive edition address: %w", err)
	}
	return a, nil
}

// Name returns the name without its NUL padding.
func (md *Metadata) Name() string {
	return trim(md.Data.Name)
}

// Load reads the metadata record at addr.
func Load(txn *state.Txn, addr address.Address) (*Metadata, error) {
	md := &Metadata{}
	if err := load(txn, addr, md); err != nil {
		return nil, err
	}
	return md, nil
}

// LoadEdition reads the master edition record at addr.
func LoadEdition(txn *state.Txn, addr address.Address) (*MasterEdition, error) {
	me := &MasterEdition{}
	if err := load(txn, addr, me); err != nil {
		return nil, err
	}
	return me, nil
}

func load(txn *state.Txn, addr address.Address, msg interface{}) error {
	acct, err := txn.Get(addr)
	if err != nil {
		return xerrors.Errorf("%s: %w", addr, err)
	}
	if acct.Owner != ProgramID {
		return xerrors.Errorf("%s: %w", addr, ErrInvalidOwner)
	}
	if err := protobuf.Decode(acct.Data, msg); err != nil {
		return xerrors.Errorf("couldn't decode %s: %v", addr, err)
	}
	return nil
}

func encode(msg interface{}) ([]byte, error) {
	buf, err := protobuf.Encode(msg)
	if err != nil {
		return nil, xerrors.Errorf("couldn't encode: %v", err)
	}
	return buf, nil
}

func store(txn *state.Txn, addr address.Address, msg interface{}) error {
	buf, err := encode(msg)
	if err != nil {
		return err
	}
	return txn.SetData(addr, buf)
}

// pad NUL-fills s to n bytes, the fixed width of the stored strings.
func pad(s string, n int) string {
	buf := make([]byte, n)
	copy(buf, s)
	return string(buf)
}

func trim(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == 0 {
			return s[:i]
		}
	}
	return s
}
