package lottery

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/dedis/tokenlottery/address"
	"golang.org/x/xerrors"
)

// TokenLottery is the lottery configuration record. It lives at the
// address derived from SeedConfig and is stored in a fixed layout so its
// allocation never changes.
type TokenLottery struct {
	Bump         uint8
	Winner       uint64
	WinnerChosen bool
	Start        uint64
	End          uint64
	Pot          uint64
	TotalTickets uint64
	TicketPrice  uint64
	Authority    address.Address
	Randomness   address.Address
}

const (
	discriminatorSize = 8
	// InitSpace is the size of the record fields.
	InitSpace = 1 + 8 + 1 + 8*5 + address.Size*2
	// Space is the allocation of the record, discriminator included.
	Space = discriminatorSize + InitSpace
)

var discriminator = accountDiscriminator("TokenLottery")

func accountDiscriminator(name string) [discriminatorSize]byte {
	var d [discriminatorSize]byte
	h := sha256.Sum256([]byte("account:" + name))
	copy(d[:], h[:discriminatorSize])
	return d
}

// Encode returns the Space-byte form of the record.
func (tl *TokenLottery) Encode() []byte {
	buf := make([]byte, Space)
	copy(buf, discriminator[:])
	w := buf[discriminatorSize:]
	w[0] = tl.Bump
	binary.LittleEndian.PutUint64(w[1:], tl.Winner)
	if tl.WinnerChosen {
		w[9] = 1
	}
	binary.LittleEndian.PutUint64(w[10:], tl.Start)
	binary.LittleEndian.PutUint64(w[18:], tl.End)
	binary.LittleEndian.PutUint64(w[26:], tl.Pot)
	binary.LittleEndian.PutUint64(w[34:], tl.TotalTickets)
	binary.LittleEndian.PutUint64(w[42:], tl.TicketPrice)
	copy(w[50:], tl.Authority[:])
	copy(w[82:], tl.Randomness[:])
	return buf
}

// DecodeTokenLottery parses a record written by Encode.
func DecodeTokenLottery(buf []byte) (*TokenLottery, error) {
	if len(buf) != Space {
		return nil, xerrors.Errorf("record of %d bytes: %w", len(buf), ErrInvalidConfig)
	}
	var d [discriminatorSize]byte
	copy(d[:], buf)
	if d != discriminator {
		return nil, xerrors.Errorf("wrong discriminator: %w", ErrInvalidConfig)
	}
	r := buf[discriminatorSize:]
	if r[9] > 1 {
		return nil, xerrors.Errorf("invalid bool %d: %w", r[9], ErrInvalidConfig)
	}
	tl := &TokenLottery{
		Bump:         r[0],
		Winner:       binary.LittleEndian.Uint64(r[1:]),
		WinnerChosen: r[9] == 1,
		Start:        binary.LittleEndian.Uint64(r[10:]),
		End:          binary.LittleEndian.Uint64(r[18:]),
		Pot:          binary.LittleEndian.Uint64(r[26:]),
		TotalTickets: binary.LittleEndian.Uint64(r[34:]),
		TicketPrice:  binary.LittleEndian.Uint64(r[42:]),
	}
	copy(tl.Authority[:], r[50:82])
	copy(tl.Randomness[:], r[82:114])
	return tl, nil
}
