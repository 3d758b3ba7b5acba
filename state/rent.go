package state

// AccountStorageOverhead is charged on top of every allocation.
const AccountStorageOverhead = 128

// Rent is the storage cost model. An account must hold at least
// MinimumBalance(space) lamports; the payer of a creation provides them.
type Rent struct {
	LamportsPerByteYear uint64
	ExemptionYears      uint64
}

// DefaultRent mirrors the usual 3480 lamports per byte-year over two years.
var DefaultRent = Rent{LamportsPerByteYear: 3480, ExemptionYears: 2}

// NoRent makes storage free, for hosts that account for it elsewhere.
var NoRent = Rent{}

// MinimumBalance is the rent-exempt balance for an allocation of space
// bytes.
func (r Rent) MinimumBalance(space uint64) uint64 {
	return (AccountStorageOverhead + space) * r.LamportsPerByteYear * r.ExemptionYears
}
