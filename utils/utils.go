package utils

import (
	"crypto/sha256"
	"encoding/binary"

	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/util/encoding"
	"go.dedis.ch/kyber/v3/util/key"
	"go.dedis.ch/protobuf"
	"golang.org/x/xerrors"
)

// HashEncoded returns the SHA-256 digest of the protobuf encoding of s.
func HashEncoded(s interface{}) ([]byte, error) {
	data, err := protobuf.Encode(s)
	if err != nil {
		return nil, xerrors.Errorf("couldn't encode: %v", err)
	}
	h := sha256.New()
	h.Write(data)
	return h.Sum(nil), nil
}

// Uint64ToBytes returns the 8-byte little-endian form of val.
func Uint64ToBytes(val uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, val)
	return buf
}

// BytesToUint64 parses an 8-byte little-endian value.
func BytesToUint64(buf []byte) (uint64, error) {
	if len(buf) != 8 {
		return 0, xerrors.Errorf("expected 8 bytes, got %d", len(buf))
	}
	return binary.LittleEndian.Uint64(buf), nil
}

// KeyPairFromHex rebuilds a key pair from its hex-encoded private scalar.
func KeyPairFromHex(private string) (*key.Pair, error) {
	sk, err := encoding.StringHexToScalar(cothority.Suite, private)
	if err != nil {
		return nil, xerrors.Errorf("couldn't parse private key: %v", err)
	}
	return &key.Pair{
		Private: sk,
		Public:  cothority.Suite.Point().Mul(sk, nil),
	}, nil
}

// ScalarToHex is the inverse of KeyPairFromHex.
func ScalarToHex(sk kyber.Scalar) (string, error) {
	return encoding.ScalarToStringHex(cothority.Suite, sk)
}
