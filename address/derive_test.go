package address

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/kyber/v3/util/key"
)

var testProgram = MustFromString("F3q1icFeEeJcV11jadU3DnFvmNPUqBxg2cpuSjxGMfGQ")

func TestFindProgramAddress_Deterministic(t *testing.T) {
	seeds := [][]byte{[]byte("token_lottery")}
	a1, b1, err := FindProgramAddress(seeds, testProgram)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		a2, b2, err := FindProgramAddress(seeds, testProgram)
		require.NoError(t, err)
		require.Equal(t, a1, a2)
		require.Equal(t, b1, b2)
	}
	require.False(t, IsOnCurve(a1[:]))

	// The bump reproduces the address without probing.
	a3, err := CreateProgramAddress([][]byte{[]byte("token_lottery"), {b1}}, testProgram)
	require.NoError(t, err)
	require.Equal(t, a1, a3)
}

func TestFindProgramAddress_Distinct(t *testing.T) {
	a1, _, err := FindProgramAddress([][]byte{[]byte("collection_mint")}, testProgram)
	require.NoError(t, err)
	a2, _, err := FindProgramAddress([][]byte{[]byte("collection_associated_token")}, testProgram)
	require.NoError(t, err)
	require.NotEqual(t, a1, a2)

	other := MustFromString("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	a3, _, err := FindProgramAddress([][]byte{[]byte("collection_mint")}, other)
	require.NoError(t, err)
	require.NotEqual(t, a1, a3)
}

func TestFindProgramAddress_FirstBump(t *testing.T) {
	seeds := [][]byte{[]byte("metadata"), testProgram[:]}
	_, bump, err := FindProgramAddress(seeds, testProgram)
	require.NoError(t, err)
	// Every higher bump must be on the curve.
	for b := 255; b > int(bump); b-- {
		_, err := CreateProgramAddress(append(seeds, []byte{uint8(b)}), testProgram)
		require.Equal(t, ErrInvalidSeeds, err)
	}
}

func TestFindProgramAddress_Exhausted(t *testing.T) {
	always := func([]byte) bool { return true }
	_, _, err := findProgramAddress([][]byte{[]byte("x")}, testProgram, always)
	require.Equal(t, ErrDerivationExhausted, err)
}

func TestCreateProgramAddress_Limits(t *testing.T) {
	long := bytes.Repeat([]byte{1}, MaxSeedLength+1)
	_, err := CreateProgramAddress([][]byte{long}, testProgram)
	require.Error(t, err)
	require.True(t, errorsIs(err, ErrMaxSeedLength))

	many := make([][]byte, MaxSeeds+1)
	for i := range many {
		many[i] = []byte{uint8(i)}
	}
	_, err = CreateProgramAddress(many, testProgram)
	require.Equal(t, ErrMaxSeeds, err)

	_, _, err = FindProgramAddress(many[:MaxSeeds], testProgram)
	require.Equal(t, ErrMaxSeeds, err)
}

func TestIsOnCurve(t *testing.T) {
	kp := key.NewKeyPair(cothority.Suite)
	buf, err := kp.Public.MarshalBinary()
	require.NoError(t, err)
	require.True(t, IsOnCurve(buf))
}
