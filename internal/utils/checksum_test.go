package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLookup3_KnownVectors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  uint32
	}{
		{"empty", "", 0xdeadbeef},
		{"four score", "Four score and seven years ago", 0x17770551},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Lookup3([]byte(tt.input)))
		})
	}
}

func TestLookup3_AllTailLengths(t *testing.T) {
	data := make([]byte, 40)
	for i := range data {
		data[i] = byte(i * 7)
	}

	seen := make(map[uint32]int)
	for n := 0; n <= len(data); n++ {
		sum := Lookup3(data[:n])
		_, dup := seen[sum]
		require.False(t, dup, "length %d collides with length %d", n, seen[sum])
		seen[sum] = n
	}
}

func TestVerifyLookup3(t *testing.T) {
	block := []byte("OHDR\x02\x00payload")
	sum := Lookup3(block)
	sealed := make([]byte, len(block)+4)
	copy(sealed, block)
	EncodeUint(sealed[len(block):], uint64(sum), 4)

	require.NoError(t, VerifyLookup3(sealed, "object header"))

	sealed[5] ^= 0xFF
	err := VerifyLookup3(sealed, "object header")
	require.ErrorIs(t, err, ErrCorrupt)
	require.Contains(t, err.Error(), "object header")

	require.ErrorIs(t, VerifyLookup3([]byte{1, 2}, "tiny"), ErrCorrupt)
}
