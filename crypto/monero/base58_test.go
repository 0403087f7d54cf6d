package monero

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBase58EncodeDecodeRoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		{0x00},
		bytes.Repeat([]byte{0xFF}, 8),
		bytes.Repeat([]byte{0x01, 0x02, 0x03}, 10),
		bytes.Repeat([]byte{0xAB}, 69), // a full address payload's length
	}

	for _, c := range cases {
		encoded := base58Encode(c)
		decoded, err := base58Decode(encoded)
		require.NoError(t, err)
		require.Equal(t, c, decoded)
	}
}

func TestBase58DecodeRejectsInvalidCharacter(t *testing.T) {
	_, err := base58Decode("0OIl")
	require.Error(t, err)
}
