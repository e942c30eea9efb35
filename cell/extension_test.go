package cell

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtensionsRoundTrip(t *testing.T) {
	require := require.New(t)

	cases := [][]Extension{
		nil,
		{},
		{{Type: 1, Data: nil}},
		{{Type: 1, Data: []byte("a")}, {Type: 2, Data: []byte("bcd")}},
	}
	for _, exts := range cases {
		encoded, err := encodeExtensions(exts)
		require.NoError(err)

		decoded, n, err := decodeExtensions(encoded)
		require.NoError(err)
		require.Equal(len(encoded), n)
		require.Equal(len(exts), len(decoded))
		for i := range exts {
			require.Equal(exts[i].Type, decoded[i].Type)
			require.Equal(len(exts[i].Data), len(decoded[i].Data))
		}
	}
}

func TestDecodeExtensionsTruncated(t *testing.T) {
	require := require.New(t)

	_, _, err := decodeExtensions(nil)
	require.ErrorIs(err, ErrTruncated)

	_, _, err = decodeExtensions([]byte{1, 5})
	require.ErrorIs(err, ErrTruncated)
}
