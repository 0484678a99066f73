package midi

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVarQuantityEncode(t *testing.T) {
	cases := []struct {
		value uint32
		want  []byte
	}{
		{0, []byte{0x00}},
		{0x40, []byte{0x40}},
		{0x7F, []byte{0x7F}},
		{0x80, []byte{0x81, 0x00}},
		{0x2000, []byte{0xC0, 0x00}},
		{0x3FFF, []byte{0xFF, 0x7F}},
		{0x4000, []byte{0x81, 0x80, 0x00}},
		{0x1FFFFF, []byte{0xFF, 0xFF, 0x7F}},
		{0x200000, []byte{0x81, 0x80, 0x80, 0x00}},
		{maxVarQuantity, []byte{0xFF, 0xFF, 0xFF, 0x7F}},
	}

	for _, c := range cases {
		got, err := appendVarQuantity(nil, c.value)
		require.NoError(t, err)
		assert.Equal(t, c.want, got, "value %#x", c.value)
	}
}

func TestVarQuantityRoundTrip(t *testing.T) {
	for v := uint32(0); v <= maxVarQuantity; v = v*3 + 7 {
		encoded, err := appendVarQuantity(nil, v)
		require.NoError(t, err)

		got, n, err := readVarQuantity(bytes.NewReader(encoded))
		require.NoError(t, err)
		assert.Equal(t, v, got)
		assert.Equal(t, len(encoded), n)
	}
}

func TestVarQuantityAfterFirstByte(t *testing.T) {
	// 0x4000 = 0x81 0x80 0x00 with the first byte already consumed.
	v, n, err := readVarQuantityAfter(0x81, bytes.NewReader([]byte{0x80, 0x00}))
	require.NoError(t, err)
	assert.Equal(t, uint32(0x4000), v)
	assert.Equal(t, 3, n)
}

func TestVarQuantityTooLarge(t *testing.T) {
	_, err := appendVarQuantity(nil, maxVarQuantity+1)
	assert.ErrorIs(t, err, ErrQuantityTooLarge)

	_, _, err = readVarQuantity(bytes.NewReader([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0x7F}))
	assert.ErrorIs(t, err, ErrQuantityTooLarge)
}

func TestVarQuantityTruncated(t *testing.T) {
	_, _, err := readVarQuantity(bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrTruncated)

	_, _, err = readVarQuantity(bytes.NewReader([]byte{0x81}))
	assert.ErrorIs(t, err, ErrTruncated)
}
