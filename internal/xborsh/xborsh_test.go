package xborsh

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTripPrimitives(t *testing.T) {
	w := NewWriter()
	w.WriteU8(7)
	w.WriteBool(true)
	w.WriteU16(1000)
	w.WriteU32(70000)
	w.WriteU64(1 << 40)
	w.WriteBytes([]byte("hello"))
	w.WriteFixed([]byte{1, 2, 3, 4})

	r := NewReader(w.Bytes())
	u8, err := r.ReadU8()
	require.NoError(t, err)
	require.EqualValues(t, 7, u8)

	b, err := r.ReadBool()
	require.NoError(t, err)
	require.True(t, b)

	u16, err := r.ReadU16()
	require.NoError(t, err)
	require.EqualValues(t, 1000, u16)

	u32, err := r.ReadU32()
	require.NoError(t, err)
	require.EqualValues(t, 70000, u32)

	u64, err := r.ReadU64()
	require.NoError(t, err)
	require.EqualValues(t, 1<<40, u64)

	bs, err := r.ReadBytes()
	require.NoError(t, err)
	require.Equal(t, "hello", string(bs))

	fixed, err := r.ReadFixed(4)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4}, fixed)

	require.True(t, r.Done())
}

func TestReadShortBuffer(t *testing.T) {
	r := NewReader([]byte{1, 2})
	_, err := r.ReadU32()
	require.ErrorIs(t, err, ErrShortBuffer)
}
