package i2ceeprom_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/flashprog/faketransport"
	"github.com/mklimuk/flashprog/flashtype"
	"github.com/mklimuk/flashprog/i2ceeprom"
)

func TestEngine_WriteThenRead_1ByteAddress(t *testing.T) {
	fake := faketransport.NewI2CMemory(256, 1)
	spec := flashtype.ChipSpec{
		Family:   flashtype.FamilyI2CEeprom,
		Capacity: flashtype.CapacityBytes(256),
		Layout:   flashtype.ChipLayout{PageSize: 8},
	}
	eng := i2ceeprom.New(fake, spec, 0x50)
	ctx := context.Background()

	data := []byte("abcdefghij")
	require.NoError(t, eng.Write(ctx, 10, data))

	out := make([]byte, len(data))
	require.NoError(t, eng.Read(ctx, 10, out))
	assert.Equal(t, data, out)
}

func TestEngine_WriteThenRead_2ByteAddress(t *testing.T) {
	fake := faketransport.NewI2CMemory(4096, 2)
	spec := flashtype.ChipSpec{
		Family:   flashtype.FamilyI2CEeprom,
		Capacity: flashtype.CapacityKilobytes(4),
		Layout:   flashtype.ChipLayout{PageSize: 32},
	}
	eng := i2ceeprom.New(fake, spec, 0x50)
	ctx := context.Background()

	data := make([]byte, 70)
	for i := range data {
		data[i] = byte(i * 3)
	}
	require.NoError(t, eng.Write(ctx, 1000, data))

	out := make([]byte, 70)
	require.NoError(t, eng.Read(ctx, 1000, out))
	assert.Equal(t, data, out)
}

func TestEngine_Erase(t *testing.T) {
	fake := faketransport.NewI2CMemory(256, 1)
	spec := flashtype.ChipSpec{Family: flashtype.FamilyI2CEeprom, Capacity: flashtype.CapacityBytes(256), Layout: flashtype.ChipLayout{PageSize: 8}}
	eng := i2ceeprom.New(fake, spec, 0x50)
	ctx := context.Background()

	require.NoError(t, eng.Write(ctx, 0, []byte{1, 2, 3}))
	require.NoError(t, eng.Erase(ctx, 0, 3))

	out := make([]byte, 3)
	require.NoError(t, eng.Read(ctx, 0, out))
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF}, out)
}
