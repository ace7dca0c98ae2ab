package spieeprom_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/flashprog/faketransport"
	"github.com/mklimuk/flashprog/flashtype"
	"github.com/mklimuk/flashprog/spieeprom"
)

func fakeAnd2ByteSpec() (*faketransport.SPIFlash, flashtype.ChipSpec) {
	opcodes := faketransport.OpcodeTable{
		WriteEnable:  0x06,
		ReadStatus:   0x05,
		Read:         0x03,
		Program:      0x02,
		AddressBytes: 2,
	}
	spec := flashtype.ChipSpec{
		Name:     "25AA512-like",
		Family:   flashtype.FamilySPIEeprom,
		Capacity: flashtype.CapacityKilobytes(64),
		Layout:   flashtype.ChipLayout{PageSize: 128},
	}
	return faketransport.NewSPIFlash(64*1024, opcodes), spec
}

func TestEngine_WriteThenRead(t *testing.T) {
	fake, spec := fakeAnd2ByteSpec()
	eng := spieeprom.New(fake, spec)
	ctx := context.Background()

	data := []byte("eeprom payload")
	require.NoError(t, eng.Write(ctx, 0x0200, data))

	out := make([]byte, len(data))
	require.NoError(t, eng.Read(ctx, 0x0200, out))
	assert.Equal(t, data, out)
}

func TestEngine_WriteSplitsOnPageBoundary(t *testing.T) {
	fake, spec := fakeAnd2ByteSpec()
	eng := spieeprom.New(fake, spec)
	ctx := context.Background()

	data := make([]byte, 150)
	for i := range data {
		data[i] = byte(i)
	}
	require.NoError(t, eng.Write(ctx, 100, data))
	assert.Equal(t, 2, fake.WriteCalls)

	out := make([]byte, 150)
	require.NoError(t, eng.Read(ctx, 100, out))
	assert.Equal(t, data, out)
}

func TestEngine_EraseFillsFF(t *testing.T) {
	fake, spec := fakeAnd2ByteSpec()
	eng := spieeprom.New(fake, spec)
	ctx := context.Background()

	require.NoError(t, eng.Write(ctx, 0, []byte{1, 2, 3}))
	require.NoError(t, eng.Erase(ctx, 0, 3))

	out := make([]byte, 3)
	require.NoError(t, eng.Read(ctx, 0, out))
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF}, out)
}
