package nor_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/flashprog/faketransport"
	"github.com/mklimuk/flashprog/flashtype"
	"github.com/mklimuk/flashprog/nor"
)

func opcodes() faketransport.OpcodeTable {
	return faketransport.OpcodeTable{
		WriteEnable: 0x06,
		ReadStatus:  0x05,
		Read:        0x03,
		Program:     0x02,
		Erase4K:     0x20,
		Erase64K:    0xD8,
		ChipErase:   0xC7,
	}
}

func testSpec() flashtype.ChipSpec {
	return flashtype.ChipSpec{
		Name:   "generic-nor",
		Family: flashtype.FamilyNor,
		Layout: flashtype.ChipLayout{PageSize: 256, BlockSize: 64 * 1024},
	}
}

func TestEngine_WriteThenRead(t *testing.T) {
	fake := faketransport.NewSPIFlash(1<<20, opcodes())
	eng := nor.New(fake, testSpec())
	ctx := context.Background()

	data := []byte("hello flash world")
	require.NoError(t, eng.Write(ctx, 0x1000, data))
	assert.True(t, fake.WriteEnabled)

	out := make([]byte, len(data))
	require.NoError(t, eng.Read(ctx, 0x1000, out))
	assert.Equal(t, data, out)
}

func TestEngine_WriteAcrossPageBoundary(t *testing.T) {
	fake := faketransport.NewSPIFlash(1<<20, opcodes())
	eng := nor.New(fake, testSpec())
	ctx := context.Background()

	data := make([]byte, 300)
	for i := range data {
		data[i] = byte(i)
	}
	// Start 10 bytes before a page boundary, forcing a split write.
	require.NoError(t, eng.Write(ctx, 246, data))
	assert.Equal(t, 3, fake.WriteCalls)

	out := make([]byte, 300)
	require.NoError(t, eng.Read(ctx, 246, out))
	assert.Equal(t, data, out)
}

func TestEngine_EraseSectorFillsFF(t *testing.T) {
	fake := faketransport.NewSPIFlash(1<<20, opcodes())
	eng := nor.New(fake, testSpec())
	ctx := context.Background()

	require.NoError(t, eng.Write(ctx, 0, []byte{1, 2, 3, 4}))
	require.NoError(t, eng.EraseSector(ctx, 0))

	out := make([]byte, 4)
	require.NoError(t, eng.Read(ctx, 0, out))
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, out)
}

func TestEngine_ChipErase(t *testing.T) {
	fake := faketransport.NewSPIFlash(4096, opcodes())
	eng := nor.New(fake, testSpec())
	ctx := context.Background()

	require.NoError(t, eng.Write(ctx, 10, []byte{0xAA}))
	require.NoError(t, eng.ChipErase(ctx))

	for _, b := range fake.Mem {
		require.Equal(t, byte(0xFF), b)
	}
}
