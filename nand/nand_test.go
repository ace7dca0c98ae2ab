package nand_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/flashprog/faketransport"
	"github.com/mklimuk/flashprog/flashtype"
	"github.com/mklimuk/flashprog/nand"
)

func testSpec() flashtype.ChipSpec {
	return flashtype.ChipSpec{
		Name:   "generic-nand",
		Family: flashtype.FamilyNand,
		Layout: flashtype.ChipLayout{PageSize: 2048, BlockSize: 2048 * 64, OOBSize: 64},
	}
}

func TestEngine_WriteThenRead_PageAligned(t *testing.T) {
	fake := faketransport.NewNANDFlash(2048, 64, 64, 64)
	eng := nand.New(fake, testSpec())
	ctx := context.Background()

	data := make([]byte, 2048)
	for i := range data {
		data[i] = byte(i)
	}
	require.NoError(t, eng.Write(ctx, 0, data))

	out := make([]byte, 2048)
	require.NoError(t, eng.Read(ctx, 0, out))
	assert.Equal(t, data, out)
}

func TestEngine_WriteRejectsUnalignedAddress(t *testing.T) {
	fake := faketransport.NewNANDFlash(2048, 64, 64, 64)
	eng := nand.New(fake, testSpec())
	ctx := context.Background()

	err := eng.Write(ctx, 10, []byte{1, 2, 3})
	assert.Error(t, err)
}

func TestEngine_EraseRejectsUnalignedAddress(t *testing.T) {
	fake := faketransport.NewNANDFlash(2048, 64, 64, 64)
	eng := nand.New(fake, testSpec())
	ctx := context.Background()

	err := eng.Erase(ctx, 10, 2048*64)
	assert.Error(t, err)
}

func TestEngine_EraseBlock(t *testing.T) {
	fake := faketransport.NewNANDFlash(2048, 64, 64, 64)
	eng := nand.New(fake, testSpec())
	ctx := context.Background()

	data := make([]byte, 2048)
	for i := range data {
		data[i] = 0xAB
	}
	require.NoError(t, eng.Write(ctx, 0, data))
	require.NoError(t, eng.Erase(ctx, 0, 2048*64))

	out := make([]byte, 2048)
	require.NoError(t, eng.Read(ctx, 0, out))
	for _, b := range out {
		assert.Equal(t, byte(0xFF), b)
	}
}

func TestEngine_MarkAndDetectBadBlock(t *testing.T) {
	fake := faketransport.NewNANDFlash(2048, 64, 64, 64)
	eng := nand.New(fake, testSpec())
	ctx := context.Background()

	bad, err := eng.IsBadBlock(ctx, 0)
	require.NoError(t, err)
	assert.False(t, bad)

	require.NoError(t, eng.MarkBadBlock(ctx, 0))

	bad, err = eng.IsBadBlock(ctx, 0)
	require.NoError(t, err)
	assert.True(t, bad)
}

func TestEngine_SetECCPolicy(t *testing.T) {
	fake := faketransport.NewNANDFlash(2048, 64, 64, 64)
	eng := nand.New(fake, testSpec())
	ctx := context.Background()

	require.NoError(t, eng.SetECCPolicy(ctx, flashtype.EccDisabled))
	require.NoError(t, eng.SetECCPolicy(ctx, flashtype.EccSoftware))
}
