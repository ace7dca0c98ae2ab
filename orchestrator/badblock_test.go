package orchestrator_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/flashprog/faketransport"
	"github.com/mklimuk/flashprog/flashtype"
	"github.com/mklimuk/flashprog/nand"
	"github.com/mklimuk/flashprog/orchestrator"
)

func nandSpec() flashtype.ChipSpec {
	return flashtype.ChipSpec{
		Name:   "generic-nand",
		Family: flashtype.FamilyNand,
		Layout: flashtype.ChipLayout{PageSize: 2048, BlockSize: 2048 * 64, OOBSize: 64},
	}
}

func TestOrchestrator_ScanBadBlocks(t *testing.T) {
	fake := faketransport.NewNANDFlash(2048, 64, 64*4, 64)
	spec := nandSpec()
	spec.Capacity = flashtype.CapacityBytes(2048 * 64 * 4)
	eng := nand.New(fake, spec)
	o := orchestrator.New(eng)
	ctx := context.Background()

	require.NoError(t, o.MarkBadBlock(ctx, 2))

	table, err := o.ScanBadBlocks(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, table.Len())
	assert.True(t, table.IsBad(2))
	assert.False(t, table.IsBad(0))
	assert.False(t, table.IsBad(1))
	assert.False(t, table.IsBad(3))
}

func TestOrchestrator_ScanBadBlocks_UnsupportedEngine(t *testing.T) {
	spy := &statusSpy{}
	o := orchestrator.New(spy)

	_, err := o.ScanBadBlocks(context.Background(), nil)
	assert.ErrorIs(t, err, flashtype.ErrNotSupported)
}
