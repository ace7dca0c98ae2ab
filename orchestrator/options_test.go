package orchestrator_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/flashprog/faketransport"
	"github.com/mklimuk/flashprog/flashtype"
	"github.com/mklimuk/flashprog/nand"
	"github.com/mklimuk/flashprog/nor"
	"github.com/mklimuk/flashprog/orchestrator"
)

func TestOrchestrator_Read_RejectsOutOfRange(t *testing.T) {
	fake := faketransport.NewSPIFlash(128*1024, norOpcodes())
	o := orchestrator.New(nor.New(fake, norSpec()))
	ctx := context.Background()

	spec := norSpec()
	_, err := o.Read(ctx, flashtype.ReadRequest{Address: flashtype.Address(spec.Capacity.Bytes() - 4), Length: 16}, nil)
	assert.ErrorIs(t, err, flashtype.ErrInvalidParameter)
}

func TestOrchestrator_Write_RejectsOutOfRange(t *testing.T) {
	fake := faketransport.NewSPIFlash(128*1024, norOpcodes())
	o := orchestrator.New(nor.New(fake, norSpec()))
	ctx := context.Background()

	spec := norSpec()
	req := flashtype.WriteRequest{Address: flashtype.Address(spec.Capacity.Bytes() - 1), Data: []byte{1, 2, 3, 4}}
	err := o.Write(ctx, req, nil)
	assert.ErrorIs(t, err, flashtype.ErrInvalidParameter)
}

func TestOrchestrator_Erase_RejectsOutOfRange(t *testing.T) {
	fake := faketransport.NewSPIFlash(128*1024, norOpcodes())
	o := orchestrator.New(nor.New(fake, norSpec()))
	ctx := context.Background()

	spec := norSpec()
	err := o.Erase(ctx, flashtype.EraseRequest{Address: flashtype.Address(spec.Capacity.Bytes()), Length: 1}, nil)
	assert.ErrorIs(t, err, flashtype.ErrInvalidParameter)
}

func TestOrchestrator_Read_AppliesOOBMode(t *testing.T) {
	fake := faketransport.NewNANDFlash(2048, 64, 64, 64)
	spec := nandSpec()
	spec.Capacity = flashtype.CapacityBytes(2048 * 64)
	eng := nand.New(fake, spec)
	o := orchestrator.New(eng)
	ctx := context.Background()

	fake.OOB[0][1] = 0xAB
	out, err := o.Read(ctx, flashtype.ReadRequest{
		Address: 0,
		Length:  64,
		Options: flashtype.Options{OOBMode: flashtype.OOBOnly, UseECC: true},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, byte(0xAB), out[1])
}

func TestOrchestrator_Read_OOBUnsupportedEngine(t *testing.T) {
	fake := faketransport.NewSPIFlash(128*1024, norOpcodes())
	o := orchestrator.New(nor.New(fake, norSpec()))
	ctx := context.Background()

	_, err := o.Read(ctx, flashtype.ReadRequest{Address: 0, Length: 16, Options: flashtype.Options{OOBMode: flashtype.OOBOnly}}, nil)
	assert.ErrorIs(t, err, flashtype.ErrNotSupported)
}

func TestOrchestrator_Write_BadBlockStrategyFail(t *testing.T) {
	fake := faketransport.NewNANDFlash(2048, 64, 64*4, 64)
	spec := nandSpec()
	spec.Capacity = flashtype.CapacityBytes(2048 * 64 * 4)
	eng := nand.New(fake, spec)
	o := orchestrator.New(eng)
	ctx := context.Background()

	require.NoError(t, o.MarkBadBlock(ctx, 0))

	data := make([]byte, 2048)
	err := o.Write(ctx, flashtype.WriteRequest{
		Address: 0,
		Data:    data,
		Options: flashtype.Options{BadBlockStrategy: flashtype.StrategyFail},
	}, nil)
	var bbErr *flashtype.BadBlockError
	require.ErrorAs(t, err, &bbErr)
	assert.Equal(t, uint32(0), bbErr.Block)
}

func TestOrchestrator_Write_BadBlockStrategySkip(t *testing.T) {
	fake := faketransport.NewNANDFlash(2048, 64, 64*4, 64)
	spec := nandSpec()
	spec.Capacity = flashtype.CapacityBytes(2048 * 64 * 4)
	eng := nand.New(fake, spec)
	o := orchestrator.New(eng)
	ctx := context.Background()

	require.NoError(t, o.MarkBadBlock(ctx, 0))

	data := make([]byte, 2048)
	for i := range data {
		data[i] = 0x42
	}
	err := o.Write(ctx, flashtype.WriteRequest{
		Address: 0,
		Data:    data,
		Options: flashtype.Options{BadBlockStrategy: flashtype.StrategySkip},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, byte(0xFF), fake.Pages[0][0], "skipped block must not be written")
}
