package fram_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/flashprog/faketransport"
	"github.com/mklimuk/flashprog/flashtype"
	"github.com/mklimuk/flashprog/fram"
)

func TestEngine_WriteThenRead_NoWaitNeeded(t *testing.T) {
	opcodes := faketransport.OpcodeTable{
		WriteEnable:  0x06,
		Read:         0x03,
		Program:      0x02,
		AddressBytes: 2,
	}
	fake := faketransport.NewSPIFlash(8192, opcodes)
	spec := flashtype.ChipSpec{Family: flashtype.FamilyFRAM, Capacity: flashtype.CapacityKilobytes(8)}
	eng := fram.New(fake, spec)
	ctx := context.Background()

	data := []byte("fram is fast")
	require.NoError(t, eng.Write(ctx, 0x100, data))

	out := make([]byte, len(data))
	require.NoError(t, eng.Read(ctx, 0x100, out))
	assert.Equal(t, data, out)
}

func TestEngine_EraseFillsFF(t *testing.T) {
	opcodes := faketransport.OpcodeTable{WriteEnable: 0x06, Read: 0x03, Program: 0x02, AddressBytes: 2}
	fake := faketransport.NewSPIFlash(8192, opcodes)
	spec := flashtype.ChipSpec{Family: flashtype.FamilyFRAM, Capacity: flashtype.CapacityKilobytes(8)}
	eng := fram.New(fake, spec)
	ctx := context.Background()

	require.NoError(t, eng.Write(ctx, 0, []byte{1, 2, 3, 4}))
	require.NoError(t, eng.Erase(ctx, 0, 4))

	out := make([]byte, 4)
	require.NoError(t, eng.Read(ctx, 0, out))
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, out)
}
