package orchestrator_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/flashprog/faketransport"
	"github.com/mklimuk/flashprog/flashtype"
	"github.com/mklimuk/flashprog/nor"
	"github.com/mklimuk/flashprog/orchestrator"
)

func norOpcodes() faketransport.OpcodeTable {
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

func norSpec() flashtype.ChipSpec {
	return flashtype.ChipSpec{
		Name:     "generic-nor",
		Family:   flashtype.FamilyNor,
		Capacity: flashtype.CapacityKilobytes(128),
		Layout:   flashtype.ChipLayout{PageSize: 256, BlockSize: 65536},
	}
}

func TestOrchestrator_WriteThenRead(t *testing.T) {
	fake := faketransport.NewSPIFlash(128*1024, norOpcodes())
	o := orchestrator.New(nor.New(fake, norSpec()))
	ctx := context.Background()

	data := []byte("orchestrated flash programming")
	require.NoError(t, o.Write(ctx, flashtype.WriteRequest{Address: 0, Data: data}, nil))

	out, err := o.Read(ctx, flashtype.ReadRequest{Address: 0, Length: uint32(len(data))}, nil)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestOrchestrator_WriteWithVerify(t *testing.T) {
	fake := faketransport.NewSPIFlash(128*1024, norOpcodes())
	o := orchestrator.New(nor.New(fake, norSpec()))
	ctx := context.Background()

	data := []byte("verified write")
	req := flashtype.WriteRequest{Address: 0, Data: data, Options: flashtype.Options{Verify: true}}
	require.NoError(t, o.Write(ctx, req, nil))
}

func TestOrchestrator_Verify_DetectsMismatch(t *testing.T) {
	fake := faketransport.NewSPIFlash(128*1024, norOpcodes())
	o := orchestrator.New(nor.New(fake, norSpec()))
	ctx := context.Background()

	require.NoError(t, o.Write(ctx, flashtype.WriteRequest{Address: 0, Data: []byte{1, 2, 3, 4}}, nil))

	err := o.Verify(ctx, flashtype.VerifyRequest{Address: 0, Expected: []byte{1, 2, 9, 4}}, nil)
	require.Error(t, err)
	var mismatch *flashtype.VerificationFailedError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, flashtype.Address(2), mismatch.Address)
	assert.Equal(t, byte(9), mismatch.Expected)
	assert.Equal(t, byte(3), mismatch.Actual)
}

func TestOrchestrator_Erase(t *testing.T) {
	fake := faketransport.NewSPIFlash(128*1024, norOpcodes())
	o := orchestrator.New(nor.New(fake, norSpec()))
	ctx := context.Background()

	require.NoError(t, o.Write(ctx, flashtype.WriteRequest{Address: 0, Data: []byte{0xAB, 0xCD}}, nil))
	require.NoError(t, o.Erase(ctx, flashtype.EraseRequest{Address: 0, Length: 65536}, nil))

	out, err := o.Read(ctx, flashtype.ReadRequest{Address: 0, Length: 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xFF}, out)
}

func TestOrchestrator_Read_ReportsProgress(t *testing.T) {
	fake := faketransport.NewSPIFlash(128*1024, norOpcodes())
	o := orchestrator.New(nor.New(fake, norSpec()))
	ctx := context.Background()

	var updates []flashtype.Progress
	_, err := o.Read(ctx, flashtype.ReadRequest{Address: 0, Length: 16}, func(p flashtype.Progress) {
		updates = append(updates, p)
	})
	require.NoError(t, err)
	require.Len(t, updates, 2)
	assert.Equal(t, uint32(0), updates[0].Current)
	assert.Equal(t, uint32(16), updates[1].Current)
}
