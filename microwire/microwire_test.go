package microwire_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/flashprog/flashtype"
	"github.com/mklimuk/flashprog/microwire"
)

// fakePins emulates a 93Cxx EEPROM behind four bit-banged GPIO lines.
// It decodes the same start-bit + 2-bit-opcode + address framing the
// real chip expects, rather than stubbing whole transactions, so the
// tests exercise the engine's actual bit sequencing.
type fakePins struct {
	mem         []byte
	addressBits uint

	cs, clk, dout bool
	bits          []bool // collected since CS went active, reset on CS rising edge

	writesEnabled bool

	serving     bool // decoded a READ header; now shifting response bits out on din
	servingByte byte
	servingPos  uint

	readyCountdown int
}

func newFakePins(size int, addressBits uint) *fakePins {
	mem := make([]byte, size)
	for i := range mem {
		mem[i] = 0xFF
	}
	return &fakePins{mem: mem, addressBits: addressBits}
}

const (
	pinCS = iota
	pinCLK
	pinDOUT
	pinDIN
)

func (f *fakePins) GPIOSet(ctx context.Context, pin int, level bool) error {
	switch pin {
	case pinCS:
		if level && !f.cs {
			f.bits = nil
			f.serving = false
		}
		f.cs = level
	case pinCLK:
		if level && !f.clk && f.cs && !f.serving {
			f.bits = append(f.bits, f.dout)
			f.decode()
		}
		if !level && f.clk && f.cs && f.serving {
			f.servingPos++
		}
		f.clk = level
	case pinDOUT:
		f.dout = level
	}
	return nil
}

func (f *fakePins) GPIOGet(ctx context.Context, pin int) (bool, error) {
	if pin != pinDIN {
		return false, nil
	}
	if f.serving {
		// The falling clock edge that ends the last address bit already
		// moves servingPos to 1, so position p presents data bit 8-p.
		if f.servingPos < 1 || f.servingPos > 8 {
			return false, nil
		}
		bit := (f.servingByte>>(8-f.servingPos))&1 != 0
		return bit, nil
	}
	if f.readyCountdown > 0 {
		f.readyCountdown--
		return false, nil
	}
	return true, nil
}

func (f *fakePins) bitsValue(from, count int) uint32 {
	var v uint32
	for i := 0; i < count; i++ {
		v <<= 1
		if f.bits[from+i] {
			v |= 1
		}
	}
	return v
}

// decode runs after every collected bit while not yet serving a read,
// firing once enough bits have accumulated for a full header (plus
// trailing data byte for writes).
func (f *fakePins) decode() {
	if len(f.bits) < 1 || !f.bits[0] {
		return
	}
	headerLen := 1 + 2 + int(f.addressBits)
	switch {
	case len(f.bits) == headerLen:
		op := f.bitsValue(1, 2)
		addr := f.bitsValue(3, int(f.addressBits))
		switch op {
		case 0b10: // READ
			f.serving = true
			f.servingPos = 0
			if int(addr) < len(f.mem) {
				f.servingByte = f.mem[addr]
			}
		case 0b00: // EWEN/EWDS
			top := addr >> (f.addressBits - 2)
			f.writesEnabled = top == 0b11
		}
	case len(f.bits) == headerLen+8:
		addr := f.bitsValue(3, int(f.addressBits))
		if f.writesEnabled && int(addr) < len(f.mem) {
			f.mem[addr] = byte(f.bitsValue(3+int(f.addressBits), 8))
		}
		f.readyCountdown = 2
	}
}

func testSpec(capacityBytes uint32) flashtype.ChipSpec {
	return flashtype.ChipSpec{
		Family:   flashtype.FamilyMicrowireEeprom,
		Capacity: flashtype.CapacityBytes(capacityBytes),
		Layout:   flashtype.ChipLayout{PageSize: 1},
	}
}

func TestEngine_WriteThenRead_93C46(t *testing.T) {
	fake := newFakePins(128, 7)
	eng := microwire.New(fake, testSpec(128))
	ctx := context.Background()

	data := []byte{0x11, 0x22, 0x33, 0x44}
	require.NoError(t, eng.Write(ctx, 10, data))

	out := make([]byte, len(data))
	require.NoError(t, eng.Read(ctx, 10, out))
	assert.Equal(t, data, out)
}

func TestEngine_WriteThenRead_93C86(t *testing.T) {
	fake := newFakePins(2048, 11)
	eng := microwire.New(fake, testSpec(2048))
	ctx := context.Background()

	data := []byte("microwire")
	require.NoError(t, eng.Write(ctx, 500, data))

	out := make([]byte, len(data))
	require.NoError(t, eng.Read(ctx, 500, out))
	assert.Equal(t, data, out)
}

func TestEngine_Erase(t *testing.T) {
	fake := newFakePins(128, 7)
	eng := microwire.New(fake, testSpec(128))
	ctx := context.Background()

	require.NoError(t, eng.Write(ctx, 0, []byte{1, 2, 3}))
	require.NoError(t, eng.Erase(ctx, 0, 3))

	out := make([]byte, 3)
	require.NoError(t, eng.Read(ctx, 0, out))
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF}, out)
}
