// Package faketransport provides in-memory bridge.Bridge doubles used
// by engine and orchestrator tests, in the spirit of the domain's
// behavior-function-injected mocks: no real hardware required.
package faketransport

import (
	"context"

	"github.com/mklimuk/flashprog/bridge"
	"github.com/mklimuk/flashprog/flashtype"
)

var _ bridge.Bridge = (*SPIFlash)(nil)

// OpcodeTable describes, for a given chip family, which single-byte
// opcodes mean what. Callers building an engine test populate just the
// opcodes their engine actually issues.
type OpcodeTable struct {
	WriteEnable  byte
	WriteDisable byte
	ReadStatus   byte
	Read         byte
	Program      byte
	Erase4K      byte
	Erase64K     byte
	ChipErase    byte
	AddressBytes int // 0, 1, 2 or 3
}

// SPIFlash emulates a byte-addressable SPI flash/EEPROM/FRAM device
// well enough to exercise nor, spieeprom and fram against real opcode
// sequences without real hardware. Writes complete instantly (no WIP
// delay simulated) since these tests care about sequencing, not timing.
type SPIFlash struct {
	Mem          []byte
	Opcodes      OpcodeTable
	WriteEnabled bool
	JedecID      flashtype.JedecID

	csActive   bool
	opcode     byte
	addr       uint32
	addrBytes  int
	sawOpcode  bool
	WriteCalls int
	EraseCalls int
}

func NewSPIFlash(size int, opcodes OpcodeTable) *SPIFlash {
	mem := make([]byte, size)
	for i := range mem {
		mem[i] = 0xFF
	}
	return &SPIFlash{Mem: mem, Opcodes: opcodes}
}

func (f *SPIFlash) Name() string { return "fake-spi-flash" }

func (f *SPIFlash) Open(ctx context.Context) error  { return nil }
func (f *SPIFlash) Close(ctx context.Context) error { return nil }

func (f *SPIFlash) SetCS(ctx context.Context, active bool) error {
	f.csActive = active
	if active {
		f.sawOpcode = false
	}
	return nil
}

func (f *SPIFlash) SPITransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := f.SetCS(ctx, true); err != nil {
		return err
	}
	err := fn(ctx)
	if csErr := f.SetCS(ctx, false); csErr != nil && err == nil {
		err = csErr
	}
	return err
}

func (f *SPIFlash) SPIWrite(ctx context.Context, data []byte) error {
	return f.SPITransfer(ctx, data, nil)
}

func (f *SPIFlash) SPIRead(ctx context.Context, n int) ([]byte, error) {
	rx := make([]byte, n)
	if err := f.SPITransfer(ctx, make([]byte, n), rx); err != nil {
		return nil, err
	}
	return rx, nil
}

// SPITransfer is the one real method; SPIWrite/SPIRead both funnel
// through it so opcode state tracked across calls stays consistent.
func (f *SPIFlash) SPITransfer(ctx context.Context, tx []byte, rxOut []byte) error {
	rx := make([]byte, len(tx))

	if !f.sawOpcode {
		f.sawOpcode = true
		f.opcode = tx[0]
		rest := tx[1:]
		op := f.Opcodes
		if f.opcode == op.Read || f.opcode == op.Program {
			n := op.AddressBytes
			if n == 0 {
				n = 3
			}
			var addr uint32
			for i := 0; i < n && i < len(rest); i++ {
				addr = addr<<8 | uint32(rest[i])
			}
			f.addr = addr
			f.addrBytes = n
			if len(rest) > n {
				f.consumeDataBytes(rest[n:])
			}
		} else if f.opcode == op.WriteEnable {
			f.WriteEnabled = true
		} else if f.opcode == op.WriteDisable {
			f.WriteEnabled = false
		} else if f.opcode == op.ReadStatus {
			if len(rx) > 0 {
				rx[0] = 0 // always ready
			}
		} else if f.opcode == op.Erase4K || f.opcode == op.Erase64K || f.opcode == op.ChipErase {
			n := op.AddressBytes
			if n == 0 {
				n = 3
			}
			if f.opcode != op.ChipErase {
				var addr uint32
				for i := 0; i < n && i < len(rest); i++ {
					addr = addr<<8 | uint32(rest[i])
				}
				size := 4096
				if f.opcode == op.Erase64K {
					size = 65536
				}
				f.eraseRange(addr, size)
			} else {
				f.eraseRange(0, len(f.Mem))
			}
			f.EraseCalls++
		}
		if rxOut != nil {
			copy(rxOut, rx)
		}
		return nil
	}

	if f.opcode == f.Opcodes.Read {
		for i := range tx {
			if int(f.addr)+i < len(f.Mem) {
				rx[i] = f.Mem[int(f.addr)+i]
			}
		}
	} else if f.opcode == f.Opcodes.Program {
		f.consumeDataBytes(tx)
	} else if f.opcode == f.Opcodes.ReadStatus {
		// subsequent status byte reads, if any, also report ready
	}

	if rxOut != nil {
		copy(rxOut, rx)
	}
	return nil
}

func (f *SPIFlash) consumeDataBytes(data []byte) {
	f.WriteCalls++
	for i, b := range data {
		if int(f.addr)+i < len(f.Mem) {
			f.Mem[int(f.addr)+i] = b
		}
	}
}

func (f *SPIFlash) eraseRange(addr uint32, size int) {
	for i := 0; i < size; i++ {
		if int(addr)+i < len(f.Mem) {
			f.Mem[int(addr)+i] = 0xFF
		}
	}
}

func (f *SPIFlash) I2CWrite(ctx context.Context, addr byte, data []byte) error { return nil }
func (f *SPIFlash) I2CRead(ctx context.Context, addr byte, buf []byte) error   { return nil }
func (f *SPIFlash) GPIOSet(ctx context.Context, pin int, level bool) error     { return nil }
func (f *SPIFlash) GPIOGet(ctx context.Context, pin int) (bool, error)         { return false, nil }
func (f *SPIFlash) SetSpeed(ctx context.Context, speed flashtype.SPISpeed) error {
	return nil
}
func (f *SPIFlash) ReadJEDECID(ctx context.Context) (flashtype.JedecID, error) {
	return f.JedecID, nil
}
