package faketransport

import (
	"context"

	"github.com/mklimuk/flashprog/bridge"
	"github.com/mklimuk/flashprog/flashtype"
)

var _ bridge.Bridge = (*I2CMemory)(nil)

// I2CMemory emulates a 24Cxx-style I2C EEPROM: the first WordAddrLen
// bytes of any I2CWrite set the address pointer (and, if more bytes
// follow, are treated as a data burst written starting there); a
// subsequent I2CRead returns bytes starting at the pointer and
// auto-increments it, matching the real chip's sequential-read mode.
type I2CMemory struct {
	Mem         []byte
	WordAddrLen int

	pointer uint32
}

func NewI2CMemory(size, wordAddrLen int) *I2CMemory {
	mem := make([]byte, size)
	for i := range mem {
		mem[i] = 0xFF
	}
	return &I2CMemory{Mem: mem, WordAddrLen: wordAddrLen}
}

func (m *I2CMemory) Name() string                   { return "fake-i2c-memory" }
func (m *I2CMemory) Open(ctx context.Context) error  { return nil }
func (m *I2CMemory) Close(ctx context.Context) error { return nil }

func (m *I2CMemory) SetCS(ctx context.Context, active bool) error                            { return nil }
func (m *I2CMemory) SPITransfer(ctx context.Context, tx, rx []byte) error                     { return nil }
func (m *I2CMemory) SPIWrite(ctx context.Context, data []byte) error                          { return nil }
func (m *I2CMemory) SPIRead(ctx context.Context, n int) ([]byte, error)                       { return make([]byte, n), nil }
func (m *I2CMemory) SPITransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
func (m *I2CMemory) GPIOSet(ctx context.Context, pin int, level bool) error { return nil }
func (m *I2CMemory) GPIOGet(ctx context.Context, pin int) (bool, error)     { return false, nil }
func (m *I2CMemory) SetSpeed(ctx context.Context, speed flashtype.SPISpeed) error {
	return nil
}
func (m *I2CMemory) ReadJEDECID(ctx context.Context) (flashtype.JedecID, error) {
	return flashtype.JedecID{}, nil
}

func (m *I2CMemory) I2CWrite(ctx context.Context, addr byte, data []byte) error {
	n := m.WordAddrLen
	if n == 0 {
		n = 1
	}
	if len(data) < n {
		return nil
	}
	var ptr uint32
	for i := 0; i < n; i++ {
		ptr = ptr<<8 | uint32(data[i])
	}
	m.pointer = ptr
	for i, b := range data[n:] {
		if int(m.pointer)+i < len(m.Mem) {
			m.Mem[int(m.pointer)+i] = b
		}
	}
	return nil
}

func (m *I2CMemory) I2CRead(ctx context.Context, addr byte, buf []byte) error {
	for i := range buf {
		if int(m.pointer)+i < len(m.Mem) {
			buf[i] = m.Mem[int(m.pointer)+i]
		}
	}
	m.pointer += uint32(len(buf))
	return nil
}
