// Package microwire implements the Microwire protocol used by 93Cxx
// series EEPROMs. Unlike the SPI and I2C families, Microwire has no
// dedicated host-adapter peripheral: every bit of CS/CLK/DOUT/DIN is
// toggled by hand, so the engine drives four individually-addressed
// GPIO lines instead of an SPI or I2C transaction.
package microwire

import (
	"context"
	"fmt"

	"github.com/mklimuk/flashprog/flashtype"
)

// PinDriver is the subset of bridge.Bridge (or bridge.GPIOExpander)
// microwire needs: four bits it can drive and read back one at a time.
type PinDriver interface {
	GPIOSet(ctx context.Context, pin int, level bool) error
	GPIOGet(ctx context.Context, pin int) (bool, error)
}

// Pin assignment for the CS/CLK/DOUT/DIN lines. Fixed rather than
// configurable: every programmer that supports Microwire wires these
// four lines to the same logical pin numbers on its PinDriver.
const (
	pinCS = iota
	pinCLK
	pinDOUT
	pinDIN
)

// 3-bit opcodes; the leading 1 is sent by start() as the Microwire
// start bit, so sendBits only needs to push the remaining 2 bits.
const (
	opRead = 0b10
	opWrite = 0b01
	opEwen = 0b00 // EWEN/EWDS/ERAL/WRAL all share this 2-bit prefix
)

const readyPollIterations = 1000

// Engine drives one 93Cxx-family Microwire EEPROM.
type Engine struct {
	pins        PinDriver
	spec        flashtype.ChipSpec
	addressBits uint
}

// New derives the address width from capacity, matching the fixed
// 93C06/46/56/66/76/86 address-bit table.
func New(pins PinDriver, spec flashtype.ChipSpec) *Engine {
	addressBits := uint(9)
	switch spec.Capacity.Bytes() {
	case 32, 128:
		addressBits = 7
	case 256, 512:
		addressBits = 9
	case 1024, 2048:
		addressBits = 11
	}
	return &Engine{pins: pins, spec: spec, addressBits: addressBits}
}

func (e *Engine) Spec() flashtype.ChipSpec { return e.spec }

func (e *Engine) pulseClock(ctx context.Context) error {
	if err := e.pins.GPIOSet(ctx, pinCLK, true); err != nil {
		return err
	}
	return e.pins.GPIOSet(ctx, pinCLK, false)
}

func (e *Engine) sendBit(ctx context.Context, bit bool) error {
	if err := e.pins.GPIOSet(ctx, pinDOUT, bit); err != nil {
		return err
	}
	return e.pulseClock(ctx)
}

func (e *Engine) readBit(ctx context.Context) (bool, error) {
	if err := e.pins.GPIOSet(ctx, pinCLK, true); err != nil {
		return false, err
	}
	bit, err := e.pins.GPIOGet(ctx, pinDIN)
	if err != nil {
		return false, err
	}
	if err := e.pins.GPIOSet(ctx, pinCLK, false); err != nil {
		return false, err
	}
	return bit, nil
}

// sendBits clocks out the low count bits of value, MSB first.
func (e *Engine) sendBits(ctx context.Context, value uint32, count uint) error {
	for i := int(count) - 1; i >= 0; i-- {
		if err := e.sendBit(ctx, (value>>uint(i))&1 != 0); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) readBits(ctx context.Context, count uint) (uint32, error) {
	var value uint32
	for i := uint(0); i < count; i++ {
		bit, err := e.readBit(ctx)
		if err != nil {
			return 0, err
		}
		value <<= 1
		if bit {
			value |= 1
		}
	}
	return value, nil
}

// start asserts CS and clocks the mandatory Microwire start bit.
func (e *Engine) start(ctx context.Context) error {
	if err := e.pins.GPIOSet(ctx, pinCS, true); err != nil {
		return err
	}
	return e.sendBit(ctx, true)
}

func (e *Engine) stop(ctx context.Context) error {
	if err := e.pins.GPIOSet(ctx, pinCS, false); err != nil {
		return err
	}
	return e.pins.GPIOSet(ctx, pinDOUT, false)
}

// writeEnable issues EWEN (enable) or EWDS (disable). Both share the
// 100b opcode prefix and are distinguished only by the top two address
// bits, per the 93Cxx instruction set.
func (e *Engine) writeEnable(ctx context.Context, enable bool) error {
	if err := e.start(ctx); err != nil {
		return err
	}
	if err := e.sendBits(ctx, opEwen, 2); err != nil {
		return err
	}
	var addr uint32
	if enable {
		addr = 0b11 << (e.addressBits - 2)
	}
	if err := e.sendBits(ctx, addr, e.addressBits); err != nil {
		return err
	}
	return e.stop(ctx)
}

// waitReady holds CS asserted and polls DIN for the ready pulse the
// chip drives high once its internal write cycle completes, bounded
// to a fixed iteration count rather than a wall-clock timeout since
// the loop body itself is the only available clock source here.
func (e *Engine) waitReady(ctx context.Context) error {
	if err := e.pins.GPIOSet(ctx, pinCS, true); err != nil {
		return err
	}
	ready := false
	for i := 0; i < readyPollIterations; i++ {
		bit, err := e.pins.GPIOGet(ctx, pinDIN)
		if err != nil {
			return err
		}
		if bit {
			ready = true
			break
		}
	}
	if err := e.stop(ctx); err != nil {
		return err
	}
	if !ready {
		return fmt.Errorf("microwire write cycle: %w", flashtype.ErrTimeout)
	}
	return nil
}

// Read clocks out len(buffer) bytes one at a time, each a full
// READ transaction, starting at address.
func (e *Engine) Read(ctx context.Context, address flashtype.Address, buffer []byte) error {
	addr := uint32(address)
	for i := range buffer {
		if err := e.start(ctx); err != nil {
			return err
		}
		if err := e.sendBits(ctx, opRead, 2); err != nil {
			return err
		}
		if err := e.sendBits(ctx, addr+uint32(i), e.addressBits); err != nil {
			return err
		}
		b, err := e.readBits(ctx, 8)
		if err != nil {
			return err
		}
		buffer[i] = byte(b)
		if err := e.stop(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Write enables writes, clocks out one WRITE transaction per byte
// waiting for the internal write cycle after each one, then disables
// writes again. 93Cxx parts are byte-writable: there is no page size.
func (e *Engine) Write(ctx context.Context, address flashtype.Address, data []byte) error {
	if err := e.writeEnable(ctx, true); err != nil {
		return err
	}
	addr := uint32(address)
	for i, b := range data {
		if err := e.start(ctx); err != nil {
			return err
		}
		if err := e.sendBits(ctx, opWrite, 2); err != nil {
			return err
		}
		if err := e.sendBits(ctx, addr+uint32(i), e.addressBits); err != nil {
			return err
		}
		if err := e.sendBits(ctx, uint32(b), 8); err != nil {
			return err
		}
		if err := e.stop(ctx); err != nil {
			return err
		}
		if err := e.waitReady(ctx); err != nil {
			return err
		}
	}
	return e.writeEnable(ctx, false)
}

// Erase fills length bytes starting at address with 0xFF; 93Cxx has a
// bulk ERAL opcode but filling through Write keeps the same per-byte
// ready-wait semantics other engines' Erase methods provide.
func (e *Engine) Erase(ctx context.Context, address flashtype.Address, length uint32) error {
	fill := make([]byte, length)
	for i := range fill {
		fill[i] = 0xFF
	}
	return e.Write(ctx, address, fill)
}

// GetStatus is unsupported: 93Cxx parts have no status register, only
// the ready/busy line polled by waitReady.
func (e *Engine) GetStatus(ctx context.Context) ([]byte, error) {
	return nil, fmt.Errorf("microwire eeprom has no status register: %w", flashtype.ErrNotSupported)
}

// SetStatus is unsupported: 93Cxx parts have no status register.
func (e *Engine) SetStatus(ctx context.Context, status []byte) error {
	return fmt.Errorf("microwire eeprom has no status register: %w", flashtype.ErrNotSupported)
}
