package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mklimuk/flashprog/flashtype"
)

// register identifies one byte of the MCP23017's register map.
type register int

const DefaultGPIOExpanderAddress = 0x21

const (
	iodirA register = iota
	gppuA
	gpioA
	iodirB
	gppuB
	gpioB
)

// bankAddr maps registers to their I2C address, indexed by the
// IOCON.BANK configuration bit (0 = registers interleaved A/B, 1 =
// registers grouped by bank). Only the registers GPIOExpander needs
// are carried; the rest of the MCP23017's map is not used here.
var bankAddr = []map[register]byte{
	{iodirA: 0x00, gppuA: 0x0C, gpioA: 0x12, iodirB: 0x01, gppuB: 0x0D, gpioB: 0x13},
	{iodirA: 0x00, gppuA: 0x06, gpioA: 0x09, iodirB: 0x10, gppuB: 0x16, gpioB: 0x19},
}

// GPIOExpander treats an MCP23017-class I2C GPIO expander as an
// auxiliary source of bit-banged pins, for programmers whose bridge
// doesn't expose enough native GPIO lines to drive Microwire's
// CS/CLK/DOUT/DIN framing directly.
type GPIOExpander struct {
	mx         sync.Mutex
	bridge     Bridge
	bank       int
	address    byte
	retryLimit int
}

func NewGPIOExpander(bridge Bridge, address byte) *GPIOExpander {
	return &GPIOExpander{retryLimit: 3, bridge: bridge, address: address}
}

func (e *GPIOExpander) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for i := e.retryLimit; i > 0; i-- {
		err = fn()
		if err == nil {
			return nil
		}
		if !errors.Is(err, flashtype.ErrTransport) {
			return err
		}
		time.Sleep(time.Millisecond)
	}
	return fmt.Errorf("gpio expander retry limit reached: %w", err)
}

// InitA configures the direction (1=input, 0=output per bit) of bank A.
func (e *GPIOExpander) InitA(ctx context.Context, dir byte) error {
	return e.withRetry(ctx, func() error {
		return e.bridge.I2CWrite(ctx, e.address, []byte{bankAddr[e.bank][iodirA], dir})
	})
}

func (e *GPIOExpander) InitB(ctx context.Context, dir byte) error {
	return e.withRetry(ctx, func() error {
		return e.bridge.I2CWrite(ctx, e.address, []byte{bankAddr[e.bank][iodirB], dir})
	})
}

func (e *GPIOExpander) PullUpA(ctx context.Context, settings byte) error {
	return e.withRetry(ctx, func() error {
		return e.bridge.I2CWrite(ctx, e.address, []byte{bankAddr[e.bank][gppuA], settings})
	})
}

func (e *GPIOExpander) PullUpB(ctx context.Context, settings byte) error {
	return e.withRetry(ctx, func() error {
		return e.bridge.I2CWrite(ctx, e.address, []byte{bankAddr[e.bank][gppuB], settings})
	})
}

func (e *GPIOExpander) readRegister(ctx context.Context, addr byte) (byte, error) {
	e.mx.Lock()
	defer e.mx.Unlock()
	if err := e.bridge.I2CWrite(ctx, e.address, []byte{addr}); err != nil {
		return 0, fmt.Errorf("could not set register address: %w", err)
	}
	buf := make([]byte, 1)
	if err := e.bridge.I2CRead(ctx, e.address, buf); err != nil {
		return 0, fmt.Errorf("could not read register: %w", err)
	}
	return buf[0], nil
}

func (e *GPIOExpander) ReadA(ctx context.Context) (byte, error) {
	var res byte
	err := e.withRetry(ctx, func() error {
		var err error
		res, err = e.readRegister(ctx, bankAddr[e.bank][gpioA])
		return err
	})
	return res, err
}

func (e *GPIOExpander) ReadB(ctx context.Context) (byte, error) {
	var res byte
	err := e.withRetry(ctx, func() error {
		var err error
		res, err = e.readRegister(ctx, bankAddr[e.bank][gpioB])
		return err
	})
	return res, err
}

// WriteA writes the output latch for bank A in one shot.
func (e *GPIOExpander) WriteA(ctx context.Context, value byte) error {
	return e.withRetry(ctx, func() error {
		return e.bridge.I2CWrite(ctx, e.address, []byte{bankAddr[e.bank][gpioA], value})
	})
}

// SetPin drives a single bit of bank A, leaving the others untouched.
// Used by the Microwire engine to toggle CS/CLK/DOUT individually
// without re-deriving the whole port value at each call site.
func (e *GPIOExpander) SetPin(ctx context.Context, bit int, level bool) error {
	cur, err := e.ReadA(ctx)
	if err != nil {
		return err
	}
	mask := byte(1) << uint(bit)
	if level {
		cur |= mask
	} else {
		cur &^= mask
	}
	return e.WriteA(ctx, cur)
}

func (e *GPIOExpander) GetPin(ctx context.Context, bit int) (bool, error) {
	cur, err := e.ReadA(ctx)
	if err != nil {
		return false, err
	}
	return cur&(byte(1)<<uint(bit)) != 0, nil
}

// GPIOSet and GPIOGet give GPIOExpander the same shape as bridge.Bridge's
// GPIO methods, so a microwire.Engine can bit-bang through either a
// native bridge or an expander hung off its I2C bus without caring which.
func (e *GPIOExpander) GPIOSet(ctx context.Context, pin int, level bool) error {
	return e.SetPin(ctx, pin, level)
}

func (e *GPIOExpander) GPIOGet(ctx context.Context, pin int) (bool, error) {
	return e.GetPin(ctx, pin)
}
