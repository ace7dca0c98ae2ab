// Package fram implements the SPI FRAM command set. FRAM is byte-
// writable like an EEPROM but has no write-in-progress bit and no
// erase opcode: writes complete at bus speed, and "erase" is a
// fill-0xFF write like any other chip family without a native erase.
package fram

import (
	"context"
	"fmt"

	"github.com/mklimuk/flashprog/bridge"
	"github.com/mklimuk/flashprog/flashtype"
)

const (
	cmdRead  = 0x03
	cmdWrite = 0x02
	cmdWREN  = 0x06
	cmdWRDI  = 0x04
	cmdRDSR  = 0x05
	cmdWRSR  = 0x01
)

// Engine drives one SPI FRAM chip.
type Engine struct {
	br           bridge.Bridge
	spec         flashtype.ChipSpec
	addressBytes int
}

func New(br bridge.Bridge, spec flashtype.ChipSpec) *Engine {
	addressBytes := 2
	if spec.Capacity.Bytes() > 65536 {
		addressBytes = 3
	}
	return &Engine{br: br, spec: spec, addressBytes: addressBytes}
}

func (e *Engine) Spec() flashtype.ChipSpec { return e.spec }

func (e *Engine) addressHeader(opcode byte, address flashtype.Address) []byte {
	header := make([]byte, 1+e.addressBytes)
	header[0] = opcode
	for i := 0; i < e.addressBytes; i++ {
		shift := uint(8 * (e.addressBytes - 1 - i))
		header[1+i] = byte(uint32(address) >> shift)
	}
	return header
}

func (e *Engine) writeEnable(ctx context.Context) error {
	return e.br.SPITransaction(ctx, func(ctx context.Context) error {
		return e.br.SPIWrite(ctx, []byte{cmdWREN})
	})
}

// Read performs an arbitrary-length, arbitrary-offset read.
func (e *Engine) Read(ctx context.Context, address flashtype.Address, buffer []byte) error {
	header := e.addressHeader(cmdRead, address)
	return e.br.SPITransaction(ctx, func(ctx context.Context) error {
		if err := e.br.SPIWrite(ctx, header); err != nil {
			return err
		}
		data, err := e.br.SPIRead(ctx, len(buffer))
		if err != nil {
			return err
		}
		copy(buffer, data)
		return nil
	})
}

// Write writes data starting at address in a single transaction; FRAM
// has no page-size limit on a write burst, unlike EEPROM/NOR.
func (e *Engine) Write(ctx context.Context, address flashtype.Address, data []byte) error {
	if err := e.writeEnable(ctx); err != nil {
		return err
	}
	header := e.addressHeader(cmdWrite, address)
	return e.br.SPITransaction(ctx, func(ctx context.Context) error {
		if err := e.br.SPIWrite(ctx, header); err != nil {
			return err
		}
		return e.br.SPIWrite(ctx, data)
	})
}

// Erase fills length bytes starting at address with 0xFF.
func (e *Engine) Erase(ctx context.Context, address flashtype.Address, length uint32) error {
	fill := make([]byte, length)
	for i := range fill {
		fill[i] = 0xFF
	}
	return e.Write(ctx, address, fill)
}

// GetStatus returns the single-byte status register (block-protect
// bits and WPEN on parts that implement them).
func (e *Engine) GetStatus(ctx context.Context) ([]byte, error) {
	var status byte
	err := e.br.SPITransaction(ctx, func(ctx context.Context) error {
		if err := e.br.SPIWrite(ctx, []byte{cmdRDSR}); err != nil {
			return err
		}
		data, err := e.br.SPIRead(ctx, 1)
		if err != nil {
			return err
		}
		status = data[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return []byte{status}, nil
}

// SetStatus writes the status register; status must be exactly one byte.
func (e *Engine) SetStatus(ctx context.Context, status []byte) error {
	if len(status) != 1 {
		return fmt.Errorf("fram status register is 1 byte: %w", flashtype.ErrInvalidParameter)
	}
	if err := e.writeEnable(ctx); err != nil {
		return err
	}
	return e.br.SPITransaction(ctx, func(ctx context.Context) error {
		return e.br.SPIWrite(ctx, []byte{cmdWRSR, status[0]})
	})
}
