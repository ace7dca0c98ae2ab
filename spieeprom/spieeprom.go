// Package spieeprom implements the 25xxx-family SPI EEPROM command set:
// WREN/WRDI/RDSR/WRSR/READ/WRITE, page-bounded writes and status-poll
// wait, generalized from a single hardcoded part to any ChipSpec whose
// family is flashtype.FamilySPIEeprom.
package spieeprom

import (
	"context"
	"fmt"
	"log/slog"
	"time"

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

	statusWIP = 0x01

	writeTimeout = 10 * time.Millisecond
	pollPeriod   = 500 * time.Microsecond
)

// Engine drives one SPI EEPROM chip. addressBytes and the 9th-address-
// bit opcode trick (used on parts of 512 bytes or less) are derived
// from the chip's capacity, matching the 25xxx family's datasheet
// convention.
type Engine struct {
	br           bridge.Bridge
	spec         flashtype.ChipSpec
	addressBytes int
	ninthBitPart bool
	retryCount   int
}

// SetRetryCount sets how many additional attempts Read makes after a
// transport error before giving up.
func (e *Engine) SetRetryCount(n int) { e.retryCount = n }

func New(br bridge.Bridge, spec flashtype.ChipSpec) *Engine {
	e := &Engine{br: br, spec: spec}
	capacity := spec.Capacity.Bytes()
	switch {
	case capacity <= 512:
		e.addressBytes = 1
		e.ninthBitPart = capacity > 256
	case capacity <= 65536:
		e.addressBytes = 2
	default:
		e.addressBytes = 3
	}
	return e
}

func (e *Engine) Spec() flashtype.ChipSpec { return e.spec }

func (e *Engine) addressHeader(opcode byte, address flashtype.Address) []byte {
	op := opcode
	if e.ninthBitPart && address >= 256 {
		// On ≤512B parts the 9th address bit rides in opcode bit 3.
		op |= 0x08
	}
	header := make([]byte, 1+e.addressBytes)
	header[0] = op
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

func (e *Engine) readStatus(ctx context.Context) (byte, error) {
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
	return status, err
}

func (e *Engine) waitReady(ctx context.Context) error {
	deadline := time.Now().Add(writeTimeout)
	for {
		status, err := e.readStatus(ctx)
		if err != nil {
			return err
		}
		if status&statusWIP == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: spieeprom wait_ready", flashtype.ErrTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollPeriod):
		}
	}
}

// Read performs an arbitrary-length, arbitrary-offset read, retrying
// up to e.retryCount additional times on transport error.
func (e *Engine) Read(ctx context.Context, address flashtype.Address, buffer []byte) error {
	header := e.addressHeader(cmdRead, address)
	var lastErr error
	for attempt := 0; attempt <= e.retryCount; attempt++ {
		if attempt > 0 {
			slog.Warn("spi eeprom: retrying read", "attempt", attempt, "address", address)
		}
		lastErr = e.br.SPITransaction(ctx, func(ctx context.Context) error {
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
		if lastErr == nil {
			return nil
		}
	}
	return lastErr
}

// Write writes data starting at address, slicing at the chip's page
// size so no single page-write command crosses a page boundary.
func (e *Engine) Write(ctx context.Context, address flashtype.Address, data []byte) error {
	pageSize := e.spec.Layout.PageSize
	if pageSize == 0 {
		pageSize = 256
	}
	offset := 0
	currentAddr := uint32(address)
	for offset < len(data) {
		pageOffset := currentAddr % pageSize
		space := pageSize - pageOffset
		chunkLen := int(space)
		if remaining := len(data) - offset; remaining < chunkLen {
			chunkLen = remaining
		}
		if err := e.pageWrite(ctx, flashtype.Address(currentAddr), data[offset:offset+chunkLen]); err != nil {
			return err
		}
		offset += chunkLen
		currentAddr += uint32(chunkLen)
	}
	return nil
}

func (e *Engine) pageWrite(ctx context.Context, address flashtype.Address, data []byte) error {
	if err := e.writeEnable(ctx); err != nil {
		return err
	}
	header := e.addressHeader(cmdWrite, address)
	err := e.br.SPITransaction(ctx, func(ctx context.Context) error {
		if err := e.br.SPIWrite(ctx, header); err != nil {
			return err
		}
		return e.br.SPIWrite(ctx, data)
	})
	if err != nil {
		return err
	}
	return e.waitReady(ctx)
}

// GetStatus returns the single-byte status register.
func (e *Engine) GetStatus(ctx context.Context) ([]byte, error) {
	status, err := e.readStatus(ctx)
	if err != nil {
		return nil, err
	}
	return []byte{status}, nil
}

// SetStatus writes the status register. SPI EEPROMs expose a single
// status byte; status must be exactly one byte long.
func (e *Engine) SetStatus(ctx context.Context, status []byte) error {
	if len(status) != 1 {
		return fmt.Errorf("spieeprom status register is 1 byte: %w", flashtype.ErrInvalidParameter)
	}
	if err := e.writeEnable(ctx); err != nil {
		return err
	}
	return e.br.SPITransaction(ctx, func(ctx context.Context) error {
		return e.br.SPIWrite(ctx, []byte{cmdWRSR, status[0]})
	})
}

// Erase fills length bytes starting at address with 0xFF; SPI EEPROMs
// have no dedicated erase opcode, so "erase" means a full-0xFF write.
func (e *Engine) Erase(ctx context.Context, address flashtype.Address, length uint32) error {
	fill := make([]byte, length)
	for i := range fill {
		fill[i] = 0xFF
	}
	return e.Write(ctx, address, fill)
}
