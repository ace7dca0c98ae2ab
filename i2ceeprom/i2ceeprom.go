// Package i2ceeprom implements the 24Cxx I2C EEPROM protocol: a 1- or
// 2-byte word address (depending on capacity) is written to set a
// pointer, then a page-bounded burst write or a restart-read clocks
// data in or out.
package i2ceeprom

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mklimuk/flashprog/bridge"
	"github.com/mklimuk/flashprog/flashtype"
)

const (
	// writeCycleWait is the internal write-cycle time the chip needs
	// after a page write before it will ACK another command.
	writeCycleWait = 10 * time.Millisecond

	// maxChunkRead bounds a single I2C read burst.
	maxChunkRead = 32
)

// Engine drives one 24Cxx-family I2C EEPROM chip at a fixed bus
// address. Parts of 2Kbit (256 bytes) or less use a single address
// byte; everything larger uses two, per the 24Cxx family convention.
type Engine struct {
	br          bridge.Bridge
	spec        flashtype.ChipSpec
	busAddress  byte
	wordAddrLen int
	retryCount  int
}

func New(br bridge.Bridge, spec flashtype.ChipSpec, busAddress byte) *Engine {
	wordAddrLen := 1
	if spec.Capacity.Bytes() > 256 {
		wordAddrLen = 2
	}
	return &Engine{br: br, spec: spec, busAddress: busAddress, wordAddrLen: wordAddrLen}
}

func (e *Engine) Spec() flashtype.ChipSpec { return e.spec }

// SetRetryCount sets how many additional attempts Read makes against a
// chunk after a transport error before giving up.
func (e *Engine) SetRetryCount(n int) { e.retryCount = n }

// readChunk sets the address pointer and reads into out, retrying up
// to e.retryCount additional times on transport error, mirroring the
// original tool's read retry loop for this family.
func (e *Engine) readChunk(ctx context.Context, address flashtype.Address, out []byte) error {
	var lastErr error
	for attempt := 0; attempt <= e.retryCount; attempt++ {
		if attempt > 0 {
			slog.Warn("i2c eeprom: retrying read", "attempt", attempt, "address", address)
		}
		if err := e.br.I2CWrite(ctx, e.busAddress, e.wordAddress(address)); err != nil {
			lastErr = fmt.Errorf("%w: i2c eeprom set pointer: %v", flashtype.ErrTransport, err)
			continue
		}
		if err := e.br.I2CRead(ctx, e.busAddress, out); err != nil {
			lastErr = fmt.Errorf("%w: i2c eeprom read: %v", flashtype.ErrTransport, err)
			continue
		}
		return nil
	}
	return lastErr
}

func (e *Engine) wordAddress(address flashtype.Address) []byte {
	buf := make([]byte, e.wordAddrLen)
	for i := 0; i < e.wordAddrLen; i++ {
		shift := uint(8 * (e.wordAddrLen - 1 - i))
		buf[i] = byte(uint32(address) >> shift)
	}
	return buf
}

// Read sets the address pointer then reads len(buffer) bytes,
// chunked to maxChunkRead per underlying I2C transaction.
func (e *Engine) Read(ctx context.Context, address flashtype.Address, buffer []byte) error {
	offset := 0
	current := uint32(address)
	for offset < len(buffer) {
		chunk := maxChunkRead
		if remaining := len(buffer) - offset; remaining < chunk {
			chunk = remaining
		}
		if err := e.readChunk(ctx, flashtype.Address(current), buffer[offset:offset+chunk]); err != nil {
			return err
		}
		offset += chunk
		current += uint32(chunk)
	}
	return nil
}

// Write writes data starting at address, automatically splitting at
// page boundaries, and waits the fixed write-cycle time after each
// page-granular burst.
func (e *Engine) Write(ctx context.Context, address flashtype.Address, data []byte) error {
	pageSize := e.spec.Layout.PageSize
	if pageSize == 0 {
		pageSize = 8
	}
	offset := 0
	current := uint32(address)
	for offset < len(data) {
		pageOffset := current % pageSize
		space := pageSize - pageOffset
		chunkLen := int(space)
		if remaining := len(data) - offset; remaining < chunkLen {
			chunkLen = remaining
		}
		payload := append(e.wordAddress(flashtype.Address(current)), data[offset:offset+chunkLen]...)
		if err := e.br.I2CWrite(ctx, e.busAddress, payload); err != nil {
			return fmt.Errorf("%w: i2c eeprom page write: %v", flashtype.ErrTransport, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(writeCycleWait):
		}
		offset += chunkLen
		current += uint32(chunkLen)
	}
	return nil
}

// Erase fills length bytes starting at address with 0xFF.
func (e *Engine) Erase(ctx context.Context, address flashtype.Address, length uint32) error {
	fill := make([]byte, length)
	for i := range fill {
		fill[i] = 0xFF
	}
	return e.Write(ctx, address, fill)
}

// GetStatus is unsupported: 24Cxx parts have no status register.
func (e *Engine) GetStatus(ctx context.Context) ([]byte, error) {
	return nil, fmt.Errorf("i2c eeprom has no status register: %w", flashtype.ErrNotSupported)
}

// SetStatus is unsupported: 24Cxx parts have no status register.
func (e *Engine) SetStatus(ctx context.Context, status []byte) error {
	return fmt.Errorf("i2c eeprom has no status register: %w", flashtype.ErrNotSupported)
}
