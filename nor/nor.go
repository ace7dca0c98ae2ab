// Package nor implements the SPI NOR command protocol (W25Q/MX25L/GD25Q
// and compatible parts): write-enable, page-bounded program, 4K/64K/chip
// erase, and status-register polling.
package nor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mklimuk/flashprog/bridge"
	"github.com/mklimuk/flashprog/flashtype"
)

const (
	cmdWriteEnable   = 0x06
	cmdReadStatus    = 0x05
	cmdWriteStatus   = 0x01
	cmdRead          = 0x03
	cmdPageProgram   = 0x02
	cmdSectorErase4K = 0x20
	cmdBlockErase64K = 0xD8
	cmdChipErase     = 0xC7

	statusWIP = 0x01

	pageSize   = 256
	sectorSize = 4096
	blockSize  = 65536

	// waitTimeout bounds how long this package polls the status
	// register before giving up; chip erase on a large part is the
	// slowest operation it has to cover.
	waitTimeout = 30 * time.Second
	pollPeriod  = 100 * time.Microsecond
)

// Engine drives one SPI NOR chip over a bridge.Bridge.
type Engine struct {
	br   bridge.Bridge
	spec flashtype.ChipSpec
}

func New(br bridge.Bridge, spec flashtype.ChipSpec) *Engine {
	return &Engine{br: br, spec: spec}
}

func (e *Engine) Spec() flashtype.ChipSpec { return e.spec }

// addrBytes returns the address field for a command header: 3 bytes
// by default, or 4 (MSB first) when the chip's capacity requires
// addressing beyond the 3-byte, 16MB range and Capabilities reports
// Supports4ByteAddr.
func (e *Engine) addrBytes(addr flashtype.Address) []byte {
	if e.spec.Capabilities.Supports4ByteAddr {
		return []byte{byte(addr >> 24), byte(addr >> 16), byte(addr >> 8), byte(addr)}
	}
	return []byte{byte(addr >> 16), byte(addr >> 8), byte(addr)}
}

func (e *Engine) writeEnable(ctx context.Context) error {
	return e.br.SPITransaction(ctx, func(ctx context.Context) error {
		return e.br.SPIWrite(ctx, []byte{cmdWriteEnable})
	})
}

func (e *Engine) readStatus(ctx context.Context) (byte, error) {
	var status byte
	err := e.br.SPITransaction(ctx, func(ctx context.Context) error {
		if err := e.br.SPIWrite(ctx, []byte{cmdReadStatus}); err != nil {
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
	start := time.Now()
	for {
		status, err := e.readStatus(ctx)
		if err != nil {
			return err
		}
		if status&statusWIP == 0 {
			return nil
		}
		if time.Since(start) > waitTimeout {
			return fmt.Errorf("%w: nor wait_ready", flashtype.ErrTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollPeriod):
		}
	}
}

// ReadPage reads a 256-byte page. buffer's length determines how many
// bytes are read starting at page*256.
func (e *Engine) ReadPage(ctx context.Context, page uint32, buffer []byte) error {
	return e.Read(ctx, flashtype.Address(page*pageSize), buffer)
}

// Read performs an arbitrary-length, arbitrary-offset read; NOR has no
// page alignment requirement for reads.
func (e *Engine) Read(ctx context.Context, address flashtype.Address, buffer []byte) error {
	header := append([]byte{cmdRead}, e.addrBytes(address)...)
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

// Write writes data starting at address, automatically slicing at
// 256-byte page boundaries; every chunk is a separate write-enable +
// page-program + wait_ready cycle per the NOR programming model.
func (e *Engine) Write(ctx context.Context, address flashtype.Address, data []byte) error {
	offset := 0
	currentAddr := uint32(address)
	for offset < len(data) {
		pageOffset := int(currentAddr) % pageSize
		bytesInPage := pageSize - pageOffset
		bytesToWrite := bytesInPage
		if remaining := len(data) - offset; remaining < bytesToWrite {
			bytesToWrite = remaining
		}

		if err := e.writeEnable(ctx); err != nil {
			return err
		}
		header := append([]byte{cmdPageProgram}, e.addrBytes(flashtype.Address(currentAddr))...)
		err := e.br.SPITransaction(ctx, func(ctx context.Context) error {
			if err := e.br.SPIWrite(ctx, header); err != nil {
				return err
			}
			return e.br.SPIWrite(ctx, data[offset:offset+bytesToWrite])
		})
		if err != nil {
			return err
		}
		if err := e.waitReady(ctx); err != nil {
			return err
		}

		offset += bytesToWrite
		currentAddr += uint32(bytesToWrite)
	}
	return nil
}

// Erase erases every sector covering [address, address+length), rounding
// up to whole 4K sectors. Large erases that exactly cover one or more
// 64K blocks use the faster block-erase opcode instead.
func (e *Engine) Erase(ctx context.Context, address flashtype.Address, length uint32) error {
	if uint32(address)%sectorSize != 0 {
		return fmt.Errorf("nor erase address must be sector-aligned: %w", flashtype.ErrInvalidParameter)
	}

	remaining := length
	addr := uint32(address)
	for remaining > 0 {
		if addr%blockSize == 0 && remaining >= blockSize {
			if err := e.EraseBlock(ctx, flashtype.Address(addr)); err != nil {
				return err
			}
			addr += blockSize
			remaining -= blockSize
			continue
		}
		if err := e.EraseSector(ctx, flashtype.Address(addr)); err != nil {
			return err
		}
		addr += sectorSize
		if remaining < sectorSize {
			remaining = 0
		} else {
			remaining -= sectorSize
		}
	}
	return nil
}

// GetStatus returns the single-byte status register.
func (e *Engine) GetStatus(ctx context.Context) ([]byte, error) {
	status, err := e.readStatus(ctx)
	if err != nil {
		return nil, err
	}
	return []byte{status}, nil
}

// SetStatus writes the status register. NOR parts expose a single
// status byte; status must be exactly one byte long.
func (e *Engine) SetStatus(ctx context.Context, status []byte) error {
	if len(status) != 1 {
		return fmt.Errorf("nor status register is 1 byte: %w", flashtype.ErrInvalidParameter)
	}
	if err := e.writeEnable(ctx); err != nil {
		return err
	}
	return e.br.SPITransaction(ctx, func(ctx context.Context) error {
		return e.br.SPIWrite(ctx, []byte{cmdWriteStatus, status[0]})
	})
}

// EraseSector erases the 4K sector containing address.
func (e *Engine) EraseSector(ctx context.Context, address flashtype.Address) error {
	slog.Debug("nor: erasing 4K sector", "address", address)
	return e.erase(ctx, cmdSectorErase4K, address)
}

// EraseBlock erases the 64K block containing address.
func (e *Engine) EraseBlock(ctx context.Context, address flashtype.Address) error {
	slog.Debug("nor: erasing 64K block", "address", address)
	return e.erase(ctx, cmdBlockErase64K, address)
}

func (e *Engine) erase(ctx context.Context, opcode byte, address flashtype.Address) error {
	if err := e.writeEnable(ctx); err != nil {
		return err
	}
	header := append([]byte{opcode}, e.addrBytes(address)...)
	err := e.br.SPITransaction(ctx, func(ctx context.Context) error {
		return e.br.SPIWrite(ctx, header)
	})
	if err != nil {
		return err
	}
	return e.waitReady(ctx)
}

// ChipErase erases the entire chip. Can take tens of seconds on large
// parts; callers should run it with a context that allows for that.
func (e *Engine) ChipErase(ctx context.Context) error {
	slog.Debug("nor: erasing entire chip")
	if err := e.writeEnable(ctx); err != nil {
		return err
	}
	err := e.br.SPITransaction(ctx, func(ctx context.Context) error {
		return e.br.SPIWrite(ctx, []byte{cmdChipErase})
	})
	if err != nil {
		return err
	}
	return e.waitReady(ctx)
}
