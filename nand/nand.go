// Package nand implements the SPI NAND command protocol: pages move
// through an on-chip cache (page-read-to-cache, then read-from-cache;
// program-load, then program-execute), status and configuration live
// in GET/SET FEATURE registers rather than a single status byte, and
// bad blocks are tracked via a marker byte in each block's first OOB.
package nand

import (
	"context"
	"fmt"
	"time"

	"github.com/mklimuk/flashprog/bridge"
	"github.com/mklimuk/flashprog/flashtype"
)

const (
	cmdWriteEnable      = 0x06
	cmdGetFeature       = 0x0F
	cmdSetFeature       = 0x1F
	cmdPageRead         = 0x13 // page-read-to-cache
	cmdReadCache        = 0x03
	cmdProgramLoad      = 0x02
	cmdProgramLoadRnd   = 0x84 // random data input, used for the OOB half of a page
	cmdProgramExecute   = 0x10
	cmdBlockErase       = 0xD8

	featureStatus = 0xC0
	featureConfig = 0xB0

	statusOIP   = 0x01 // operation in progress
	statusEFail = 0x04
	statusPFail = 0x08

	configECCEnable = 0x10

	waitTimeout = 5 * time.Second
	pollPeriod  = 100 * time.Microsecond
)

// Engine drives one SPI NAND chip.
type Engine struct {
	br   bridge.Bridge
	spec flashtype.ChipSpec
}

func New(br bridge.Bridge, spec flashtype.ChipSpec) *Engine {
	return &Engine{br: br, spec: spec}
}

func (e *Engine) Spec() flashtype.ChipSpec { return e.spec }

func pageToRowAddr(page uint32) [3]byte {
	return [3]byte{byte(page >> 16), byte(page >> 8), byte(page)}
}

func columnToAddr(column uint16) [2]byte {
	return [2]byte{byte(column >> 8), byte(column)}
}

func (e *Engine) getFeature(ctx context.Context, addr byte) (byte, error) {
	var out byte
	err := e.br.SPITransaction(ctx, func(ctx context.Context) error {
		if err := e.br.SPIWrite(ctx, []byte{cmdGetFeature, addr}); err != nil {
			return err
		}
		data, err := e.br.SPIRead(ctx, 1)
		if err != nil {
			return err
		}
		out = data[0]
		return nil
	})
	return out, err
}

func (e *Engine) setFeature(ctx context.Context, addr, value byte) error {
	return e.br.SPITransaction(ctx, func(ctx context.Context) error {
		return e.br.SPIWrite(ctx, []byte{cmdSetFeature, addr, value})
	})
}

func (e *Engine) writeEnable(ctx context.Context) error {
	return e.br.SPITransaction(ctx, func(ctx context.Context) error {
		return e.br.SPIWrite(ctx, []byte{cmdWriteEnable})
	})
}

// SetECCPolicy toggles the chip's on-die ECC via the config feature
// register. flashtype.EccDisabled clears CONFIG_ECC_ENABLE so raw
// page+OOB content (including ECC parity bytes a software ECC scheme
// would want) can be read and written untouched.
func (e *Engine) SetECCPolicy(ctx context.Context, policy flashtype.EccPolicy) error {
	config, err := e.getFeature(ctx, featureConfig)
	if err != nil {
		return err
	}
	if policy.IsEnabled() {
		config |= configECCEnable
	} else {
		config &^= configECCEnable
	}
	return e.setFeature(ctx, featureConfig, config)
}

// GetStatus returns the single-byte STATUS feature register.
func (e *Engine) GetStatus(ctx context.Context) ([]byte, error) {
	status, err := e.getFeature(ctx, featureStatus)
	if err != nil {
		return nil, err
	}
	return []byte{status}, nil
}

// SetStatus writes the STATUS feature register directly. This bypasses
// the OIP/fail bits this package itself polls after program and erase,
// so callers doing this should know what they're doing.
func (e *Engine) SetStatus(ctx context.Context, status []byte) error {
	if len(status) != 1 {
		return fmt.Errorf("nand status register is 1 byte: %w", flashtype.ErrInvalidParameter)
	}
	return e.setFeature(ctx, featureStatus, status[0])
}

func (e *Engine) waitReady(ctx context.Context) error {
	deadline := time.Now().Add(waitTimeout)
	for {
		status, err := e.getFeature(ctx, featureStatus)
		if err != nil {
			return err
		}
		if status&statusOIP == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("nand wait ready: %w", flashtype.ErrTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollPeriod):
		}
	}
}

func (e *Engine) readPageInternal(ctx context.Context, page uint32, column uint16, length int) ([]byte, error) {
	row := pageToRowAddr(page)
	if err := e.br.SPITransaction(ctx, func(ctx context.Context) error {
		return e.br.SPIWrite(ctx, []byte{cmdPageRead, row[0], row[1], row[2]})
	}); err != nil {
		return nil, err
	}
	if err := e.waitReady(ctx); err != nil {
		return nil, err
	}
	col := columnToAddr(column)
	var out []byte
	err := e.br.SPITransaction(ctx, func(ctx context.Context) error {
		if err := e.br.SPIWrite(ctx, []byte{cmdReadCache, col[0], col[1], 0x00}); err != nil {
			return err
		}
		data, err := e.br.SPIRead(ctx, length)
		if err != nil {
			return err
		}
		out = data
		return nil
	})
	return out, err
}

// Read copies len(buffer) bytes starting at address with OOBNone,
// satisfying the same signature orchestrator.Engine expects of every
// other protocol engine. Use ReadOOB directly for OOBIncluded/OOBOnly.
func (e *Engine) Read(ctx context.Context, address flashtype.Address, buffer []byte) error {
	return e.ReadOOB(ctx, address, buffer, flashtype.OOBNone)
}

// ReadOOB copies length bytes starting at address into buffer, applying
// oobMode to decide whether each page's OOB area is skipped, appended
// after its data, or read exclusive of the data area. Address is
// byte-addressed; pages are resolved internally from the chip's page
// size. With OOBIncluded or OOBOnly, address only selects the starting
// page; its offset within that page is ignored.
func (e *Engine) ReadOOB(ctx context.Context, address flashtype.Address, buffer []byte, oobMode flashtype.OOBMode) error {
	pageSize := e.spec.Layout.PageSize
	oobSize := e.spec.Layout.OOBSize

	startPage := uint32(address) / pageSize
	var column uint16
	var perPage int
	switch oobMode {
	case flashtype.OOBIncluded:
		column = 0
		perPage = int(pageSize + oobSize)
	case flashtype.OOBOnly:
		column = uint16(pageSize)
		perPage = int(oobSize)
	default:
		column = 0
		perPage = int(pageSize)
	}

	// skip is address's offset within its page; only the first page of
	// an OOBNone read starts past column 0.
	skip := 0
	if oobMode == flashtype.OOBNone {
		skip = int(uint32(address) % pageSize)
	}

	offset := 0
	for page := startPage; offset < len(buffer); page++ {
		want := perPage - skip
		chunk, err := e.readPageInternal(ctx, page, column+uint16(skip), want)
		if err != nil {
			return fmt.Errorf("nand read page %d: %w", page, err)
		}
		n := copy(buffer[offset:], chunk)
		offset += n
		if n < want {
			break
		}
		skip = 0
	}
	return nil
}

// Write requires a page-aligned address and programs one page per
// iteration via program-load then program-execute, checking P_FAIL
// after each.
func (e *Engine) Write(ctx context.Context, address flashtype.Address, data []byte) error {
	pageSize := e.spec.Layout.PageSize
	if uint32(address)%pageSize != 0 {
		return fmt.Errorf("nand write address must be page-aligned: %w", flashtype.ErrInvalidParameter)
	}
	startPage := uint32(address) / pageSize

	offset := 0
	for offset < len(data) {
		page := startPage + uint32(offset)/pageSize
		end := offset + int(pageSize)
		if end > len(data) {
			end = len(data)
		}
		pageBuf := make([]byte, pageSize)
		for i := range pageBuf {
			pageBuf[i] = 0xFF
		}
		copy(pageBuf, data[offset:end])

		if err := e.writeEnable(ctx); err != nil {
			return err
		}
		col := columnToAddr(0)
		if err := e.br.SPITransaction(ctx, func(ctx context.Context) error {
			if err := e.br.SPIWrite(ctx, []byte{cmdProgramLoad, col[0], col[1]}); err != nil {
				return err
			}
			return e.br.SPIWrite(ctx, pageBuf)
		}); err != nil {
			return err
		}

		row := pageToRowAddr(page)
		if err := e.br.SPITransaction(ctx, func(ctx context.Context) error {
			return e.br.SPIWrite(ctx, []byte{cmdProgramExecute, row[0], row[1], row[2]})
		}); err != nil {
			return err
		}
		if err := e.waitReady(ctx); err != nil {
			return err
		}
		status, err := e.getFeature(ctx, featureStatus)
		if err != nil {
			return err
		}
		if status&statusPFail != 0 {
			return &flashtype.ProgramFailedError{Address: flashtype.Address(page * pageSize)}
		}

		offset = end
	}
	return nil
}

// WritePageWithOOB programs one page's data and OOB area in a single
// program-execute, loading the OOB half with the random-data-input
// opcode so it lands past the page-data column offset.
func (e *Engine) WritePageWithOOB(ctx context.Context, page uint32, data, oob []byte) error {
	pageSize := e.spec.Layout.PageSize

	if err := e.writeEnable(ctx); err != nil {
		return err
	}
	col := columnToAddr(0)
	if err := e.br.SPITransaction(ctx, func(ctx context.Context) error {
		if err := e.br.SPIWrite(ctx, []byte{cmdProgramLoad, col[0], col[1]}); err != nil {
			return err
		}
		return e.br.SPIWrite(ctx, data)
	}); err != nil {
		return err
	}

	oobCol := columnToAddr(uint16(pageSize))
	if err := e.br.SPITransaction(ctx, func(ctx context.Context) error {
		if err := e.br.SPIWrite(ctx, []byte{cmdProgramLoadRnd, oobCol[0], oobCol[1]}); err != nil {
			return err
		}
		return e.br.SPIWrite(ctx, oob)
	}); err != nil {
		return err
	}

	row := pageToRowAddr(page)
	if err := e.br.SPITransaction(ctx, func(ctx context.Context) error {
		return e.br.SPIWrite(ctx, []byte{cmdProgramExecute, row[0], row[1], row[2]})
	}); err != nil {
		return err
	}
	if err := e.waitReady(ctx); err != nil {
		return err
	}
	status, err := e.getFeature(ctx, featureStatus)
	if err != nil {
		return err
	}
	if status&statusPFail != 0 {
		return &flashtype.ProgramFailedError{Address: flashtype.Address(page * pageSize)}
	}
	return nil
}

// Erase requires a block-aligned address and erases one block per
// iteration, checking E_FAIL after each.
func (e *Engine) Erase(ctx context.Context, address flashtype.Address, length uint32) error {
	blockSize := e.spec.Layout.BlockSize
	pageSize := e.spec.Layout.PageSize
	if uint32(address)%blockSize != 0 {
		return fmt.Errorf("nand erase address must be block-aligned: %w", flashtype.ErrInvalidParameter)
	}

	startBlock := uint32(address) / blockSize
	totalBlocks := (length + blockSize - 1) / blockSize

	for i := uint32(0); i < totalBlocks; i++ {
		block := startBlock + i
		page := block * (blockSize / pageSize)

		if err := e.writeEnable(ctx); err != nil {
			return err
		}
		row := pageToRowAddr(page)
		if err := e.br.SPITransaction(ctx, func(ctx context.Context) error {
			return e.br.SPIWrite(ctx, []byte{cmdBlockErase, row[0], row[1], row[2]})
		}); err != nil {
			return err
		}
		if err := e.waitReady(ctx); err != nil {
			return err
		}
		status, err := e.getFeature(ctx, featureStatus)
		if err != nil {
			return err
		}
		if status&statusEFail != 0 {
			return &flashtype.EraseFailedError{Block: block}
		}
	}
	return nil
}

// IsBadBlock reads the first page of block and reports it bad unless
// the first OOB byte reads 0xFF, the standard SPI NAND factory marker
// convention.
func (e *Engine) IsBadBlock(ctx context.Context, block uint32) (bool, error) {
	pageSize := e.spec.Layout.PageSize
	blockSize := e.spec.Layout.BlockSize
	oobSize := e.spec.Layout.OOBSize
	firstPage := block * (blockSize / pageSize)

	oob, err := e.readPageInternal(ctx, firstPage, uint16(pageSize), int(oobSize))
	if err != nil {
		return false, err
	}
	return oob[0] != 0xFF, nil
}

// MarkBadBlock writes the factory bad-block marker (0x00) to the
// first OOB byte of block's first page.
func (e *Engine) MarkBadBlock(ctx context.Context, block uint32) error {
	pageSize := e.spec.Layout.PageSize
	blockSize := e.spec.Layout.BlockSize
	oobSize := e.spec.Layout.OOBSize
	firstPage := block * (blockSize / pageSize)

	data := make([]byte, pageSize)
	for i := range data {
		data[i] = 0xFF
	}
	oob := make([]byte, oobSize)
	for i := range oob {
		oob[i] = 0xFF
	}
	oob[0] = 0x00

	return e.WritePageWithOOB(ctx, firstPage, data, oob)
}
