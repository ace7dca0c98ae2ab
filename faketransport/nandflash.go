package faketransport

import (
	"context"

	"github.com/mklimuk/flashprog/bridge"
	"github.com/mklimuk/flashprog/flashtype"
)

var _ bridge.Bridge = (*NANDFlash)(nil)

// NANDFlash emulates a SPI NAND chip's cache-mediated page access:
// PAGE_READ loads a page (plus OOB) into an internal cache, READ_CACHE
// serves out of it; PROGRAM_LOAD/PROGRAM_LOAD_RANDOM stage a page (and
// its OOB) into a write cache that PROGRAM_EXECUTE commits. GET/SET
// FEATURE addresses 0xC0 (status) and 0xB0 (config) are backed by a
// tiny register file rather than the full NAND feature set.
type NANDFlash struct {
	PageSize  uint32
	OOBSize   uint32
	PageCount uint32

	Pages [][]byte // PageSize bytes per entry
	OOB   [][]byte // OOBSize bytes per entry

	blockPages uint32

	features map[byte]byte

	readCache       []byte
	writeCache      []byte
	lastPageReadRow uint32

	WriteCalls int
	EraseCalls int

	csActive bool
	cmd      []byte
}

func NewNANDFlash(pageSize, oobSize, pageCount, pagesPerBlock uint32) *NANDFlash {
	pages := make([][]byte, pageCount)
	oob := make([][]byte, pageCount)
	for i := range pages {
		p := make([]byte, pageSize)
		o := make([]byte, oobSize)
		for j := range p {
			p[j] = 0xFF
		}
		for j := range o {
			o[j] = 0xFF
		}
		pages[i] = p
		oob[i] = o
	}
	return &NANDFlash{
		PageSize:   pageSize,
		OOBSize:    oobSize,
		PageCount:  pageCount,
		Pages:      pages,
		OOB:        oob,
		blockPages: pagesPerBlock,
		features:   map[byte]byte{0xC0: 0, 0xB0: 0x10},
	}
}

func (f *NANDFlash) Name() string                   { return "fake-nand-flash" }
func (f *NANDFlash) Open(ctx context.Context) error  { return nil }
func (f *NANDFlash) Close(ctx context.Context) error { return nil }

func (f *NANDFlash) SetCS(ctx context.Context, active bool) error {
	f.csActive = active
	if active {
		f.cmd = nil
	}
	return nil
}

func (f *NANDFlash) SPITransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := f.SetCS(ctx, true); err != nil {
		return err
	}
	if err := fn(ctx); err != nil {
		_ = f.SetCS(ctx, false)
		return err
	}
	return f.SetCS(ctx, false)
}

func (f *NANDFlash) SPIWrite(ctx context.Context, data []byte) error {
	return f.SPITransfer(ctx, data, nil)
}

func (f *NANDFlash) SPIRead(ctx context.Context, n int) ([]byte, error) {
	rx := make([]byte, n)
	if err := f.SPITransfer(ctx, make([]byte, n), rx); err != nil {
		return nil, err
	}
	return rx, nil
}

// SPITransfer accumulates bytes written within one CS-bracket into
// f.cmd; once enough bytes are present to identify the opcode and its
// fixed-length header, it executes the corresponding side effect
// (feature register access, cache load, or cache-served read).
func (f *NANDFlash) SPITransfer(ctx context.Context, tx []byte, rxOut []byte) error {
	if len(tx) > 0 {
		f.cmd = append(f.cmd, tx...)
		f.execute()
	}
	if len(rxOut) > 0 {
		copy(rxOut, f.readCache)
		if len(f.readCache) >= len(rxOut) {
			f.readCache = f.readCache[len(rxOut):]
		} else {
			f.readCache = nil
		}
	}
	return nil
}

func rowAddr(b [3]byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

func colAddr(b [2]byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}

func (f *NANDFlash) execute() {
	if len(f.cmd) == 0 {
		return
	}
	switch f.cmd[0] {
	case 0x0F: // GET_FEATURE
		if len(f.cmd) >= 2 {
			f.readCache = []byte{f.features[f.cmd[1]]}
		}
	case 0x1F: // SET_FEATURE
		if len(f.cmd) >= 3 {
			f.features[f.cmd[1]] = f.cmd[2]
		}
	case 0x06: // WRITE_ENABLE
		// no state to track; every program/erase here always succeeds
	case 0x13: // PAGE_READ (to cache)
		if len(f.cmd) >= 4 {
			row := rowAddr([3]byte{f.cmd[1], f.cmd[2], f.cmd[3]})
			if row < f.PageCount {
				f.lastPageReadRow = row
			}
		}
	case 0x03: // READ_CACHE
		if len(f.cmd) >= 4 {
			col := colAddr([2]byte{f.cmd[1], f.cmd[2]})
			row := f.lastPageReadRow
			if row < f.PageCount {
				full := append(append([]byte{}, f.Pages[row]...), f.OOB[row]...)
				if int(col) < len(full) {
					f.readCache = append([]byte{}, full[col:]...)
				}
			}
		}
	case 0x02: // PROGRAM_LOAD
		if len(f.cmd) >= 3 {
			col := colAddr([2]byte{f.cmd[1], f.cmd[2]})
			f.stageWrite(int(col), f.cmd[3:])
		}
	case 0x84: // PROGRAM_LOAD_RANDOM
		if len(f.cmd) >= 3 {
			col := colAddr([2]byte{f.cmd[1], f.cmd[2]})
			f.stageWrite(int(col), f.cmd[3:])
		}
	case 0x10: // PROGRAM_EXECUTE
		if len(f.cmd) >= 4 {
			row := rowAddr([3]byte{f.cmd[1], f.cmd[2], f.cmd[3]})
			f.commitWrite(row)
		}
	case 0xD8: // BLOCK_ERASE
		if len(f.cmd) >= 4 {
			row := rowAddr([3]byte{f.cmd[1], f.cmd[2], f.cmd[3]})
			f.eraseBlockAt(row)
		}
	}
}

func (f *NANDFlash) stageWrite(col int, data []byte) {
	need := int(f.PageSize + f.OOBSize)
	if f.writeCache == nil {
		f.writeCache = make([]byte, need)
		for i := range f.writeCache {
			f.writeCache[i] = 0xFF
		}
	}
	for i, b := range data {
		if col+i < need {
			f.writeCache[col+i] = b
		}
	}
	f.WriteCalls++
}

func (f *NANDFlash) commitWrite(row uint32) {
	if row >= f.PageCount || f.writeCache == nil {
		return
	}
	copy(f.Pages[row], f.writeCache[:f.PageSize])
	copy(f.OOB[row], f.writeCache[f.PageSize:])
	f.writeCache = nil
}

func (f *NANDFlash) eraseBlockAt(rowInBlock uint32) {
	pagesPerBlock := f.blockSizePages()
	block := rowInBlock / pagesPerBlock
	start := block * pagesPerBlock
	for p := start; p < start+pagesPerBlock && p < f.PageCount; p++ {
		for i := range f.Pages[p] {
			f.Pages[p][i] = 0xFF
		}
		for i := range f.OOB[p] {
			f.OOB[p][i] = 0xFF
		}
	}
	f.EraseCalls++
}

func (f *NANDFlash) blockSizePages() uint32 {
	if f.blockPages == 0 {
		return f.PageCount
	}
	return f.blockPages
}

func (f *NANDFlash) I2CWrite(ctx context.Context, addr byte, data []byte) error { return nil }
func (f *NANDFlash) I2CRead(ctx context.Context, addr byte, buf []byte) error   { return nil }
func (f *NANDFlash) GPIOSet(ctx context.Context, pin int, level bool) error     { return nil }
func (f *NANDFlash) GPIOGet(ctx context.Context, pin int) (bool, error)         { return false, nil }
func (f *NANDFlash) SetSpeed(ctx context.Context, speed flashtype.SPISpeed) error {
	return nil
}
func (f *NANDFlash) ReadJEDECID(ctx context.Context) (flashtype.JedecID, error) {
	return flashtype.JedecID{}, nil
}
