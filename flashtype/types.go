// Package flashtype holds the value types shared by every bridge,
// protocol engine and orchestrator: addresses, capacities, chip
// identification, progress reporting and the error taxonomy.
package flashtype

import "fmt"

// FlashFamily identifies the command protocol a chip speaks. It is
// independent of manufacturer and capacity.
type FlashFamily int

const (
	FamilyUnknown FlashFamily = iota
	FamilyNor
	FamilyNand
	FamilySPIEeprom
	FamilyI2CEeprom
	FamilyMicrowireEeprom
	FamilyFRAM
)

func (f FlashFamily) String() string {
	switch f {
	case FamilyNor:
		return "spi-nor"
	case FamilyNand:
		return "spi-nand"
	case FamilySPIEeprom:
		return "spi-eeprom"
	case FamilyI2CEeprom:
		return "i2c-eeprom"
	case FamilyMicrowireEeprom:
		return "microwire-eeprom"
	case FamilyFRAM:
		return "spi-fram"
	default:
		return "unknown"
	}
}

// Capacity is a chip's total addressable size in bytes.
type Capacity uint32

func CapacityBytes(n uint32) Capacity     { return Capacity(n) }
func CapacityKilobytes(n uint32) Capacity { return Capacity(n * 1024) }
func CapacityMegabytes(n uint32) Capacity { return Capacity(n * 1024 * 1024) }

// CapacityGigabits converts a density commonly quoted in gigabits (NAND
// datasheets) into a byte capacity.
func CapacityGigabits(n uint32) Capacity {
	return Capacity(uint64(n) * 1024 * 1024 * 1024 / 8)
}

func (c Capacity) Bytes() uint32 { return uint32(c) }

func (c Capacity) String() string {
	switch {
	case c >= 1<<30:
		return fmt.Sprintf("%dGB", c/(1<<30))
	case c >= 1<<20:
		return fmt.Sprintf("%dMB", c/(1<<20))
	case c >= 1<<10:
		return fmt.Sprintf("%dKB", c/(1<<10))
	default:
		return fmt.Sprintf("%dB", uint32(c))
	}
}

// Address is a linear byte offset into a chip's address space.
type Address uint32

// Page returns the zero-based page index the address falls in, given a
// page size in bytes.
func (a Address) Page(pageSize uint32) uint32 {
	if pageSize == 0 {
		return 0
	}
	return uint32(a) / pageSize
}

// Block returns the zero-based erase-block index the address falls in.
func (a Address) Block(blockSize uint32) uint32 {
	if blockSize == 0 {
		return 0
	}
	return uint32(a) / blockSize
}

// JedecID is the 3-byte manufacturer/device/density identification read
// back from opcode 0x9F (or, for chips with no such opcode, a synthetic
// ID assigned by the registry so identification stays uniform).
type JedecID [3]byte

func (j JedecID) String() string {
	return fmt.Sprintf("%02X:%02X:%02X", j[0], j[1], j[2])
}

// ChipLayout describes the physical page/block/spare geometry of a
// chip, independent of its total capacity.
type ChipLayout struct {
	PageSize  uint32
	BlockSize uint32
	// OOBSize is non-zero only for NAND parts with a spare area.
	OOBSize uint32
}

func (l ChipLayout) PagesPerBlock() uint32 {
	if l.PageSize == 0 {
		return 0
	}
	return l.BlockSize / l.PageSize
}

func (l ChipLayout) TotalPages(capacity Capacity) uint32 {
	if l.PageSize == 0 {
		return 0
	}
	return capacity.Bytes() / l.PageSize
}

// ChipCapabilities records optional protocol features a chip may or may
// not implement.
type ChipCapabilities struct {
	SupportsECCControl bool
	Supports4ByteAddr  bool
	SupportsQuadSPI    bool
	SupportsDualSPI    bool
}

// ChipSpec is the full description of a chip as produced by chip
// identification and consumed by every protocol engine constructor.
type ChipSpec struct {
	Name         string
	Manufacturer string
	JedecID      JedecID
	Family       FlashFamily
	Capacity     Capacity
	Layout       ChipLayout
	Capabilities ChipCapabilities
}

// Progress reports the state of a long-running read/write/erase/verify
// operation, suitable for streaming over a channel to a CLI progress bar.
type Progress struct {
	Current uint32
	Total   uint32
	Message string
}

func (p Progress) Percentage() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Current) / float64(p.Total) * 100
}
