package chip

import "github.com/mklimuk/flashprog/flashtype"

// norChip builds a 3-byte-JEDEC-ID SPI NOR spec from a Winbond-style
// (manufacturer, device16, sectorCount, sectorSizeKB) tuple.
func norChip(name, manufacturer string, manufacturerID byte, device uint16, sectorCount, sectorSizeKB uint32) flashtype.ChipSpec {
	capacity := sectorCount * sectorSizeKB * 1024
	return flashtype.ChipSpec{
		Name:         name,
		Manufacturer: manufacturer,
		JedecID:      flashtype.JedecID{manufacturerID, byte(device >> 8), byte(device)},
		Family:       flashtype.FamilyNor,
		Capacity:     flashtype.CapacityBytes(capacity),
		Layout: flashtype.ChipLayout{
			PageSize:  256,
			BlockSize: sectorSizeKB * 1024,
		},
		Capabilities: flashtype.ChipCapabilities{Supports4ByteAddr: capacity > 16*1024*1024},
	}
}

// norChips is a representative slice of the Winbond W25Q/W25X family.
var norChips = []flashtype.ChipSpec{
	norChip("W25Q80", "Winbond", 0xEF, 0x5014, 16, 64),   // 8Mbit
	norChip("W25Q16JQ", "Winbond", 0xEF, 0x4015, 32, 64), // 16Mbit
	norChip("W25Q32BV", "Winbond", 0xEF, 0x4016, 64, 64), // 32Mbit
	norChip("W25Q64DW", "Winbond", 0xEF, 0x6017, 128, 64), // 64Mbit
	norChip("W25Q128FW", "Winbond", 0xEF, 0x6018, 256, 64), // 128Mbit
}
