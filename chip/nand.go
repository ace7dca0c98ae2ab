package chip

import "github.com/mklimuk/flashprog/flashtype"

func nandChip(name string, id flashtype.JedecID, capacityGbit, pageSize, oobSize, blockSizeKB uint32) flashtype.ChipSpec {
	return flashtype.ChipSpec{
		Name:         name,
		Manufacturer: "Winbond",
		JedecID:      id,
		Family:       flashtype.FamilyNand,
		Capacity:     flashtype.CapacityGigabits(capacityGbit),
		Layout: flashtype.ChipLayout{
			PageSize:  pageSize,
			BlockSize: blockSizeKB * 1024,
			OOBSize:   oobSize,
		},
		Capabilities: flashtype.ChipCapabilities{
			SupportsECCControl: true,
			SupportsDualSPI:    true,
		},
	}
}

// nandChips is a representative slice of the Winbond W25N/W25M family.
var nandChips = []flashtype.ChipSpec{
	nandChip("W25N01GV", flashtype.JedecID{0xEF, 0xAA, 0x21}, 1, 2048, 64, 128),
	nandChip("W25N02KV", flashtype.JedecID{0xEF, 0xAA, 0x22}, 2, 2048, 128, 128),
	nandChip("W25M02GV", flashtype.JedecID{0xEF, 0xAB, 0x21}, 2, 2048, 64, 128),
}
