package chip

import "github.com/mklimuk/flashprog/flashtype"

// spiEepromChip builds a generic 25xxx-family spec. These parts rarely
// carry a real JEDEC ID (most predate the JEDEC RDID convention), so
// the database uses the same synthetic-ID scheme as the Microwire and
// I2C families: a marker byte, a capacity code, and a spare byte.
func spiEepromChip(name string, capacityBytes, pageSize uint32, capacityCode byte) flashtype.ChipSpec {
	return flashtype.ChipSpec{
		Name:         name,
		Manufacturer: "Generic SPI EEPROM",
		JedecID:      flashtype.JedecID{0xFE, capacityCode, 0x00},
		Family:       flashtype.FamilySPIEeprom,
		Capacity:     flashtype.CapacityBytes(capacityBytes),
		Layout:       flashtype.ChipLayout{PageSize: pageSize, BlockSize: pageSize},
	}
}

var spiEepromChips = []flashtype.ChipSpec{
	spiEepromChip("25AA010A", 128, 16, 0x01),
	spiEepromChip("25AA080A", 1024, 32, 0x02),
	spiEepromChip("25AA1024", 131072, 256, 0x03),
}

func i2cEepromChip(name string, capacityBytes, pageSize uint32, capacityCode byte) flashtype.ChipSpec {
	return flashtype.ChipSpec{
		Name:         name,
		Manufacturer: "Generic I2C EEPROM",
		JedecID:      flashtype.JedecID{0xFD, capacityCode, 0x00},
		Family:       flashtype.FamilyI2CEeprom,
		Capacity:     flashtype.CapacityBytes(capacityBytes),
		Layout:       flashtype.ChipLayout{PageSize: pageSize, BlockSize: pageSize},
	}
}

var i2cEepromChips = []flashtype.ChipSpec{
	i2cEepromChip("24C02", 256, 8, 0x02),
	i2cEepromChip("24C16", 2048, 16, 0x05),
	i2cEepromChip("24C256", 32768, 64, 0x09),
}

func microwireChip(name string, capacityBytes uint32, capacityCode byte) flashtype.ChipSpec {
	return flashtype.ChipSpec{
		Name:         name,
		Manufacturer: "Generic Microwire EEPROM",
		JedecID:      flashtype.JedecID{0xFC, capacityCode, 0x00},
		Family:       flashtype.FamilyMicrowireEeprom,
		Capacity:     flashtype.CapacityBytes(capacityBytes),
		Layout:       flashtype.ChipLayout{PageSize: 1, BlockSize: 1},
	}
}

var microwireChips = []flashtype.ChipSpec{
	microwireChip("93C06", 32, 0x01),
	microwireChip("93C46", 128, 0x02),
	microwireChip("93C56", 256, 0x03),
	microwireChip("93C66", 512, 0x04),
	microwireChip("93C76", 1024, 0x05),
	microwireChip("93C86", 2048, 0x06),
}

func framChip(name string, device uint16, sizeKB uint32) flashtype.ChipSpec {
	return flashtype.ChipSpec{
		Name:         name,
		Manufacturer: "Cypress",
		JedecID:      flashtype.JedecID{0x04, byte(device >> 8), byte(device)},
		Family:       flashtype.FamilyFRAM,
		Capacity:     flashtype.CapacityBytes(sizeKB * 1024),
		Layout:       flashtype.ChipLayout{PageSize: 256, BlockSize: 256},
	}
}

var framChips = []flashtype.ChipSpec{
	framChip("FM25V01", 0x7F00, 16),
	framChip("FM25V02", 0x7F01, 32),
	framChip("CY15B102Q", 0x0425, 256),
}
