package main

import (
	"fmt"

	"github.com/mklimuk/flashprog/bridge"
	"github.com/mklimuk/flashprog/flashtype"
	"github.com/mklimuk/flashprog/fram"
	"github.com/mklimuk/flashprog/i2ceeprom"
	"github.com/mklimuk/flashprog/microwire"
	"github.com/mklimuk/flashprog/nand"
	"github.com/mklimuk/flashprog/nor"
	"github.com/mklimuk/flashprog/orchestrator"
	"github.com/mklimuk/flashprog/spieeprom"
)

// buildEngine picks the protocol engine matching spec.Family. i2cAddr
// is only consulted for FamilyI2CEeprom; microwire bit-bangs directly
// over br's own GPIO lines (br satisfies microwire.PinDriver since its
// GPIOSet/GPIOGet shape is identical).
func buildEngine(br bridge.Bridge, spec flashtype.ChipSpec, i2cAddr byte) (orchestrator.Engine, error) {
	switch spec.Family {
	case flashtype.FamilyNor:
		return nor.New(br, spec), nil
	case flashtype.FamilyNand:
		return nand.New(br, spec), nil
	case flashtype.FamilySPIEeprom:
		return spieeprom.New(br, spec), nil
	case flashtype.FamilyI2CEeprom:
		return i2ceeprom.New(br, spec, i2cAddr), nil
	case flashtype.FamilyMicrowireEeprom:
		return microwire.New(br, spec), nil
	case flashtype.FamilyFRAM:
		return fram.New(br, spec), nil
	default:
		return nil, fmt.Errorf("unsupported chip family %s", spec.Family)
	}
}
