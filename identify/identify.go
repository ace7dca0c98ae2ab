// Package identify turns a connected chip's JEDEC ID into a
// flashtype.ChipSpec by reading the ID off an already-open bridge and
// looking it up in a chip.Registry.
package identify

import (
	"context"
	"fmt"

	"github.com/mklimuk/flashprog/bridge"
	"github.com/mklimuk/flashprog/chip"
	"github.com/mklimuk/flashprog/flashtype"
)

// Detect reads the JEDEC ID from br and resolves it against registry.
// br must already be open. Microwire and some SPI EEPROM parts don't
// carry a real JEDEC ID; callers that know they're targeting one of
// those families should skip Detect and build the chip.Registry entry
// or a manual flashtype.ChipSpec directly instead.
func Detect(ctx context.Context, br bridge.Bridge, registry *chip.Registry) (flashtype.ChipSpec, error) {
	id, err := br.ReadJEDECID(ctx)
	if err != nil {
		return flashtype.ChipSpec{}, fmt.Errorf("%w: read jedec id: %v", flashtype.ErrTransport, err)
	}

	if spec, ok := registry.FindByID(id); ok {
		return spec, nil
	}
	if spec, ok := registry.FindByManufacturerDevice(id[0], id[1]); ok {
		return spec, nil
	}
	return flashtype.ChipSpec{}, &flashtype.UnsupportedChipError{ID: id}
}

// ListSupported returns every chip the registry knows about, for a
// CLI's "what can this programmer talk to" listing.
func ListSupported(registry *chip.Registry) []flashtype.ChipSpec {
	return registry.ListAll()
}
