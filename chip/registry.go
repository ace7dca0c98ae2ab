// Package chip holds a static table of known flash part specifications,
// keyed by JEDEC (or synthetic) identification bytes. It is a flat data
// table, not a driver: identify and orchestrator consult it to turn a
// detected ID into a flashtype.ChipSpec.
package chip

import "github.com/mklimuk/flashprog/flashtype"

// Registry is a read-only lookup table over a fixed chip list.
type Registry struct {
	chips []flashtype.ChipSpec
}

// NewRegistry builds a registry from the built-in chip table. Real
// deployments may want the full ~hundred-part database the spec's
// detection surface implies; this ships a representative sample of
// each supported family, a few parts per flashtype.FlashFamily, enough
// to exercise every protocol engine end to end.
func NewRegistry() *Registry {
	chips := make([]flashtype.ChipSpec, 0, len(norChips)+len(spiEepromChips)+len(i2cEepromChips)+len(microwireChips)+len(framChips)+len(nandChips))
	chips = append(chips, norChips...)
	chips = append(chips, nandChips...)
	chips = append(chips, spiEepromChips...)
	chips = append(chips, i2cEepromChips...)
	chips = append(chips, microwireChips...)
	chips = append(chips, framChips...)
	return &Registry{chips: chips}
}

// FindByID returns the spec whose JedecID matches id exactly.
func (r *Registry) FindByID(id flashtype.JedecID) (flashtype.ChipSpec, bool) {
	for _, c := range r.chips {
		if c.JedecID == id {
			return c, true
		}
	}
	return flashtype.ChipSpec{}, false
}

// FindByManufacturerDevice matches on the first two ID bytes only,
// ignoring the third (density/variant) byte — useful for families
// where the programmer only reads a 2-byte legacy ID.
func (r *Registry) FindByManufacturerDevice(manufacturer, device byte) (flashtype.ChipSpec, bool) {
	for _, c := range r.chips {
		if c.JedecID[0] == manufacturer && c.JedecID[1] == device {
			return c, true
		}
	}
	return flashtype.ChipSpec{}, false
}

// ListAll returns every chip the registry knows about.
func (r *Registry) ListAll() []flashtype.ChipSpec {
	out := make([]flashtype.ChipSpec, len(r.chips))
	copy(out, r.chips)
	return out
}

// ListByFamily filters ListAll to one flash family.
func (r *Registry) ListByFamily(family flashtype.FlashFamily) []flashtype.ChipSpec {
	var out []flashtype.ChipSpec
	for _, c := range r.chips {
		if c.Family == family {
			out = append(out, c)
		}
	}
	return out
}
