package chip_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/flashprog/chip"
	"github.com/mklimuk/flashprog/flashtype"
)

func TestRegistry_FindByID(t *testing.T) {
	reg := chip.NewRegistry()

	spec, ok := reg.FindByID(flashtype.JedecID{0xEF, 0xAA, 0x21})
	require.True(t, ok)
	assert.Equal(t, "W25N01GV", spec.Name)
	assert.Equal(t, flashtype.FamilyNand, spec.Family)
}

func TestRegistry_FindByID_Unknown(t *testing.T) {
	reg := chip.NewRegistry()
	_, ok := reg.FindByID(flashtype.JedecID{0x00, 0x00, 0x00})
	assert.False(t, ok)
}

func TestRegistry_ListByFamily(t *testing.T) {
	reg := chip.NewRegistry()
	nors := reg.ListByFamily(flashtype.FamilyNor)
	assert.NotEmpty(t, nors)
	for _, c := range nors {
		assert.Equal(t, flashtype.FamilyNor, c.Family)
	}
}

func TestRegistry_FindByManufacturerDevice(t *testing.T) {
	reg := chip.NewRegistry()
	spec, ok := reg.FindByManufacturerDevice(0xEF, 0xAA)
	require.True(t, ok)
	assert.Equal(t, flashtype.FamilyNand, spec.Family)
}

func TestRegistry_ListAllNotEmpty(t *testing.T) {
	reg := chip.NewRegistry()
	assert.NotEmpty(t, reg.ListAll())
}
