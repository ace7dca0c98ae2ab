package flashtype

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChipLayout_PagesPerBlock(t *testing.T) {
	layout := ChipLayout{PageSize: 2048, BlockSize: 128 * 1024, OOBSize: 64}
	assert.Equal(t, uint32(64), layout.PagesPerBlock())
}

func TestChipLayout_TotalPages(t *testing.T) {
	layout := ChipLayout{PageSize: 2048, BlockSize: 128 * 1024}
	assert.Equal(t, uint32(65536), layout.TotalPages(CapacityMegabytes(128)))
}

func TestCapacityGigabits(t *testing.T) {
	assert.Equal(t, CapacityMegabytes(128), CapacityGigabits(1))
}

func TestCapacity_String(t *testing.T) {
	assert.Equal(t, "128MB", CapacityMegabytes(128).String())
	assert.Equal(t, "2GB", Capacity(2<<30).String())
	assert.Equal(t, "4KB", CapacityKilobytes(4).String())
}

func TestAddress_PageAndBlock(t *testing.T) {
	addr := Address(2048*3 + 10)
	assert.Equal(t, uint32(3), addr.Page(2048))
	assert.Equal(t, uint32(0), addr.Block(128*1024))
}

func TestProgress_Percentage(t *testing.T) {
	p := Progress{Current: 50, Total: 200}
	assert.InDelta(t, 25.0, p.Percentage(), 0.001)

	empty := Progress{}
	assert.Equal(t, 0.0, empty.Percentage())
}

func TestJedecID_String(t *testing.T) {
	id := JedecID{0xEF, 0xAA, 0x21}
	assert.Equal(t, "EF:AA:21", id.String())
}
