package identify_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/flashprog/chip"
	"github.com/mklimuk/flashprog/faketransport"
	"github.com/mklimuk/flashprog/flashtype"
	"github.com/mklimuk/flashprog/identify"
)

func TestDetect_KnownChip(t *testing.T) {
	fake := faketransport.NewSPIFlash(1024, faketransport.OpcodeTable{})
	fake.JedecID = flashtype.JedecID{0xEF, 0xAA, 0x21}
	registry := chip.NewRegistry()

	spec, err := identify.Detect(context.Background(), fake, registry)
	require.NoError(t, err)
	assert.Equal(t, "W25N01GV", spec.Name)
}

func TestDetect_UnknownChip(t *testing.T) {
	fake := faketransport.NewSPIFlash(1024, faketransport.OpcodeTable{})
	fake.JedecID = flashtype.JedecID{0x00, 0x00, 0x00}
	registry := chip.NewRegistry()

	_, err := identify.Detect(context.Background(), fake, registry)
	require.Error(t, err)
	var unsupported *flashtype.UnsupportedChipError
	assert.True(t, errors.As(err, &unsupported))
	assert.True(t, errors.Is(err, flashtype.ErrFlashNotDetected))
}
