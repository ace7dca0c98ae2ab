package flashtype

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEccStatus_Validity(t *testing.T) {
	assert.True(t, ECCNoError().IsValid())
	assert.True(t, ECCCorrected(2).IsValid())
	assert.False(t, ECCUncorrectable().IsValid())
	assert.True(t, ECCNotAvailable().IsValid())
}

func TestEccStatus_HadCorrections(t *testing.T) {
	assert.False(t, ECCNoError().HadCorrections())
	assert.True(t, ECCCorrected(1).HadCorrections())
	assert.False(t, ECCUncorrectable().HadCorrections())
}

func TestEccPolicy_IsEnabled(t *testing.T) {
	assert.True(t, EccHardware.IsEnabled())
	assert.True(t, EccSoftware.IsEnabled())
	assert.False(t, EccDisabled.IsEnabled())
	assert.True(t, EccHardware.IsHardware())
}
