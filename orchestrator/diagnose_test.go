package orchestrator_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mklimuk/flashprog/faketransport"
	"github.com/mklimuk/flashprog/flashtype"
	"github.com/mklimuk/flashprog/orchestrator"
)

func TestDiagnose_HealthyBridge(t *testing.T) {
	fake := faketransport.NewSPIFlash(1024, faketransport.OpcodeTable{})
	fake.JedecID = flashtype.JedecID{0xEF, 0xAA, 0x21}

	report := orchestrator.Diagnose(context.Background(), fake)

	assert.True(t, report.BridgeReachable)
	assert.Empty(t, report.BridgeError)
	assert.True(t, report.GPIOOK)
	assert.Equal(t, flashtype.JedecID{0xEF, 0xAA, 0x21}, report.JedecID)
	assert.Equal(t, "Winbond", report.PossibleVendor)
}

func TestDiagnose_UnknownVendor(t *testing.T) {
	fake := faketransport.NewSPIFlash(1024, faketransport.OpcodeTable{})
	fake.JedecID = flashtype.JedecID{0x77, 0x00, 0x00}

	report := orchestrator.Diagnose(context.Background(), fake)

	assert.Equal(t, flashtype.JedecID{0x77, 0x00, 0x00}, report.JedecID)
	assert.Empty(t, report.PossibleVendor)
}
