package orchestrator

import (
	"context"
	"fmt"

	"github.com/mklimuk/flashprog/bridge"
	"github.com/mklimuk/flashprog/flashtype"
)

// manufacturerNames maps a JEDEC ID's first byte to the manufacturer
// it's commonly assigned to, for diagnostic reporting only; chip
// identification itself goes through the chip.Registry, never this
// table.
var manufacturerNames = map[byte]string{
	0xEF: "Winbond",
	0xC8: "GigaDevice",
	0xC2: "Macronix",
	0x20: "Micron/XTX",
	0x1C: "EON",
	0x9D: "ISSI",
	0xBF: "SST/Microchip",
	0x01: "Spansion/Cypress",
}

// DiagnosticReport is the read-only health check result from
// Diagnose. It never touches chip contents: no programming, no erase,
// nothing beyond toggling lines and reading the ID opcode.
type DiagnosticReport struct {
	BridgeReachable bool
	BridgeError     string
	SPIBusResponse  [3]byte
	SPIBusAllFF     bool
	SPIBusAllZero   bool
	GPIOOK          bool
	GPIOError       string
	JedecID         flashtype.JedecID
	JedecError      string
	PossibleVendor  string
}

// Diagnose runs a read-only health check against br: chip-select
// toggling, a dummy SPI bus exchange, a GPIO toggle sweep, and a raw
// JEDEC ID read, in that order — the same sequence and interpretation
// as the original tool's diagnostic command, translated into a result
// value instead of printed console output (the CLI layer decides how
// to render it).
func Diagnose(ctx context.Context, br bridge.Bridge) DiagnosticReport {
	var report DiagnosticReport

	if err := testBasicCommunication(ctx, br); err != nil {
		report.BridgeError = err.Error()
		return report
	}
	report.BridgeReachable = true

	rx, err := testSPIBus(ctx, br)
	if err != nil {
		report.BridgeError = err.Error()
		return report
	}
	report.SPIBusResponse = rx
	report.SPIBusAllFF = rx == [3]byte{0xFF, 0xFF, 0xFF}
	report.SPIBusAllZero = rx == [3]byte{0x00, 0x00, 0x00}

	if err := testGPIO(ctx, br); err != nil {
		report.GPIOError = err.Error()
	} else {
		report.GPIOOK = true
	}

	id, err := br.ReadJEDECID(ctx)
	if err != nil {
		report.JedecError = err.Error()
		return report
	}
	report.JedecID = id
	if name, ok := manufacturerNames[id[0]]; ok {
		report.PossibleVendor = name
	}

	return report
}

func testBasicCommunication(ctx context.Context, br bridge.Bridge) error {
	if err := br.SetCS(ctx, false); err != nil {
		return fmt.Errorf("%w: deassert cs: %v", flashtype.ErrTransport, err)
	}
	if err := br.SetCS(ctx, true); err != nil {
		return fmt.Errorf("%w: assert cs: %v", flashtype.ErrTransport, err)
	}
	return br.SetCS(ctx, false)
}

func testSPIBus(ctx context.Context, br bridge.Bridge) ([3]byte, error) {
	var rx [3]byte
	err := br.SPITransaction(ctx, func(ctx context.Context) error {
		buf := make([]byte, 3)
		if err := br.SPITransfer(ctx, []byte{0xFF, 0xFF, 0xFF}, buf); err != nil {
			return err
		}
		copy(rx[:], buf)
		return nil
	})
	if err != nil {
		return rx, fmt.Errorf("%w: spi bus test: %v", flashtype.ErrTransport, err)
	}
	return rx, nil
}

func testGPIO(ctx context.Context, br bridge.Bridge) error {
	for pin := 0; pin < 6; pin++ {
		if err := br.GPIOSet(ctx, pin, true); err != nil {
			return fmt.Errorf("%w: gpio %d high: %v", flashtype.ErrTransport, pin, err)
		}
		if err := br.GPIOSet(ctx, pin, false); err != nil {
			return fmt.Errorf("%w: gpio %d low: %v", flashtype.ErrTransport, pin, err)
		}
	}
	return nil
}
