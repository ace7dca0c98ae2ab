// Package bridge abstracts the USB host adapter that sits between the
// programmer application and the flash chip's pins. A Bridge exposes
// raw SPI/I2C/GPIO primitives; it knows nothing about chip command
// sets, pages or blocks — that is the protocol engines' job.
package bridge

import (
	"context"

	"github.com/mklimuk/flashprog/flashtype"
)

// Bridge is the contract every host adapter implementation satisfies.
// Implementations must deassert CS on every return path, including
// error returns, so callers can always assume the bus is idle after a
// call returns.
type Bridge interface {
	// Open acquires the underlying device. Implementations that connect
	// per-call (USB HID adapters typically do) may treat this as a
	// no-op and connect lazily inside each method instead.
	Open(ctx context.Context) error
	Close(ctx context.Context) error

	// SetCS drives the chip-select line. active=true asserts CS (low,
	// on all the chip families this package targets).
	SetCS(ctx context.Context, active bool) error

	// SPITransfer performs a full-duplex SPI exchange: tx and rx must
	// be the same length. rx may be nil if the caller does not need
	// the received bytes.
	SPITransfer(ctx context.Context, tx, rx []byte) error

	// SPIWrite is shorthand for SPITransfer with a discarded rx buffer.
	SPIWrite(ctx context.Context, data []byte) error

	// SPIRead is shorthand for SPITransfer with an all-zero tx buffer.
	SPIRead(ctx context.Context, n int) ([]byte, error)

	// SPITransaction wraps fn between SetCS(true) and a guaranteed
	// SetCS(false) once fn returns, including when fn returns an error.
	SPITransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// I2CWrite/I2CRead address an I2C device by its 7-bit address.
	I2CWrite(ctx context.Context, addr byte, data []byte) error
	I2CRead(ctx context.Context, addr byte, buf []byte) error

	// GPIOSet/GPIOGet drive or sample an auxiliary pin (HOLD, WP, or a
	// bit-banged Microwire line), identified by an implementation
	// specific pin number.
	GPIOSet(ctx context.Context, pin int, level bool) error
	GPIOGet(ctx context.Context, pin int) (bool, error)

	// SetSpeed applies a coarse speed hint; implementations map it to
	// whatever clock divider or frequency table their hardware offers.
	SetSpeed(ctx context.Context, speed flashtype.SPISpeed) error

	// ReadJEDECID issues the standard 0x9F opcode and returns the raw
	// 3-byte identification. Chip families with no such opcode (most
	// EEPROMs) are identified by the registry instead, not via this
	// method.
	ReadJEDECID(ctx context.Context) (flashtype.JedecID, error)

	// Name identifies the bridge implementation for logging and the
	// discovery report (e.g. "ch341a", "mpsse", "native-linux-spi").
	Name() string
}

// readJEDECID is the shared opcode-0x9F implementation every bridge
// that speaks plain SPI can delegate to.
func readJEDECID(ctx context.Context, b Bridge) (flashtype.JedecID, error) {
	var id flashtype.JedecID
	err := b.SPITransaction(ctx, func(ctx context.Context) error {
		if err := b.SPIWrite(ctx, []byte{0x9F}); err != nil {
			return err
		}
		raw, err := b.SPIRead(ctx, 3)
		if err != nil {
			return err
		}
		copy(id[:], raw)
		return nil
	})
	return id, err
}
