package bridge

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/karalabe/hid"

	"github.com/mklimuk/flashprog/flashtype"
)

// MultiBridge drives a WCH CH347-class combo adapter: a fixed-size HID
// report carries SPI/I2C/GPIO commands, mirroring the MCP2221's
// request/response protocol but with a second report ID reserved for
// higher-throughput bulk page transfers.
type MultiBridge struct {
	mx           sync.Mutex
	vendorID     uint16
	productID    uint16
	device       *hid.Device
	request      []byte
	response     []byte
	responseWait time.Duration
}

const (
	multibridgeReportSize = 64

	multibridgeCmdSPITransfer = 0x40
	multibridgeCmdSetCS       = 0x41
	multibridgeCmdGPIOSet     = 0x42
	multibridgeCmdGPIOGet     = 0x43
	multibridgeCmdSetSpeed    = 0x44
	multibridgeCmdBulkRead    = 0x50 // second, higher-throughput report
)

func NewMultiBridge(vendorID, productID uint16) *MultiBridge {
	return &MultiBridge{
		vendorID:     vendorID,
		productID:    productID,
		request:      make([]byte, multibridgeReportSize),
		response:     make([]byte, multibridgeReportSize),
		responseWait: 20 * time.Millisecond,
	}
}

func (b *MultiBridge) Name() string { return "multibridge" }

func (b *MultiBridge) Open(ctx context.Context) error {
	// The device connects lazily per-call, matching the teacher
	// adapter's connect/disconnect-per-request discipline; Open only
	// validates the device is actually present.
	devices := hid.Enumerate(b.vendorID, b.productID)
	if len(devices) == 0 {
		return fmt.Errorf("%w: multibridge vendor=%#x product=%#x", flashtype.ErrNotFound, b.vendorID, b.productID)
	}
	return nil
}

func (b *MultiBridge) Close(ctx context.Context) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	return b.disconnect()
}

func (b *MultiBridge) connect() error {
	if b.device != nil {
		return nil
	}
	devices := hid.Enumerate(b.vendorID, b.productID)
	if len(devices) == 0 {
		return fmt.Errorf("%w: multibridge device vanished", flashtype.ErrNotFound)
	}
	dev, err := devices[0].Open()
	if err != nil {
		return fmt.Errorf("%w: multibridge open: %v", flashtype.ErrTransport, err)
	}
	b.device = dev
	return nil
}

func (b *MultiBridge) disconnect() error {
	if b.device == nil {
		return nil
	}
	err := b.device.Close()
	b.device = nil
	if err != nil {
		return fmt.Errorf("%w: multibridge close: %v", flashtype.ErrTransport, err)
	}
	return nil
}

func (b *MultiBridge) resetBuffers() {
	for i := range b.request {
		b.request[i] = 0
	}
	for i := range b.response {
		b.response[i] = 0
	}
}

func (b *MultiBridge) send(ctx context.Context) error {
	if _, err := b.device.Write(b.request); err != nil {
		return fmt.Errorf("%w: multibridge write: %v", flashtype.ErrTransport, err)
	}
	return nil
}

func (b *MultiBridge) receive(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(b.responseWait):
	}
	if _, err := b.device.Read(b.response); err != nil {
		return fmt.Errorf("%w: multibridge read: %v", flashtype.ErrTransport, err)
	}
	return nil
}

func (b *MultiBridge) SetCS(ctx context.Context, active bool) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	b.resetBuffers()
	b.request[0] = multibridgeCmdSetCS
	if active {
		b.request[1] = 1
	}
	if err := b.connect(); err != nil {
		return err
	}
	defer func() {
		if err := b.disconnect(); err != nil {
			slog.Error("multibridge: disconnect failed", "err", err)
		}
	}()
	if err := b.send(ctx); err != nil {
		return err
	}
	return b.receive(ctx)
}

func (b *MultiBridge) SPITransfer(ctx context.Context, tx, rx []byte) error {
	if rx != nil && len(rx) != len(tx) {
		return fmt.Errorf("%w: tx/rx length mismatch", flashtype.ErrInvalidParameter)
	}
	b.mx.Lock()
	defer b.mx.Unlock()

	const maxChunk = multibridgeReportSize - 4
	for off := 0; off < len(tx); off += maxChunk {
		end := off + maxChunk
		if end > len(tx) {
			end = len(tx)
		}
		b.resetBuffers()
		b.request[0] = multibridgeCmdSPITransfer
		binary.LittleEndian.PutUint16(b.request[1:3], uint16(end-off))
		copy(b.request[3:], tx[off:end])
		if err := b.connect(); err != nil {
			return err
		}
		if err := b.send(ctx); err != nil {
			_ = b.disconnect()
			return err
		}
		if err := b.receive(ctx); err != nil {
			_ = b.disconnect()
			return err
		}
		if err := b.disconnect(); err != nil {
			slog.Error("multibridge: disconnect failed", "err", err)
		}
		if rx != nil {
			copy(rx[off:end], b.response[3:3+(end-off)])
		}
	}
	return nil
}

func (b *MultiBridge) SPIWrite(ctx context.Context, data []byte) error {
	return b.SPITransfer(ctx, data, nil)
}

func (b *MultiBridge) SPIRead(ctx context.Context, n int) ([]byte, error) {
	tx := make([]byte, n)
	rx := make([]byte, n)
	if err := b.SPITransfer(ctx, tx, rx); err != nil {
		return nil, err
	}
	return rx, nil
}

func (b *MultiBridge) SPITransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.SetCS(ctx, true); err != nil {
		return err
	}
	err := fn(ctx)
	if csErr := b.SetCS(ctx, false); csErr != nil && err == nil {
		err = csErr
	}
	return err
}

func (b *MultiBridge) I2CWrite(ctx context.Context, addr byte, data []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	b.resetBuffers()
	b.request[0] = 0x90
	binary.LittleEndian.PutUint16(b.request[1:3], uint16(len(data)))
	b.request[3] = addr << 1
	copy(b.request[4:], data)
	if err := b.connect(); err != nil {
		return err
	}
	defer func() { _ = b.disconnect() }()
	if err := b.send(ctx); err != nil {
		return fmt.Errorf("i2c write to %#x failed: %w", addr, err)
	}
	return b.receive(ctx)
}

func (b *MultiBridge) I2CRead(ctx context.Context, addr byte, buf []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	b.resetBuffers()
	b.request[0] = 0x91
	binary.LittleEndian.PutUint16(b.request[1:3], uint16(len(buf)))
	b.request[3] = addr<<1 | 1
	if err := b.connect(); err != nil {
		return err
	}
	defer func() { _ = b.disconnect() }()
	if err := b.send(ctx); err != nil {
		return fmt.Errorf("i2c read from %#x failed: %w", addr, err)
	}
	if err := b.receive(ctx); err != nil {
		return err
	}
	copy(buf, b.response[3:3+len(buf)])
	return nil
}

func (b *MultiBridge) GPIOSet(ctx context.Context, pin int, level bool) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	b.resetBuffers()
	b.request[0] = multibridgeCmdGPIOSet
	b.request[1] = byte(pin)
	if level {
		b.request[2] = 1
	}
	if err := b.connect(); err != nil {
		return err
	}
	defer func() { _ = b.disconnect() }()
	if err := b.send(ctx); err != nil {
		return err
	}
	return b.receive(ctx)
}

func (b *MultiBridge) GPIOGet(ctx context.Context, pin int) (bool, error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	b.resetBuffers()
	b.request[0] = multibridgeCmdGPIOGet
	b.request[1] = byte(pin)
	if err := b.connect(); err != nil {
		return false, err
	}
	defer func() { _ = b.disconnect() }()
	if err := b.send(ctx); err != nil {
		return false, err
	}
	if err := b.receive(ctx); err != nil {
		return false, err
	}
	return b.response[1] != 0, nil
}

func (b *MultiBridge) SetSpeed(ctx context.Context, speed flashtype.SPISpeed) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	b.resetBuffers()
	b.request[0] = multibridgeCmdSetSpeed
	b.request[1] = byte(speed)
	if err := b.connect(); err != nil {
		return err
	}
	defer func() { _ = b.disconnect() }()
	if err := b.send(ctx); err != nil {
		return err
	}
	return b.receive(ctx)
}

func (b *MultiBridge) ReadJEDECID(ctx context.Context) (flashtype.JedecID, error) {
	return readJEDECID(ctx, b)
}

// ReadBulk uses the second, higher-throughput report ID to coalesce a
// whole page read into fewer USB transactions than SPITransfer would.
func (b *MultiBridge) ReadBulk(ctx context.Context, n int) ([]byte, error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	b.resetBuffers()
	b.request[0] = multibridgeCmdBulkRead
	binary.LittleEndian.PutUint16(b.request[1:3], uint16(n))
	if err := b.connect(); err != nil {
		return nil, err
	}
	defer func() { _ = b.disconnect() }()
	if err := b.send(ctx); err != nil {
		return nil, err
	}
	if err := b.receive(ctx); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b.response[3:3+n])
	return out, nil
}
