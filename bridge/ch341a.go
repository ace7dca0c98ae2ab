package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/gousb"

	"github.com/mklimuk/flashprog/flashtype"
)

// CH341A vendor/product ID and bulk endpoint numbers, as enumerated by
// the chip in its "SPI/I2C" (EPP/MEM) USB personality.
const (
	ch341aVendorID  = 0x1A86
	ch341aProductID = 0x5512

	ch341aEndpointOut = 0x02
	ch341aEndpointIn  = 0x82

	// ch341aPacketLen is the largest single bulk transfer the chip
	// accepts for one SPI stream command.
	ch341aPacketLen = 32

	ch341aCmdSPIStream = 0xA8
	ch341aCmdUIOStream = 0xAB

	ch341aCmdUIOStmEnd = 0x20
	ch341aCmdUIOStmIn  = 0x00
	ch341aCmdUIOStmOut = 0x80
	ch341aCmdUIOStmDir = 0x40

	// CS is bit 0 of the UIO byte on the CH341A's SPI personality.
	ch341aCSBit = 0x01
)

// CH341AProgrammer drives a CH341A USB-to-SPI adapter via raw bulk
// transfers (the CH341A is not a HID device).
type CH341AProgrammer struct {
	mx      sync.Mutex
	ctx     *gousb.Context
	dev     *gousb.Device
	intf    *gousb.Interface
	done    func()
	outEP   *gousb.OutEndpoint
	inEP    *gousb.InEndpoint
	csState bool
}

func NewCH341AProgrammer() *CH341AProgrammer {
	return &CH341AProgrammer{}
}

func (p *CH341AProgrammer) Name() string { return "ch341a" }

func (p *CH341AProgrammer) Open(ctx context.Context) error {
	p.mx.Lock()
	defer p.mx.Unlock()

	p.ctx = gousb.NewContext()
	dev, err := p.ctx.OpenDeviceWithVIDPID(ch341aVendorID, ch341aProductID)
	if err != nil {
		p.ctx.Close()
		return fmt.Errorf("%w: ch341a open failed: %v", flashtype.ErrNotFound, err)
	}
	if dev == nil {
		p.ctx.Close()
		return fmt.Errorf("%w: no ch341a device found", flashtype.ErrNotFound)
	}
	p.dev = dev

	if err := p.dev.SetAutoDetach(true); err != nil {
		slog.Warn("ch341a: could not enable auto kernel-driver detach", "err", err)
	}

	intf, done, err := p.dev.DefaultInterface()
	if err != nil {
		p.dev.Close()
		p.ctx.Close()
		return fmt.Errorf("%w: ch341a claim interface: %v", flashtype.ErrTransport, err)
	}
	p.intf, p.done = intf, done

	outEP, err := p.intf.OutEndpoint(ch341aEndpointOut)
	if err != nil {
		return fmt.Errorf("%w: ch341a out endpoint: %v", flashtype.ErrTransport, err)
	}
	inEP, err := p.intf.InEndpoint(ch341aEndpointIn)
	if err != nil {
		return fmt.Errorf("%w: ch341a in endpoint: %v", flashtype.ErrTransport, err)
	}
	p.outEP, p.inEP = outEP, inEP

	return p.configureSPI(ctx)
}

func (p *CH341AProgrammer) Close(ctx context.Context) error {
	p.mx.Lock()
	defer p.mx.Unlock()
	if p.done != nil {
		p.done()
	}
	if p.dev != nil {
		_ = p.dev.Close()
	}
	if p.ctx != nil {
		_ = p.ctx.Close()
	}
	return nil
}

// configureSPI puts the chip in SPI mode with CS deasserted. The
// CH341A has no separate "configure" opcode beyond driving the UIO
// stream once at start-of-day.
func (p *CH341AProgrammer) configureSPI(ctx context.Context) error {
	cmd := []byte{
		ch341aCmdUIOStream,
		ch341aCmdUIOStmOut | ch341aCSBit, // CS idle high (deasserted)
		ch341aCmdUIOStmDir | 0x3F,        // all UIO pins as outputs
		ch341aCmdUIOStmEnd,
	}
	_, err := p.outEP.Write(cmd)
	return err
}

func (p *CH341AProgrammer) SetCS(ctx context.Context, active bool) error {
	p.mx.Lock()
	defer p.mx.Unlock()
	p.csState = active
	level := byte(ch341aCSBit)
	if active {
		level = 0x00
	}
	cmd := []byte{ch341aCmdUIOStream, ch341aCmdUIOStmOut | level, ch341aCmdUIOStmEnd}
	_, err := p.outEP.Write(cmd)
	if err != nil {
		return fmt.Errorf("%w: ch341a set_cs: %v", flashtype.ErrTransport, err)
	}
	return nil
}

func (p *CH341AProgrammer) SPITransfer(ctx context.Context, tx, rx []byte) error {
	if rx != nil && len(rx) != len(tx) {
		return fmt.Errorf("%w: tx/rx length mismatch", flashtype.ErrInvalidParameter)
	}
	p.mx.Lock()
	defer p.mx.Unlock()

	for off := 0; off < len(tx); off += ch341aPacketLen {
		end := off + ch341aPacketLen
		if end > len(tx) {
			end = len(tx)
		}
		chunk := tx[off:end]
		packet := make([]byte, 1+len(chunk))
		packet[0] = ch341aCmdSPIStream
		copy(packet[1:], chunk)
		if _, err := p.outEP.Write(packet); err != nil {
			return fmt.Errorf("%w: ch341a spi write: %v", flashtype.ErrTransport, err)
		}
		resp := make([]byte, len(chunk))
		if _, err := p.inEP.Read(resp); err != nil {
			return fmt.Errorf("%w: ch341a spi read: %v", flashtype.ErrTransport, err)
		}
		if rx != nil {
			copy(rx[off:end], resp)
		}
	}
	return nil
}

func (p *CH341AProgrammer) SPIWrite(ctx context.Context, data []byte) error {
	return p.SPITransfer(ctx, data, nil)
}

func (p *CH341AProgrammer) SPIRead(ctx context.Context, n int) ([]byte, error) {
	tx := make([]byte, n)
	rx := make([]byte, n)
	if err := p.SPITransfer(ctx, tx, rx); err != nil {
		return nil, err
	}
	return rx, nil
}

func (p *CH341AProgrammer) SPITransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := p.SetCS(ctx, true); err != nil {
		return err
	}
	err := fn(ctx)
	if csErr := p.SetCS(ctx, false); csErr != nil && err == nil {
		err = csErr
	}
	return err
}

// I2CWrite/I2CRead report ErrNotSupported: this driver only drives the
// CH341A's SPI stream and UIO commands.
func (p *CH341AProgrammer) I2CWrite(ctx context.Context, addr byte, data []byte) error {
	return fmt.Errorf("%w: ch341a i2c", flashtype.ErrNotSupported)
}

func (p *CH341AProgrammer) I2CRead(ctx context.Context, addr byte, buf []byte) error {
	return fmt.Errorf("%w: ch341a i2c", flashtype.ErrNotSupported)
}

// GPIOSet/GPIOGet address the CH341A's remaining UIO pins (WP/HOLD).
func (p *CH341AProgrammer) GPIOSet(ctx context.Context, pin int, level bool) error {
	p.mx.Lock()
	defer p.mx.Unlock()
	bit := byte(1) << uint(pin)
	val := byte(0)
	if level {
		val = bit
	}
	cmd := []byte{ch341aCmdUIOStream, ch341aCmdUIOStmOut | val, ch341aCmdUIOStmEnd}
	_, err := p.outEP.Write(cmd)
	return err
}

func (p *CH341AProgrammer) GPIOGet(ctx context.Context, pin int) (bool, error) {
	return false, fmt.Errorf("%w: ch341a gpio readback", flashtype.ErrNotSupported)
}

func (p *CH341AProgrammer) SetSpeed(ctx context.Context, speed flashtype.SPISpeed) error {
	// The CH341A's SPI clock is fixed by its USB full-speed bulk
	// throughput; there is no documented divider to reprogram.
	return nil
}

func (p *CH341AProgrammer) ReadJEDECID(ctx context.Context) (flashtype.JedecID, error) {
	return readJEDECID(ctx, p)
}
