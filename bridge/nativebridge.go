package bridge

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/mklimuk/flashprog/flashtype"
)

// NativeBridge talks to flash chips wired directly to a Linux host's
// spidev/i2c-dev nodes, with no USB adapter in between.
type NativeBridge struct {
	mx       sync.Mutex
	spiName  string
	i2cName  string
	csName   string
	wpName   string
	holdName string

	spiPort spi.PortCloser
	spiConn spi.Conn
	i2cBus  i2c.BusCloser
	csPin   gpio.PinIO
	wpPin   gpio.PinIO
	holdPin gpio.PinIO
}

// NewNativeBridge returns a bridge that Open connects to a SPI port
// and/or an I2C bus by periph device name (empty strings mean "don't
// open this bus"). csName/wpName/
// holdName name GPIO lines used when the SPI port's own CS line is not
// wired to the chip directly (common on bit-banged headers).
func NewNativeBridge(spiName, i2cName, csName, wpName, holdName string) *NativeBridge {
	return &NativeBridge{spiName: spiName, i2cName: i2cName, csName: csName, wpName: wpName, holdName: holdName}
}

func (b *NativeBridge) Name() string { return "native" }

func (b *NativeBridge) Open(ctx context.Context) error {
	b.mx.Lock()
	defer b.mx.Unlock()

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("%w: native bridge host init: %v", flashtype.ErrTransport, err)
	}

	if b.spiName != "" {
		slog.Debug("opening spi bus", "device", b.spiName)
		port, err := spireg.Open(b.spiName)
		if err != nil {
			return fmt.Errorf("%w: native bridge open spi %q: %v", flashtype.ErrNotFound, b.spiName, err)
		}
		b.spiPort = port
		conn, err := port.Connect(physic.MegaHertz*3, spi.Mode0, 8)
		if err != nil {
			return fmt.Errorf("%w: native bridge connect spi: %v", flashtype.ErrTransport, err)
		}
		b.spiConn = conn
	}

	if b.i2cName != "" {
		slog.Debug("opening i2c bus", "device", b.i2cName)
		bus, err := i2creg.Open(b.i2cName)
		if err != nil {
			return fmt.Errorf("%w: native bridge open i2c %q: %v", flashtype.ErrNotFound, b.i2cName, err)
		}
		b.i2cBus = bus
	}

	if b.csName != "" {
		b.csPin = gpioreg.ByName(b.csName)
	}
	if b.wpName != "" {
		b.wpPin = gpioreg.ByName(b.wpName)
	}
	if b.holdName != "" {
		b.holdPin = gpioreg.ByName(b.holdName)
	}
	return nil
}

func (b *NativeBridge) Close(ctx context.Context) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	var firstErr error
	if b.spiPort != nil {
		if err := b.spiPort.Close(); err != nil {
			firstErr = err
		}
	}
	if b.i2cBus != nil {
		if err := b.i2cBus.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (b *NativeBridge) SetCS(ctx context.Context, active bool) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	if b.csPin == nil {
		// The spi.Conn drives CS itself around each Tx call.
		return nil
	}
	level := gpio.High
	if active {
		level = gpio.Low
	}
	return b.csPin.Out(level)
}

func (b *NativeBridge) SPITransfer(ctx context.Context, tx, rx []byte) error {
	if rx != nil && len(rx) != len(tx) {
		return fmt.Errorf("%w: tx/rx length mismatch", flashtype.ErrInvalidParameter)
	}
	b.mx.Lock()
	defer b.mx.Unlock()
	if b.spiConn == nil {
		return fmt.Errorf("%w: native bridge spi not open", flashtype.ErrTransport)
	}
	out := rx
	if out == nil {
		out = make([]byte, len(tx))
	}
	if err := b.spiConn.Tx(tx, out); err != nil {
		return fmt.Errorf("%w: native bridge spi tx: %v", flashtype.ErrTransport, err)
	}
	return nil
}

func (b *NativeBridge) SPIWrite(ctx context.Context, data []byte) error {
	return b.SPITransfer(ctx, data, nil)
}

func (b *NativeBridge) SPIRead(ctx context.Context, n int) ([]byte, error) {
	tx := make([]byte, n)
	rx := make([]byte, n)
	if err := b.SPITransfer(ctx, tx, rx); err != nil {
		return nil, err
	}
	return rx, nil
}

func (b *NativeBridge) SPITransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.SetCS(ctx, true); err != nil {
		return err
	}
	err := fn(ctx)
	if csErr := b.SetCS(ctx, false); csErr != nil && err == nil {
		err = csErr
	}
	return err
}

func (b *NativeBridge) I2CWrite(ctx context.Context, addr byte, data []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	if b.i2cBus == nil {
		return fmt.Errorf("%w: native bridge i2c not open", flashtype.ErrTransport)
	}
	slog.Debug("i2c write", "address", addr, "buffer", hex.Dump(data))
	if err := b.i2cBus.Tx(uint16(addr), data, nil); err != nil {
		return fmt.Errorf("%w: native bridge i2c write to %#x: %v", flashtype.ErrTransport, addr, err)
	}
	return nil
}

func (b *NativeBridge) I2CRead(ctx context.Context, addr byte, buf []byte) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	if b.i2cBus == nil {
		return fmt.Errorf("%w: native bridge i2c not open", flashtype.ErrTransport)
	}
	if err := b.i2cBus.Tx(uint16(addr), nil, buf); err != nil {
		return fmt.Errorf("%w: native bridge i2c read from %#x: %v", flashtype.ErrTransport, addr, err)
	}
	slog.Debug("i2c read completed", "address", addr, "buffer", hex.Dump(buf))
	return nil
}

func (b *NativeBridge) GPIOSet(ctx context.Context, pin int, level bool) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	p := b.auxPin(pin)
	if p == nil {
		return fmt.Errorf("%w: native bridge unknown aux pin %d", flashtype.ErrInvalidParameter, pin)
	}
	l := gpio.Low
	if level {
		l = gpio.High
	}
	return p.Out(l)
}

func (b *NativeBridge) GPIOGet(ctx context.Context, pin int) (bool, error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	p := b.auxPin(pin)
	if p == nil {
		return false, fmt.Errorf("%w: native bridge unknown aux pin %d", flashtype.ErrInvalidParameter, pin)
	}
	return p.Read() == gpio.High, nil
}

func (b *NativeBridge) auxPin(pin int) gpio.PinIO {
	switch pin {
	case 0:
		return b.wpPin
	case 1:
		return b.holdPin
	default:
		return nil
	}
}

func (b *NativeBridge) SetSpeed(ctx context.Context, speed flashtype.SPISpeed) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	if b.spiPort == nil {
		return fmt.Errorf("%w: native bridge spi not open", flashtype.ErrTransport)
	}
	conn, err := b.spiPort.Connect(speedToFrequency(speed), spi.Mode0, 8)
	if err != nil {
		return fmt.Errorf("%w: native bridge reconnect: %v", flashtype.ErrTransport, err)
	}
	b.spiConn = conn
	return nil
}

func (b *NativeBridge) ReadJEDECID(ctx context.Context) (flashtype.JedecID, error) {
	return readJEDECID(ctx, b)
}
