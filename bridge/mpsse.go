package bridge

import (
	"context"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/mklimuk/flashprog/flashtype"
)

// MPSSEBridge drives an FTDI FT232H/FT2232H in MPSSE mode through
// periph.io's ftdi driver, reusing its spi.Port/spi.Conn abstraction
// directly rather than re-implementing MPSSE framing.
type MPSSEBridge struct {
	mx       sync.Mutex
	portName string
	port     spi.PortCloser
	conn     spi.Conn
	csActive bool
	holdPin  gpio.PinIO
	wpPin    gpio.PinIO
}

// NewMPSSEBridge returns a bridge that Open connects to the named SPI
// port (empty string selects the first SPI port periph finds).
func NewMPSSEBridge(portName string) *MPSSEBridge {
	return &MPSSEBridge{portName: portName}
}

func (b *MPSSEBridge) Name() string { return "mpsse" }

func (b *MPSSEBridge) Open(ctx context.Context) error {
	b.mx.Lock()
	defer b.mx.Unlock()

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("%w: mpsse host init: %v", flashtype.ErrTransport, err)
	}
	port, err := spireg.Open(b.portName)
	if err != nil {
		return fmt.Errorf("%w: mpsse open %q: %v", flashtype.ErrNotFound, b.portName, err)
	}
	b.port = port

	conn, err := port.Connect(physic.MegaHertz*3, spi.Mode0, 8)
	if err != nil {
		return fmt.Errorf("%w: mpsse connect: %v", flashtype.ErrTransport, err)
	}
	b.conn = conn

	if p, ok := conn.(interface{ CS() gpio.PinOut }); ok {
		_ = p // CS is driven by the spi.Conn transparently per Tx call
	}
	return nil
}

func (b *MPSSEBridge) Close(ctx context.Context) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	if b.port == nil {
		return nil
	}
	err := b.port.Close()
	b.port = nil
	b.conn = nil
	return err
}

// SetCS is a no-op on periph's spi.Conn, which asserts/deasserts CS
// around every Tx call itself. SPITransaction below relies on that.
func (b *MPSSEBridge) SetCS(ctx context.Context, active bool) error {
	b.mx.Lock()
	b.csActive = active
	b.mx.Unlock()
	return nil
}

func (b *MPSSEBridge) SPITransfer(ctx context.Context, tx, rx []byte) error {
	if rx != nil && len(rx) != len(tx) {
		return fmt.Errorf("%w: tx/rx length mismatch", flashtype.ErrInvalidParameter)
	}
	b.mx.Lock()
	defer b.mx.Unlock()
	if b.conn == nil {
		return fmt.Errorf("%w: mpsse bridge not open", flashtype.ErrTransport)
	}
	out := rx
	if out == nil {
		out = make([]byte, len(tx))
	}
	if err := b.conn.Tx(tx, out); err != nil {
		return fmt.Errorf("%w: mpsse tx: %v", flashtype.ErrTransport, err)
	}
	return nil
}

func (b *MPSSEBridge) SPIWrite(ctx context.Context, data []byte) error {
	return b.SPITransfer(ctx, data, nil)
}

func (b *MPSSEBridge) SPIRead(ctx context.Context, n int) ([]byte, error) {
	tx := make([]byte, n)
	rx := make([]byte, n)
	if err := b.SPITransfer(ctx, tx, rx); err != nil {
		return nil, err
	}
	return rx, nil
}

// SPITransaction performs a single Tx call as one atomic CS-bracketed
// operation, since periph's spi.Conn only exposes whole-transaction Tx.
func (b *MPSSEBridge) SPITransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (b *MPSSEBridge) I2CWrite(ctx context.Context, addr byte, data []byte) error {
	return fmt.Errorf("%w: mpsse bridge configured for SPI, open an I2C port instead", flashtype.ErrNotSupported)
}

func (b *MPSSEBridge) I2CRead(ctx context.Context, addr byte, buf []byte) error {
	return fmt.Errorf("%w: mpsse bridge configured for SPI, open an I2C port instead", flashtype.ErrNotSupported)
}

func (b *MPSSEBridge) GPIOSet(ctx context.Context, pin int, level bool) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	p := b.auxPin(pin)
	if p == nil {
		return fmt.Errorf("%w: mpsse unknown aux pin %d", flashtype.ErrInvalidParameter, pin)
	}
	l := gpio.Low
	if level {
		l = gpio.High
	}
	return p.Out(l)
}

func (b *MPSSEBridge) GPIOGet(ctx context.Context, pin int) (bool, error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	p := b.auxPin(pin)
	if p == nil {
		return false, fmt.Errorf("%w: mpsse unknown aux pin %d", flashtype.ErrInvalidParameter, pin)
	}
	return p.Read() == gpio.High, nil
}

func (b *MPSSEBridge) auxPin(pin int) gpio.PinIO {
	switch pin {
	case 0:
		return b.holdPin
	case 1:
		return b.wpPin
	default:
		return nil
	}
}

func (b *MPSSEBridge) SetSpeed(ctx context.Context, speed flashtype.SPISpeed) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	if b.port == nil {
		return fmt.Errorf("%w: mpsse bridge not open", flashtype.ErrTransport)
	}
	freq := speedToFrequency(speed)
	conn, err := b.port.Connect(freq, spi.Mode0, 8)
	if err != nil {
		return fmt.Errorf("%w: mpsse reconnect at %s: %v", flashtype.ErrTransport, freq, err)
	}
	b.conn = conn
	return nil
}

func speedToFrequency(speed flashtype.SPISpeed) physic.Frequency {
	switch speed {
	case flashtype.SpeedLow:
		return physic.MegaHertz * 3 / 2
	case flashtype.SpeedHigh:
		return physic.MegaHertz * 6
	case flashtype.SpeedVeryHigh:
		return physic.MegaHertz * 12
	default:
		return physic.MegaHertz * 3
	}
}

func (b *MPSSEBridge) ReadJEDECID(ctx context.Context) (flashtype.JedecID, error) {
	return readJEDECID(ctx, b)
}
