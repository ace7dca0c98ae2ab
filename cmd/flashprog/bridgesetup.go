package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/flashprog/bridge"
)

// buildBridge constructs the Bridge implementation named by the
// --bridge flag. ch341a is the default since it is the adapter the
// rest of this CLI was written against.
func buildBridge(c *cli.Context) (bridge.Bridge, error) {
	switch c.String("bridge") {
	case "", "ch341a":
		return bridge.NewCH341AProgrammer(), nil
	case "mpsse":
		return bridge.NewMPSSEBridge(c.String("serial-port")), nil
	case "native":
		return bridge.NewNativeBridge(
			c.String("spi-dev"),
			c.String("i2c-dev"),
			c.String("cs-line"),
			c.String("wp-line"),
			c.String("hold-line"),
		), nil
	case "multi":
		return bridge.NewMultiBridge(0, 0), nil
	default:
		return nil, fmt.Errorf("unknown bridge %q", c.String("bridge"))
	}
}

var bridgeFlags = []cli.Flag{
	&cli.StringFlag{Name: "bridge", Value: "ch341a", Usage: "bridge implementation: ch341a, mpsse, native, multi"},
	&cli.StringFlag{Name: "serial-port", Usage: "serial port for the mpsse bridge"},
	&cli.StringFlag{Name: "spi-dev", Usage: "SPI device path for the native bridge"},
	&cli.StringFlag{Name: "i2c-dev", Usage: "I2C device path for the native bridge"},
	&cli.StringFlag{Name: "cs-line", Usage: "chip-select GPIO line for the native bridge"},
	&cli.StringFlag{Name: "wp-line", Usage: "write-protect GPIO line for the native bridge"},
	&cli.StringFlag{Name: "hold-line", Usage: "hold GPIO line for the native bridge"},
	&cli.UintFlag{Name: "i2c-address", Value: 0x50, Usage: "7-bit I2C bus address, for I2C EEPROM chips"},
	&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}},
}
