package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/charmbracelet/log"
	"github.com/karalabe/hid"
	"github.com/muesli/termenv"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/flashprog/chip"
	"github.com/mklimuk/flashprog/cmd/flashprog/console"
	"github.com/mklimuk/flashprog/flashtype"
	"github.com/mklimuk/flashprog/identify"
	"github.com/mklimuk/flashprog/orchestrator"
	"github.com/mklimuk/flashprog/rigctx"
)

var version string
var commit string
var date string

func main() {
	os.Exit(run())
}

func run() int {
	app := &cli.App{
		Name:                 "flashprog",
		EnableBashCompletion: true,
		Version:              fmt.Sprintf("%s-%s-%s", version, date, commit),
		Usage:                "flash chip programmer CLI",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "debug", Usage: "enable debug-level logging"},
		},
		Before: func(c *cli.Context) error {
			installLogger(c.Bool("debug"))
			return nil
		},
		Commands: []*cli.Command{
			identifyCmd,
			readCmd,
			writeCmd,
			eraseCmd,
			verifyCmd,
			statusCmd,
			scanCmd,
			diagnoseCmd,
			usbCmd,
		},
	}
	if err := app.Run(os.Args); err != nil {
		if exitErr, ok := err.(cli.ExitCoder); ok {
			return exitErr.ExitCode()
		}
		console.Errorf("%v", err)
		return 1
	}
	return 0
}

func installLogger(debug bool) {
	handler := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "flashprog",
	})
	handler.SetColorProfile(termenv.TrueColor)
	if debug {
		handler.SetLevel(log.DebugLevel)
	} else {
		handler.SetLevel(log.InfoLevel)
	}
	slog.SetDefault(slog.New(handler))
}

func parseAddress(s string) (flashtype.Address, error) {
	n, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return flashtype.Address(n), nil
}

// operationFlags are the read/write/erase/verify flags controlling
// flashtype.Options; shared by every command that issues one of those
// four operations.
var operationFlags = []cli.Flag{
	&cli.BoolFlag{Name: "use-ecc", Value: true, Usage: "enable on-die ECC where the chip supports it"},
	&cli.BoolFlag{Name: "ignore-ecc-errors", Usage: "don't fail the operation on an uncorrectable ECC error"},
	&cli.StringFlag{Name: "oob", Value: "none", Usage: "NAND out-of-band mode: none, included, only"},
	&cli.IntFlag{Name: "retry", Value: 0, Usage: "additional attempts on a transport error before failing"},
	&cli.StringFlag{Name: "bad-block-strategy", Value: "fail", Usage: "fail, skip, or include"},
}

func parseOOBMode(s string) (flashtype.OOBMode, error) {
	switch s {
	case "none", "":
		return flashtype.OOBNone, nil
	case "included":
		return flashtype.OOBIncluded, nil
	case "only":
		return flashtype.OOBOnly, nil
	default:
		return 0, fmt.Errorf("invalid oob mode %q: %w", s, flashtype.ErrInvalidParameter)
	}
}

func parseBadBlockStrategy(s string) (flashtype.BadBlockStrategy, error) {
	switch s {
	case "fail", "":
		return flashtype.StrategyFail, nil
	case "skip":
		return flashtype.StrategySkip, nil
	case "include":
		return flashtype.StrategyInclude, nil
	default:
		return 0, fmt.Errorf("invalid bad block strategy %q: %w", s, flashtype.ErrInvalidParameter)
	}
}

// buildOptions assembles flashtype.Options from operationFlags,
// starting from flashtype.DefaultOptions() so any flag a command
// doesn't register still carries a safe default.
func buildOptions(c *cli.Context) (flashtype.Options, error) {
	opts := flashtype.DefaultOptions()
	opts.UseECC = c.Bool("use-ecc")
	opts.IgnoreECCErrors = c.Bool("ignore-ecc-errors")
	opts.RetryCount = c.Int("retry")

	oobMode, err := parseOOBMode(c.String("oob"))
	if err != nil {
		return opts, err
	}
	opts.OOBMode = oobMode

	strategy, err := parseBadBlockStrategy(c.String("bad-block-strategy"))
	if err != nil {
		return opts, err
	}
	opts.BadBlockStrategy = strategy

	return opts, nil
}

// resolveChip builds the bridge named by --bridge, opens it, and identifies the chip
// wired to it, returning everything a command needs to build an
// engine and an orchestrator in one call.
func resolveChip(c *cli.Context) (orchestrator.Engine, flashtype.ChipSpec, func(), error) {
	ctx := rigctx.SetVerbose(context.Background(), c.Bool("verbose"))

	br, err := buildBridge(c)
	if err != nil {
		return nil, flashtype.ChipSpec{}, nil, err
	}
	if err := br.Open(ctx); err != nil {
		return nil, flashtype.ChipSpec{}, nil, fmt.Errorf("opening bridge: %w", err)
	}
	closeFn := func() { _ = br.Close(ctx) }

	registry := chip.NewRegistry()
	spec, err := identify.Detect(ctx, br, registry)
	if err != nil {
		closeFn()
		return nil, flashtype.ChipSpec{}, nil, fmt.Errorf("detecting chip: %w", err)
	}

	eng, err := buildEngine(br, spec, byte(c.Uint("i2c-address")))
	if err != nil {
		closeFn()
		return nil, flashtype.ChipSpec{}, nil, err
	}
	return eng, spec, closeFn, nil
}

var identifyCmd = &cli.Command{
	Name:  "identify",
	Usage: "identify the connected chip and print its spec",
	Flags: bridgeFlags,
	Action: func(c *cli.Context) error {
		_, spec, closeFn, err := resolveChip(c)
		if err != nil {
			return console.Exit(1, "%v", err)
		}
		defer closeFn()
		enc := yaml.NewEncoder(os.Stdout)
		defer func() { _ = enc.Close() }()
		return enc.Encode(spec)
	},
}

var readCmd = &cli.Command{
	Name:  "read",
	Usage: "read a range of flash memory to stdout or a file",
	Flags: append(append(bridgeFlags, operationFlags...),
		&cli.StringFlag{Name: "address", Value: "0x0"},
		&cli.Uint64Flag{Name: "length", Required: true},
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "file to write; defaults to stdout"},
	),
	Action: func(c *cli.Context) error {
		eng, _, closeFn, err := resolveChip(c)
		if err != nil {
			return console.Exit(1, "%v", err)
		}
		defer closeFn()

		addr, err := parseAddress(c.String("address"))
		if err != nil {
			return console.Exit(1, "%v", err)
		}
		opts, err := buildOptions(c)
		if err != nil {
			return console.Exit(1, "%v", err)
		}
		o := orchestrator.New(eng)
		data, err := o.Read(context.Background(), flashtype.ReadRequest{
			Address: addr,
			Length:  uint32(c.Uint64("length")),
			Options: opts,
		}, nil)
		if err != nil {
			return console.Exit(1, "read failed: %v", err)
		}

		if out := c.String("output"); out != "" {
			return os.WriteFile(out, data, 0o644)
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

var writeCmd = &cli.Command{
	Name:  "write",
	Usage: "write a file's contents to flash",
	Flags: append(append(bridgeFlags, operationFlags...),
		&cli.StringFlag{Name: "address", Value: "0x0"},
		&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Required: true},
		&cli.BoolFlag{Name: "verify"},
	),
	Action: func(c *cli.Context) error {
		eng, _, closeFn, err := resolveChip(c)
		if err != nil {
			return console.Exit(1, "%v", err)
		}
		defer closeFn()

		addr, err := parseAddress(c.String("address"))
		if err != nil {
			return console.Exit(1, "%v", err)
		}
		data, err := os.ReadFile(c.String("input"))
		if err != nil {
			return console.Exit(1, "reading input file: %v", err)
		}
		opts, err := buildOptions(c)
		if err != nil {
			return console.Exit(1, "%v", err)
		}
		opts.Verify = c.Bool("verify")

		o := orchestrator.New(eng)
		req := flashtype.WriteRequest{
			Address: addr,
			Data:    data,
			Options: opts,
		}
		if err := o.Write(context.Background(), req, func(p flashtype.Progress) {
			console.Infof("%s: %.0f%%", p.Message, p.Percentage())
		}); err != nil {
			return console.Exit(1, "write failed: %v", err)
		}
		console.Infof("wrote %d bytes at 0x%X", len(data), uint32(addr))
		return nil
	},
}

var eraseCmd = &cli.Command{
	Name:  "erase",
	Usage: "erase a range of flash memory (0 length erases the whole chip)",
	Flags: append(append(bridgeFlags, operationFlags...),
		&cli.StringFlag{Name: "address", Value: "0x0"},
		&cli.Uint64Flag{Name: "length", Value: 0},
	),
	Action: func(c *cli.Context) error {
		eng, _, closeFn, err := resolveChip(c)
		if err != nil {
			return console.Exit(1, "%v", err)
		}
		defer closeFn()

		addr, err := parseAddress(c.String("address"))
		if err != nil {
			return console.Exit(1, "%v", err)
		}
		opts, err := buildOptions(c)
		if err != nil {
			return console.Exit(1, "%v", err)
		}
		o := orchestrator.New(eng)
		req := flashtype.EraseRequest{Address: addr, Length: uint32(c.Uint64("length")), Options: opts}
		if err := o.Erase(context.Background(), req, func(p flashtype.Progress) {
			console.Infof("%s: %.0f%%", p.Message, p.Percentage())
		}); err != nil {
			return console.Exit(1, "erase failed: %v", err)
		}
		console.Infof("erase complete")
		return nil
	},
}

var verifyCmd = &cli.Command{
	Name:  "verify",
	Usage: "compare flash contents against a file",
	Flags: append(append(bridgeFlags, operationFlags...),
		&cli.StringFlag{Name: "address", Value: "0x0"},
		&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Required: true},
	),
	Action: func(c *cli.Context) error {
		eng, _, closeFn, err := resolveChip(c)
		if err != nil {
			return console.Exit(1, "%v", err)
		}
		defer closeFn()

		addr, err := parseAddress(c.String("address"))
		if err != nil {
			return console.Exit(1, "%v", err)
		}
		expected, err := os.ReadFile(c.String("input"))
		if err != nil {
			return console.Exit(1, "reading input file: %v", err)
		}
		opts, err := buildOptions(c)
		if err != nil {
			return console.Exit(1, "%v", err)
		}

		o := orchestrator.New(eng)
		req := flashtype.VerifyRequest{Address: addr, Expected: expected, Options: opts}
		if err := o.Verify(context.Background(), req, nil); err != nil {
			return console.Exit(1, "%s %v", console.Red("verification failed:"), err)
		}
		console.Infof("%s", console.Green("verified ok"))
		return nil
	},
}

var statusCmd = &cli.Command{
	Name:  "status",
	Usage: "read or write the raw status/feature register",
	Subcommands: []*cli.Command{
		{
			Name:  "get",
			Flags: bridgeFlags,
			Action: func(c *cli.Context) error {
				eng, _, closeFn, err := resolveChip(c)
				if err != nil {
					return console.Exit(1, "%v", err)
				}
				defer closeFn()
				o := orchestrator.New(eng)
				status, err := o.GetStatus(context.Background())
				if err != nil {
					return console.Exit(1, "%v", err)
				}
				console.Printf("status: % X\n", status)
				return nil
			},
		},
		{
			Name:  "set",
			Flags: append(bridgeFlags, &cli.StringFlag{Name: "value", Required: true, Usage: "hex byte, e.g. 0xA5"}),
			Action: func(c *cli.Context) error {
				eng, _, closeFn, err := resolveChip(c)
				if err != nil {
					return console.Exit(1, "%v", err)
				}
				defer closeFn()
				v, err := strconv.ParseUint(c.String("value"), 0, 8)
				if err != nil {
					return console.Exit(1, "invalid value: %v", err)
				}
				o := orchestrator.New(eng)
				if err := o.SetStatus(context.Background(), []byte{byte(v)}); err != nil {
					return console.Exit(1, "%v", err)
				}
				console.Infof("status register set to 0x%02X", v)
				return nil
			},
		},
	},
}

var scanCmd = &cli.Command{
	Name:  "scan",
	Usage: "scan a NAND chip for factory/runtime bad blocks",
	Flags: bridgeFlags,
	Action: func(c *cli.Context) error {
		eng, _, closeFn, err := resolveChip(c)
		if err != nil {
			return console.Exit(1, "%v", err)
		}
		defer closeFn()
		o := orchestrator.New(eng)
		table, err := o.ScanBadBlocks(context.Background(), func(p flashtype.Progress) {
			console.Infof("scanning block %d/%d", p.Current, p.Total)
		})
		if err != nil {
			return console.Exit(1, "%v", err)
		}
		console.Printf("%s\n", table)
		return nil
	},
}

var diagnoseCmd = &cli.Command{
	Name:  "diagnose",
	Usage: "run a read-only bridge/chip health check",
	Flags: bridgeFlags,
	Action: func(c *cli.Context) error {
		ctx := rigctx.SetVerbose(context.Background(), c.Bool("verbose"))
		br, err := buildBridge(c)
		if err != nil {
			return console.Exit(1, "%v", err)
		}
		if err := br.Open(ctx); err != nil {
			return console.Exit(1, "opening bridge: %v", err)
		}
		defer func() { _ = br.Close(ctx) }()

		report := orchestrator.Diagnose(ctx, br)
		printDiagnosticReport(report)
		return nil
	},
}

func printDiagnosticReport(r orchestrator.DiagnosticReport) {
	if !r.BridgeReachable {
		console.Errorf("bridge unreachable: %s", r.BridgeError)
		return
	}
	console.Infof("%s bridge communication ok", console.Green("✓"))

	if r.SPIBusAllFF {
		console.Infof("SPI bus response: all-0xFF (no chip connected, or nothing pulling the line low)")
	} else if r.SPIBusAllZero {
		console.Warnf("SPI bus response: all-0x00 (possible short circuit)")
	} else {
		console.Infof("SPI bus response: % X", r.SPIBusResponse)
	}

	if r.GPIOOK {
		console.Infof("%s GPIO toggling ok", console.Green("✓"))
	} else {
		console.Warnf("GPIO toggling failed: %s", r.GPIOError)
	}

	if r.JedecError != "" {
		console.Warnf("JEDEC ID read failed: %s", r.JedecError)
		return
	}
	console.Infof("JEDEC ID: %s", r.JedecID)
	if r.PossibleVendor != "" {
		console.Infof("possible manufacturer: %s", r.PossibleVendor)
	}
}

var usbCmd = &cli.Command{
	Name: "usb",
	Subcommands: []*cli.Command{
		{
			Name: "ls",
			Action: func(c *cli.Context) error {
				devices := hid.Enumerate(0, 0)
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 1, '.', tabwriter.AlignRight|tabwriter.Debug)
				for _, d := range devices {
					_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
						d.Path, d.Serial, d.VendorID, d.ProductID, d.Manufacturer, d.Product)
				}
				return w.Flush()
			},
		},
	},
}
