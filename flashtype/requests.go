package flashtype

// OOBMode controls how a NAND read/write request treats the spare
// (out-of-band) area alongside the main page data.
type OOBMode int

const (
	// OOBNone reads/writes only the main page area.
	OOBNone OOBMode = iota
	// OOBIncluded reads/writes main data and OOB as one contiguous
	// buffer (data followed by spare bytes).
	OOBIncluded
	// OOBOnly reads/writes only the spare area.
	OOBOnly
)

// SPISpeed is a coarse bus-speed hint passed down to a Bridge; each
// bridge implementation maps it onto whatever clock divider or
// frequency table its hardware supports.
type SPISpeed int

const (
	SpeedLow SPISpeed = iota
	SpeedMedium
	SpeedHigh
	SpeedVeryHigh
)

// Options bundles the knobs that apply across read/write/erase/verify
// operations. Defaults mirror a conservative first-run configuration:
// hardware ECC on, bad blocks fail fast, no verify pass, no retries.
type Options struct {
	UseECC            bool
	IgnoreECCErrors   bool
	BadBlockStrategy  BadBlockStrategy
	OOBMode           OOBMode
	Speed             SPISpeed
	Verify            bool
	RetryCount        int
	BadBlockTableFile string
}

func DefaultOptions() Options {
	return Options{
		UseECC:           true,
		BadBlockStrategy: StrategyFail,
		OOBMode:          OOBNone,
		Speed:            SpeedMedium,
		Verify:           false,
		RetryCount:       0,
	}
}

// ReadRequest describes a read operation over a byte range.
type ReadRequest struct {
	Address Address
	Length  uint32
	Options Options
}

// WriteRequest describes a write operation of data starting at Address.
type WriteRequest struct {
	Address Address
	Data    []byte
	Options Options
}

// EraseRequest describes an erase operation. Length of zero means
// "erase the whole chip".
type EraseRequest struct {
	Address Address
	Length  uint32
	Options Options
}

// VerifyRequest describes a read-back comparison against Expected,
// starting at Address.
type VerifyRequest struct {
	Address  Address
	Expected []byte
	Options  Options
}
