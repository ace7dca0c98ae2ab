package flashtype

import (
	"errors"
	"fmt"
)

// Sentinel errors matched with errors.Is by callers that only care about
// the failure class, not its parameters.
var (
	ErrTransport         = errors.New("flashtype: transport error")
	ErrNotFound          = errors.New("flashtype: programmer not found")
	ErrFlashNotDetected  = errors.New("flashtype: flash chip not detected")
	ErrInvalidParameter  = errors.New("flashtype: invalid parameter")
	ErrTimeout           = errors.New("flashtype: operation timed out")
	ErrNotSupported      = errors.New("flashtype: operation not supported by this chip")
)

// UnsupportedChipError reports a JEDEC ID that matched no registry entry.
type UnsupportedChipError struct {
	ID JedecID
}

func (e *UnsupportedChipError) Error() string {
	return fmt.Sprintf("flashtype: unsupported chip (jedec id %s)", e.ID)
}

func (e *UnsupportedChipError) Is(target error) bool { return target == ErrFlashNotDetected }

// VerificationFailedError reports the first address at which a
// post-write readback mismatched the data written.
type VerificationFailedError struct {
	Address  Address
	Expected byte
	Actual   byte
}

func (e *VerificationFailedError) Error() string {
	return fmt.Sprintf("flashtype: verification failed at 0x%08X: expected 0x%02X, got 0x%02X",
		uint32(e.Address), e.Expected, e.Actual)
}

// EraseFailedError reports a block whose erase left the chip's status
// register showing a program/erase failure bit.
type EraseFailedError struct {
	Block uint32
}

func (e *EraseFailedError) Error() string {
	return fmt.Sprintf("flashtype: erase failed at block %d", e.Block)
}

// ProgramFailedError reports a page/address whose write left the
// chip's status register showing a program failure bit.
type ProgramFailedError struct {
	Address Address
}

func (e *ProgramFailedError) Error() string {
	return fmt.Sprintf("flashtype: program failed at 0x%08X", uint32(e.Address))
}

// ReadFailedError reports a page/address that could not be read back
// (distinct from an uncorrectable ECC error, which has its own type).
type ReadFailedError struct {
	Address Address
}

func (e *ReadFailedError) Error() string {
	return fmt.Sprintf("flashtype: read failed at 0x%08X", uint32(e.Address))
}

// UncorrectableError reports a page whose ECC check could not correct
// the bit errors present.
type UncorrectableError struct {
	Address Address
}

func (e *UncorrectableError) Error() string {
	return fmt.Sprintf("flashtype: uncorrectable ECC error at 0x%08X", uint32(e.Address))
}

// BadBlockError reports an operation that hit a block known to be bad
// under a strategy that does not tolerate it.
type BadBlockError struct {
	Block uint32
}

func (e *BadBlockError) Error() string {
	return fmt.Sprintf("flashtype: block %d is marked bad", e.Block)
}
