// Package orchestrator drives a protocol engine through the
// read/write/erase/verify/status/bad-block/diagnose operations a
// caller actually issues, independent of which chip family the
// underlying engine speaks. Apart from Diagnose, which probes a
// bridge.Bridge directly, it never talks to a bridge or chip; every
// family-specific opcode lives in nor/nand/spieeprom/i2ceeprom/
// microwire/fram, and this package only sequences calls against the
// Engine interface those packages all satisfy.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mklimuk/flashprog/flashtype"
)

// Engine is the family-agnostic surface every protocol engine
// (nor.Engine, nand.Engine, spieeprom.Engine, i2ceeprom.Engine,
// microwire.Engine, fram.Engine) implements.
type Engine interface {
	Spec() flashtype.ChipSpec
	Read(ctx context.Context, address flashtype.Address, buffer []byte) error
	Write(ctx context.Context, address flashtype.Address, data []byte) error
	Erase(ctx context.Context, address flashtype.Address, length uint32) error
}

// StatusEngine is the subset of engines with a raw status/feature
// register; i2ceeprom and microwire report flashtype.ErrNotSupported
// from these methods rather than omitting them, so Orchestrator can
// depend on the interface unconditionally.
type StatusEngine interface {
	GetStatus(ctx context.Context) ([]byte, error)
	SetStatus(ctx context.Context, status []byte) error
}

// BadBlockEngine is the subset of engines (nand.Engine) with a
// hardware bad-block marker convention.
type BadBlockEngine interface {
	IsBadBlock(ctx context.Context, block uint32) (bool, error)
	MarkBadBlock(ctx context.Context, block uint32) error
}

// ECCConfigurable is implemented by engines whose on-die ECC can be
// toggled per operation (nand.Engine). Read and Write apply
// Options.UseECC through it before touching the bus, mirroring the
// original tool's set_ecc(request.use_ecc) call at the top of every
// NAND read/write.
type ECCConfigurable interface {
	SetECCPolicy(ctx context.Context, policy flashtype.EccPolicy) error
}

// OOBReader is implemented by engines that can read the spare area
// alongside or instead of page data (nand.Engine). Read uses it
// whenever Options.OOBMode asks for anything but OOBNone.
type OOBReader interface {
	ReadOOB(ctx context.Context, address flashtype.Address, buffer []byte, oobMode flashtype.OOBMode) error
}

// RetryConfigurable is implemented by engines whose read path retries
// on transport error (i2ceeprom.Engine, spieeprom.Engine). Read pushes
// Options.RetryCount through it before reading.
type RetryConfigurable interface {
	SetRetryCount(n int)
}

// ProgressFunc receives progress updates during a long read/write/
// erase/verify pass. A nil ProgressFunc is valid; Orchestrator skips
// the call rather than requiring callers to pass a no-op.
type ProgressFunc func(flashtype.Progress)

func report(on ProgressFunc, current, total uint32, message string) {
	if on == nil {
		return
	}
	on(flashtype.Progress{Current: current, Total: total, Message: message})
}

// Orchestrator sequences operations against one Engine. It holds no
// hardware state of its own beyond the engine reference, so building
// one is cheap and a caller is free to build a new one per operation.
type Orchestrator struct {
	engine Engine
}

func New(engine Engine) *Orchestrator {
	return &Orchestrator{engine: engine}
}

func (o *Orchestrator) Spec() flashtype.ChipSpec { return o.engine.Spec() }

// checkBounds rejects a request whose address+length runs past the
// chip's capacity: an operation exactly up to capacity succeeds, past
// it fails InvalidParameter.
func checkBounds(spec flashtype.ChipSpec, address flashtype.Address, length uint32) error {
	capacity := spec.Capacity.Bytes()
	if uint32(address) > capacity || uint64(address)+uint64(length) > uint64(capacity) {
		return fmt.Errorf("orchestrator: address 0x%X + length %d exceeds capacity %d bytes: %w",
			uint32(address), length, capacity, flashtype.ErrInvalidParameter)
	}
	return nil
}

// applyOptions pushes the parts of Options an engine can act on
// before an operation starts: ECC policy and retry count. Engines
// that don't implement the corresponding interface are left alone
// rather than erroring, since not every family has a concept of
// either knob (FRAM has no ECC; NOR's read path has no retry loop of
// its own).
func (o *Orchestrator) applyOptions(ctx context.Context, opts flashtype.Options) error {
	if e, ok := o.engine.(ECCConfigurable); ok {
		policy := flashtype.EccHardware
		if !opts.UseECC {
			policy = flashtype.EccDisabled
		}
		if err := e.SetECCPolicy(ctx, policy); err != nil {
			return fmt.Errorf("orchestrator: set ecc policy: %w", err)
		}
	}
	if e, ok := o.engine.(RetryConfigurable); ok {
		e.SetRetryCount(opts.RetryCount)
	}
	return nil
}

// badBlockDecision reports whether block should be acted on (written
// or erased) given strategy. It returns a *flashtype.BadBlockError
// when the strategy refuses to tolerate a bad block at all.
func badBlockDecision(ctx context.Context, bbe BadBlockEngine, block uint32, strategy flashtype.BadBlockStrategy) (bool, error) {
	bad, err := bbe.IsBadBlock(ctx, block)
	if err != nil {
		return false, err
	}
	if !bad {
		return true, nil
	}
	if !strategy.ShouldContinue(true) {
		return false, &flashtype.BadBlockError{Block: block}
	}
	return strategy.ShouldInclude(true), nil
}

// rejectBadBlocks aborts with *flashtype.BadBlockError if any block in
// [address, address+length) is bad and strategy is StrategyFail. Skip
// and Include both still read through a bad block's data — there is
// no well-defined way to omit part of a read from the returned
// buffer — so only Fail can stop a read before it reaches the bus.
func (o *Orchestrator) rejectBadBlocks(ctx context.Context, spec flashtype.ChipSpec, address flashtype.Address, length uint32, strategy flashtype.BadBlockStrategy) error {
	bbe, ok := o.engine.(BadBlockEngine)
	blockSize := spec.Layout.BlockSize
	if !ok || blockSize == 0 || length == 0 {
		return nil
	}
	startBlock := uint32(address) / blockSize
	endBlock := (uint32(address) + length - 1) / blockSize
	for block := startBlock; block <= endBlock; block++ {
		bad, err := bbe.IsBadBlock(ctx, block)
		if err != nil {
			return err
		}
		if bad && !strategy.ShouldContinue(true) {
			return &flashtype.BadBlockError{Block: block}
		}
	}
	return nil
}

// Read reads req.Length bytes starting at req.Address into a freshly
// allocated buffer, reporting progress once at the start and once at
// completion; engines do their own internal chunking, so there is no
// finer-grained progress to report without changing the Engine
// contract itself.
func (o *Orchestrator) Read(ctx context.Context, req flashtype.ReadRequest, on ProgressFunc) ([]byte, error) {
	spec := o.engine.Spec()
	if err := checkBounds(spec, req.Address, req.Length); err != nil {
		return nil, err
	}
	if err := o.rejectBadBlocks(ctx, spec, req.Address, req.Length, req.Options.BadBlockStrategy); err != nil {
		return nil, err
	}
	if err := o.applyOptions(ctx, req.Options); err != nil {
		return nil, err
	}

	slog.Debug("orchestrator: read", "address", req.Address, "length", req.Length)
	report(on, 0, req.Length, "reading")
	buffer := make([]byte, req.Length)

	var err error
	if req.Options.OOBMode != flashtype.OOBNone {
		oobEngine, ok := o.engine.(OOBReader)
		if !ok {
			return nil, fmt.Errorf("orchestrator read: engine has no OOB access: %w", flashtype.ErrNotSupported)
		}
		err = oobEngine.ReadOOB(ctx, req.Address, buffer, req.Options.OOBMode)
	} else {
		err = o.engine.Read(ctx, req.Address, buffer)
	}
	if err != nil {
		return nil, fmt.Errorf("orchestrator read: %w", err)
	}
	report(on, req.Length, req.Length, "read complete")
	return buffer, nil
}

// Write writes req.Data starting at req.Address, then optionally
// reads it back and compares it when req.Options.Verify is set.
func (o *Orchestrator) Write(ctx context.Context, req flashtype.WriteRequest, on ProgressFunc) error {
	spec := o.engine.Spec()
	total := uint32(len(req.Data))
	if err := checkBounds(spec, req.Address, total); err != nil {
		return err
	}
	if err := o.applyOptions(ctx, req.Options); err != nil {
		return err
	}

	slog.Debug("orchestrator: write", "address", req.Address, "length", total, "verify", req.Options.Verify)
	report(on, 0, total, "writing")
	if err := o.writeBlocks(ctx, spec, req.Address, req.Data, req.Options.BadBlockStrategy); err != nil {
		return fmt.Errorf("orchestrator write: %w", err)
	}
	report(on, total, total, "write complete")

	if !req.Options.Verify {
		return nil
	}
	return o.Verify(ctx, flashtype.VerifyRequest{
		Address:  req.Address,
		Expected: req.Data,
		Options:  req.Options,
	}, on)
}

// writeBlocks writes data starting at address, consulting the
// engine's bad-block table one block at a time when the engine
// implements BadBlockEngine, so BadBlockStrategy can fail, skip, or
// deliberately include a block already known to be bad. Engines
// without that capability (every family but NAND) write the whole
// range in one call, same as before bad-block awareness existed.
func (o *Orchestrator) writeBlocks(ctx context.Context, spec flashtype.ChipSpec, address flashtype.Address, data []byte, strategy flashtype.BadBlockStrategy) error {
	bbe, ok := o.engine.(BadBlockEngine)
	blockSize := spec.Layout.BlockSize
	if !ok || blockSize == 0 {
		return o.engine.Write(ctx, address, data)
	}

	offset := 0
	addr := uint32(address)
	for offset < len(data) {
		block := addr / blockSize
		blockEnd := (block + 1) * blockSize
		chunkLen := blockEnd - addr
		if remaining := uint32(len(data) - offset); chunkLen > remaining {
			chunkLen = remaining
		}

		act, err := badBlockDecision(ctx, bbe, block, strategy)
		if err != nil {
			return err
		}
		if act {
			if err := o.engine.Write(ctx, flashtype.Address(addr), data[offset:offset+int(chunkLen)]); err != nil {
				return err
			}
		} else {
			slog.Warn("orchestrator: skipping write to bad block", "block", block)
		}
		offset += int(chunkLen)
		addr += chunkLen
	}
	return nil
}

// Erase erases req.Length bytes starting at req.Address. Length zero
// means "erase the whole chip".
func (o *Orchestrator) Erase(ctx context.Context, req flashtype.EraseRequest, on ProgressFunc) error {
	spec := o.engine.Spec()
	capacity := spec.Capacity.Bytes()
	if uint32(req.Address) > capacity {
		return fmt.Errorf("orchestrator erase: address 0x%X exceeds capacity %d bytes: %w",
			uint32(req.Address), capacity, flashtype.ErrInvalidParameter)
	}
	length := req.Length
	if length == 0 {
		length = capacity - uint32(req.Address)
	}
	if err := checkBounds(spec, req.Address, length); err != nil {
		return err
	}

	slog.Debug("orchestrator: erase", "address", req.Address, "length", length)
	report(on, 0, length, "erasing")
	if err := o.eraseBlocks(ctx, spec, req.Address, length, req.Options.BadBlockStrategy); err != nil {
		return fmt.Errorf("orchestrator erase: %w", err)
	}
	report(on, length, length, "erase complete")
	return nil
}

// eraseBlocks mirrors writeBlocks: one block at a time when the
// engine can report bad blocks, one call otherwise.
func (o *Orchestrator) eraseBlocks(ctx context.Context, spec flashtype.ChipSpec, address flashtype.Address, length uint32, strategy flashtype.BadBlockStrategy) error {
	bbe, ok := o.engine.(BadBlockEngine)
	blockSize := spec.Layout.BlockSize
	if !ok || blockSize == 0 {
		return o.engine.Erase(ctx, address, length)
	}

	startBlock := uint32(address) / blockSize
	totalBlocks := (length + blockSize - 1) / blockSize
	for i := uint32(0); i < totalBlocks; i++ {
		block := startBlock + i
		act, err := badBlockDecision(ctx, bbe, block, strategy)
		if err != nil {
			return err
		}
		if !act {
			slog.Warn("orchestrator: skipping erase of bad block", "block", block)
			continue
		}
		if err := o.engine.Erase(ctx, flashtype.Address(block*blockSize), blockSize); err != nil {
			return err
		}
	}
	return nil
}

// Verify reads back req.Expected's length worth of data starting at
// req.Address (through Read, so OOB mode/ECC policy/retry/bad-block
// options all apply the same way they would to a plain read) and
// compares it byte-by-byte, reporting the first mismatch. A length
// mismatch between the read-back data and req.Expected (which should
// not happen given Read always returns exactly the buffer length
// requested) falls back to ErrInvalidParameter, mirroring the
// original tool's verify use case.
func (o *Orchestrator) Verify(ctx context.Context, req flashtype.VerifyRequest, on ProgressFunc) error {
	total := uint32(len(req.Expected))
	slog.Debug("orchestrator: verify", "address", req.Address, "length", total)
	report(on, 0, total, "verifying")

	actual, err := o.Read(ctx, flashtype.ReadRequest{Address: req.Address, Length: total, Options: req.Options}, nil)
	if err != nil {
		return fmt.Errorf("orchestrator verify: %w", err)
	}

	if len(actual) != len(req.Expected) {
		return fmt.Errorf("orchestrator verify: data lengths differ: %w", flashtype.ErrInvalidParameter)
	}
	for i := range actual {
		if actual[i] != req.Expected[i] {
			return &flashtype.VerificationFailedError{
				Address:  req.Address + flashtype.Address(i),
				Expected: req.Expected[i],
				Actual:   actual[i],
			}
		}
	}
	report(on, total, total, "verify complete")
	return nil
}
