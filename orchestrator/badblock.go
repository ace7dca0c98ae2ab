package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mklimuk/flashprog/flashtype"
)

// ScanBadBlocks walks every erase block the chip's layout reports and
// builds a flashtype.BadBlockTable from the engine's own bad-block
// marker convention. Only engines that implement BadBlockEngine (NAND)
// support this; anything else reports flashtype.ErrNotSupported.
func (o *Orchestrator) ScanBadBlocks(ctx context.Context, on ProgressFunc) (*flashtype.BadBlockTable, error) {
	bbe, ok := o.engine.(BadBlockEngine)
	if !ok {
		return nil, fmt.Errorf("orchestrator: engine has no bad-block concept: %w", flashtype.ErrNotSupported)
	}

	spec := o.engine.Spec()
	blockCount := spec.Layout.TotalPages(spec.Capacity) / spec.Layout.PagesPerBlock()
	table := flashtype.NewBadBlockTable(blockCount)

	for block := uint32(0); block < blockCount; block++ {
		bad, err := bbe.IsBadBlock(ctx, block)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: scan bad blocks at block %d: %w", block, err)
		}
		if bad {
			table.SetStatus(block, flashtype.BlockBadFactory)
		} else {
			table.SetStatus(block, flashtype.BlockGood)
		}
		report(on, block+1, blockCount, "scanning bad blocks")
	}

	slog.Debug("orchestrator: bad block scan complete", "blocks", blockCount, "bad", table.BadBlockCount())
	return table, nil
}

// MarkBadBlock marks a single block bad through the engine's own
// convention (e.g. a non-0xFF marker in the block's first OOB page).
func (o *Orchestrator) MarkBadBlock(ctx context.Context, block uint32) error {
	bbe, ok := o.engine.(BadBlockEngine)
	if !ok {
		return fmt.Errorf("orchestrator: engine has no bad-block concept: %w", flashtype.ErrNotSupported)
	}
	return bbe.MarkBadBlock(ctx, block)
}
