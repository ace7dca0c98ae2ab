package orchestrator

import (
	"context"
	"fmt"

	"github.com/mklimuk/flashprog/flashtype"
)

// GetStatus returns the engine's raw status/feature register bytes.
// Families with no status register (i2ceeprom, microwire) report
// flashtype.ErrNotSupported through their own GetStatus, which this
// method passes through unchanged.
func (o *Orchestrator) GetStatus(ctx context.Context) ([]byte, error) {
	se, ok := o.engine.(StatusEngine)
	if !ok {
		return nil, fmt.Errorf("orchestrator: engine does not implement StatusEngine: %w", flashtype.ErrNotSupported)
	}
	return se.GetStatus(ctx)
}

// SetStatus writes the engine's raw status/feature register.
func (o *Orchestrator) SetStatus(ctx context.Context, status []byte) error {
	se, ok := o.engine.(StatusEngine)
	if !ok {
		return fmt.Errorf("orchestrator: engine does not implement StatusEngine: %w", flashtype.ErrNotSupported)
	}
	return se.SetStatus(ctx, status)
}
