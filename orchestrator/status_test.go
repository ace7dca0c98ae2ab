package orchestrator_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/flashprog/flashtype"
	"github.com/mklimuk/flashprog/orchestrator"
)

// statusSpy is a hand-rolled orchestrator.Engine + orchestrator.StatusEngine
// double that records the last status write it saw, in the spirit of
// the status/protection workflow's own mock flash spy.
type statusSpy struct {
	statusToReturn []byte
	lastStatusSet  []byte
}

func (s *statusSpy) Spec() flashtype.ChipSpec { return flashtype.ChipSpec{} }
func (s *statusSpy) Read(ctx context.Context, address flashtype.Address, buffer []byte) error {
	return nil
}
func (s *statusSpy) Write(ctx context.Context, address flashtype.Address, data []byte) error {
	return nil
}
func (s *statusSpy) Erase(ctx context.Context, address flashtype.Address, length uint32) error {
	return nil
}
func (s *statusSpy) GetStatus(ctx context.Context) ([]byte, error) {
	return s.statusToReturn, nil
}
func (s *statusSpy) SetStatus(ctx context.Context, status []byte) error {
	s.lastStatusSet = status
	return nil
}

func TestOrchestrator_GetStatus(t *testing.T) {
	spy := &statusSpy{statusToReturn: []byte{0xA5}}
	o := orchestrator.New(spy)

	status, err := o.GetStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte{0xA5}, status)
}

func TestOrchestrator_SetStatus(t *testing.T) {
	spy := &statusSpy{}
	o := orchestrator.New(spy)

	require.NoError(t, o.SetStatus(context.Background(), []byte{0x5A}))
	assert.Equal(t, []byte{0x5A}, spy.lastStatusSet)
}
