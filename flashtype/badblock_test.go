package flashtype

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBadBlockStrategy_ShouldContinue(t *testing.T) {
	cases := []struct {
		name     string
		strategy BadBlockStrategy
		bad      bool
		want     bool
	}{
		{"fail on good block continues", StrategyFail, false, true},
		{"fail on bad block stops", StrategyFail, true, false},
		{"skip on bad block continues", StrategySkip, true, true},
		{"include on bad block continues", StrategyInclude, true, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.strategy.ShouldContinue(tc.bad))
		})
	}
}

func TestBadBlockStrategy_ShouldInclude(t *testing.T) {
	assert.True(t, StrategyInclude.ShouldInclude(true))
	assert.False(t, StrategySkip.ShouldInclude(true))
	assert.False(t, StrategyFail.ShouldInclude(true))
	assert.True(t, StrategyFail.ShouldInclude(false))
}

func TestBadBlockTable_Operations(t *testing.T) {
	table := NewBadBlockTable(10)
	assert.Equal(t, 10, table.Len())
	assert.False(t, table.IsEmpty())
	assert.Equal(t, BlockUnknown, table.GetStatus(3))

	table.SetStatus(3, BlockBadFactory)
	table.SetStatus(7, BlockBadRuntime)
	table.SetStatus(1, BlockGood)

	assert.True(t, table.IsBad(3))
	assert.True(t, table.IsBad(7))
	assert.False(t, table.IsBad(1))
	assert.Equal(t, 2, table.BadBlockCount())
}

func TestBadBlockTable_OutOfRangeIsSafe(t *testing.T) {
	table := NewBadBlockTable(4)
	assert.Equal(t, BlockUnknown, table.GetStatus(100))
	table.SetStatus(100, BlockBadRuntime) // must not panic
	assert.Equal(t, 0, table.BadBlockCount())
}

func TestEmptyBadBlockTable(t *testing.T) {
	table := NewBadBlockTable(0)
	assert.True(t, table.IsEmpty())
}
