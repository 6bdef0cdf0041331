package cranker

import (
	"context"
	"testing"

	"clob/domain/errs"
	"clob/domain/exchange"
	"clob/infra/logging"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedTarget answers each instrument's cranks from a list of errors.
type scriptedTarget struct {
	script map[uint64][]error
	calls  map[uint64]int
}

func (s *scriptedTarget) CrankCandidates() ([]uint64, error) {
	return []uint64{1, 2, 3}, nil
}

func (s *scriptedTarget) Crank(_ context.Context, id uint64) (*exchange.CrankResult, error) {
	n := s.calls[id]
	s.calls[id]++
	if n >= len(s.script[id]) {
		return nil, errs.ErrCrankEmpty
	}
	if err := s.script[id][n]; err != nil {
		return nil, err
	}
	return &exchange.CrankResult{Drained: 1}, nil
}

func TestRunOnceCranksUntilDone(t *testing.T) {
	target := &scriptedTarget{
		script: map[uint64][]error{
			1: {nil, nil, nil},
			2: {nil, errs.ErrRingBufferFull, nil},
			3: {errors.New("disk gone")},
		},
		calls: map[uint64]int{},
	}
	c := New(logging.NewTestLogger(), Config{MaxPasses: 10}, target)

	progress, err := c.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, progress)
	assert.Equal(t, 4, target.calls[1])
	assert.Equal(t, 2, target.calls[2])
	assert.Equal(t, 1, target.calls[3])
}

func TestRunOnceHonoursMaxPasses(t *testing.T) {
	target := &scriptedTarget{
		script: map[uint64][]error{1: {nil, nil, nil, nil, nil}},
		calls:  map[uint64]int{},
	}
	c := New(logging.NewTestLogger(), Config{MaxPasses: 2}, target)

	progress, err := c.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, progress)
	assert.Equal(t, 2, target.calls[1])
}

func TestRunOnceStopsOnCancel(t *testing.T) {
	target := &scriptedTarget{script: map[uint64][]error{1: {nil}}, calls: map[uint64]int{}}
	c := New(logging.NewTestLogger(), NewDefaultConfig(), target)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.RunOnce(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, target.calls[1])
}
