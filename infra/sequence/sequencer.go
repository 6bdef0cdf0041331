package sequence

import (
	"sync/atomic"

	"github.com/pkg/errors"
)

// Sequencer numbers journal records. A number is committed only once the
// record carrying it is written, so a failed append leaves no gap.
type Sequencer struct {
	last atomic.Uint64
}

// New continues after last, the sequence of the last record on disk.
func New(last uint64) *Sequencer {
	s := &Sequencer{}
	s.last.Store(last)
	return s
}

// Last returns the sequence of the last committed record.
func (s *Sequencer) Last() uint64 {
	return s.last.Load()
}

// Pending returns the sequence the next record carries.
func (s *Sequencer) Pending() uint64 {
	return s.last.Load() + 1
}

// Commit marks seq as written. Sequences are committed in order.
func (s *Sequencer) Commit(seq uint64) error {
	if !s.last.CompareAndSwap(seq-1, seq) {
		return errors.Errorf("sequence %d committed out of order, last is %d", seq, s.last.Load())
	}
	return nil
}
