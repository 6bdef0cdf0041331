package entry

import (
	"github.com/pkg/errors"
)

type ReplayHandler func(*Record) error

// Replay calls fn for every record with a sequence above after, in journal
// order, and returns the last sequence seen. A torn frame ends the replay
// only when it is at the tail of the last segment.
func Replay(dir string, after uint64, fn ReplayHandler) (lastSeq uint64, err error) {
	paths, _, err := segments(dir)
	if err != nil {
		return 0, err
	}

	for i, path := range paths {
		_, _, torn, err := scanSegment(path, func(rec *Record) error {
			if rec.Seq <= lastSeq {
				return errors.Errorf("non-monotonic seq %d after %d", rec.Seq, lastSeq)
			}
			lastSeq = rec.Seq
			if rec.Seq <= after {
				return nil
			}
			return fn(rec)
		})
		if err != nil {
			return lastSeq, err
		}
		if torn && i != len(paths)-1 {
			return lastSeq, errors.Errorf("torn frame inside sealed segment %s", path)
		}
	}
	return lastSeq, nil
}
