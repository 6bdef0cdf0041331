package service

import (
	"context"

	"clob/domain/errs"
	"clob/infra/logging"
	"clob/infra/wal/entry"
	"clob/snapshot"

	"github.com/pkg/errors"
)

// Recover brings the store up to the end of the journal. An empty store
// is first seeded from the newest snapshot. It must run before the
// service takes traffic.
func (s *Service) Recover(ctx context.Context, journalDir string) error {
	groups, err := s.store.Groups()
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		snap, err := snapshot.LoadLatest(s.cfg.SnapshotDir)
		if err != nil {
			return err
		}
		if snap != nil {
			if err := s.store.Replace(snap.Map()); err != nil {
				return errors.Wrap(err, "restoring snapshot")
			}
			s.log.Info("store restored from snapshot",
				logging.Uint64("seq", snap.Seq),
				logging.Int("records", len(snap.Records)))
		}
	}
	if err := s.ReplayFromWAL(ctx, journalDir); err != nil {
		return err
	}
	return s.reload()
}

// ReplayFromWAL re-runs every journaled invocation the store does not
// reflect yet. Invocations are deterministic given the stored state and
// the recorded clock, so replay rebuilds the records they committed.
func (s *Service) ReplayFromWAL(ctx context.Context, dir string) error {
	applied, skipped := 0, 0
	lastSeq, err := entry.Replay(dir, 0, func(rec *entry.Record) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, err := s.replay(ctx, rec)
		if err != nil {
			return errors.Wrapf(err, "replaying %s record %d", rec.Type, rec.Seq)
		}
		if ok {
			applied++
		} else {
			skipped++
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("journal replay completed",
		logging.Uint64("last-seq", lastSeq),
		logging.Int("applied", applied),
		logging.Int("skipped", skipped))
	return nil
}

// replay applies one record and reports whether it was not yet reflected
// in the store.
func (s *Service) replay(ctx context.Context, rec *entry.Record) (bool, error) {
	group, err := s.recordGroup(rec)
	if err != nil {
		return false, err
	}
	done, err := s.store.Applied(group)
	if err != nil {
		return false, err
	}
	if done >= rec.Seq {
		return false, nil
	}

	switch rec.Type {
	case entry.RecordCreateGroup:
		op, err := decodeCreateGroup(rec.Data)
		if err != nil {
			return false, err
		}
		_, err = s.createGroup(ctx, op, rec.Time, rec.Seq)
		return true, err
	case entry.RecordCreateInstrument:
		op, err := decodeCreateInstrument(rec.Data)
		if err != nil {
			return false, err
		}
		_, err = s.createInstrument(ctx, op, rec.Time, rec.Seq)
		return true, err
	case entry.RecordDeposit, entry.RecordWithdraw:
		op, err := decodeFund(rec.Data)
		if err != nil {
			return false, err
		}
		return true, s.fund(ctx, rec.Type, op, rec.Time, rec.Seq)
	case entry.RecordSubmit:
		op, err := decodeSubmit(rec.Data)
		if err != nil {
			return false, err
		}
		_, err = s.submit(ctx, op, rec.Time, rec.Seq)
		return true, tolerated(err)
	case entry.RecordCancel:
		op, err := decodeCancel(rec.Data)
		if err != nil {
			return false, err
		}
		_, err = s.cancel(ctx, op, rec.Time, rec.Seq)
		return true, err
	case entry.RecordCrank:
		op, err := decodeInstrumentOp(rec.Data)
		if err != nil {
			return false, err
		}
		_, err = s.crank(ctx, op, rec.Time, rec.Seq)
		return true, err
	case entry.RecordAckReports:
		op, err := decodeInstrumentOp(rec.Data)
		if err != nil {
			return false, err
		}
		_, err = s.ack(ctx, op, rec.Time, rec.Seq)
		return true, err
	default:
		return false, errors.Wrapf(errs.ErrCorruptRecord, "record type %d", rec.Type)
	}
}

// tolerated drops the error a journaled submit legitimately came with.
func tolerated(err error) error {
	if errors.Is(err, errs.ErrRingBufferFull) {
		return nil
	}
	return err
}

// recordGroup returns the group a journal record belongs to.
func (s *Service) recordGroup(rec *entry.Record) (uint64, error) {
	switch rec.Type {
	case entry.RecordCreateGroup:
		op, err := decodeCreateGroup(rec.Data)
		return op.Group, err
	case entry.RecordCreateInstrument:
		op, err := decodeCreateInstrument(rec.Data)
		return op.Group, err
	}
	// every other payload starts with the instrument
	op, err := decodeInstrumentOp(rec.Data)
	if err != nil {
		return 0, err
	}
	return s.store.GroupOf(op.Instrument)
}
