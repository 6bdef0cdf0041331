package service

import (
	"context"
	"time"

	"clob/infra/logging"
	"clob/snapshot"
)

// Snapshot writes every stored record to the snapshot directory and
// drops the journal segments the snapshot covers. Writes are paused
// while the records are collected.
func (s *Service) Snapshot() (string, error) {
	defer s.metrics.Observe("snapshot", time.Now())

	s.quiesce.Lock()
	snap := &snapshot.Snapshot{Seq: s.journal.LastSeq(), Created: s.clock()}
	err := s.store.Each(func(key, val []byte) error {
		snap.Records = append(snap.Records, snapshot.Record{
			Key:   string(key),
			Value: append([]byte(nil), val...),
		})
		return nil
	})
	s.quiesce.Unlock()
	if err != nil {
		return "", err
	}

	w := snapshot.Writer{Dir: s.cfg.SnapshotDir, Keep: s.cfg.SnapshotKeep}
	path, err := w.Write(snap)
	if err != nil {
		return "", err
	}
	if err := s.journal.TruncateBefore(snap.Seq); err != nil {
		return path, err
	}
	s.log.Info("snapshot written",
		logging.String("path", path),
		logging.Uint64("seq", snap.Seq),
		logging.Int("records", len(snap.Records)))
	return path, nil
}

// StartSnapshotJob snapshots every SnapshotInterval until ctx is done.
func (s *Service) StartSnapshotJob(ctx context.Context) {
	if s.cfg.SnapshotInterval.Duration <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(s.cfg.SnapshotInterval.Duration)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.Snapshot(); err != nil {
					s.log.Error("snapshot failed", logging.Error(err))
				}
			}
		}
	}()
}
