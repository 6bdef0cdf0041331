// Package store persists the encoded group and instrument records in
// pebble. Every write goes through a Batch so that the records touched by
// one invocation and the journal position they reflect land atomically.
package store

import (
	"encoding/binary"
	"fmt"
	"path/filepath"

	"clob/domain/errs"
	"clob/infra/logging"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"
)

const (
	groupPrefix      = "group/"
	instrumentPrefix = "instrument/"
	indexPrefix      = "index/instrument/"
	appliedPrefix    = "applied/"

	keyLastGroup      = "meta/last-group"
	keyLastInstrument = "meta/last-instrument"
)

type Config struct {
	Dir string `long:"dir" description:"directory of the record store"`
	// Sync makes every commit wait for the disk.
	Sync bool `long:"sync"`
}

func NewDefaultConfig(root string) Config {
	return Config{Dir: filepath.Join(root, "store"), Sync: true}
}

type Store struct {
	log  *logging.Logger
	db   *pebble.DB
	sync bool
}

func Open(log *logging.Logger, cfg Config) (*Store, error) {
	db, err := pebble.Open(cfg.Dir, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "opening store at %s", cfg.Dir)
	}
	s := &Store{log: log.Named("store"), db: db, sync: cfg.Sync}
	s.log.Info("store opened", logging.String("dir", cfg.Dir))
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func groupKey(id uint64) []byte      { return []byte(fmt.Sprintf("%s%020d", groupPrefix, id)) }
func instrumentKey(id uint64) []byte { return []byte(fmt.Sprintf("%s%020d", instrumentPrefix, id)) }
func indexKey(id uint64) []byte      { return []byte(fmt.Sprintf("%s%020d", indexPrefix, id)) }
func appliedKey(group uint64) []byte { return []byte(fmt.Sprintf("%s%020d", appliedPrefix, group)) }

func (s *Store) get(key []byte) ([]byte, error) {
	val, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, errors.Wrapf(errs.ErrNotFound, "%s", key)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", key)
	}
	defer closer.Close()
	return append([]byte(nil), val...), nil
}

func (s *Store) getUint64(key []byte) (uint64, error) {
	val, err := s.get(key)
	if errors.Is(err, errs.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(val) != 8 {
		return 0, errors.Wrapf(errs.ErrCorruptRecord, "%s holds %d bytes", key, len(val))
	}
	return binary.BigEndian.Uint64(val), nil
}

// Group returns the encoded record of group id.
func (s *Store) Group(id uint64) ([]byte, error) {
	return s.get(groupKey(id))
}

// Instrument returns the encoded record of instrument id.
func (s *Store) Instrument(id uint64) ([]byte, error) {
	return s.get(instrumentKey(id))
}

// GroupOf returns the group that owns instrument id.
func (s *Store) GroupOf(instrument uint64) (uint64, error) {
	val, err := s.get(indexKey(instrument))
	if err != nil {
		return 0, err
	}
	if len(val) != 8 {
		return 0, errors.Wrapf(errs.ErrCorruptRecord, "index of instrument %d", instrument)
	}
	return binary.BigEndian.Uint64(val), nil
}

// Applied returns the last journal sequence reflected in the records of
// group.
func (s *Store) Applied(group uint64) (uint64, error) {
	return s.getUint64(appliedKey(group))
}

// LastIDs returns the last group and instrument ids handed out.
func (s *Store) LastIDs() (group, instrument uint64, err error) {
	if group, err = s.getUint64([]byte(keyLastGroup)); err != nil {
		return 0, 0, err
	}
	instrument, err = s.getUint64([]byte(keyLastInstrument))
	return group, instrument, err
}

// Groups returns the ids of all stored groups in ascending order.
func (s *Store) Groups() ([]uint64, error) {
	var ids []uint64
	err := s.scan([]byte(groupPrefix), func(key, _ []byte) error {
		var id uint64
		if _, err := fmt.Sscanf(string(key[len(groupPrefix):]), "%d", &id); err != nil {
			return errors.Wrapf(errs.ErrCorruptRecord, "group key %q", key)
		}
		ids = append(ids, id)
		return nil
	})
	return ids, err
}

func (s *Store) scan(prefix []byte, fn func(key, val []byte) error) error {
	upper := append(append([]byte(nil), prefix...), 0xff)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upper})
	if err != nil {
		return err
	}
	defer iter.Close()
	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Key(), iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

// Each calls fn with every key and value in the store, in key order. The
// slices are only valid during the call.
func (s *Store) Each(fn func(key, val []byte) error) error {
	iter, err := s.db.NewIter(nil)
	if err != nil {
		return err
	}
	defer iter.Close()
	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Key(), iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

// Replace drops every record and writes kvs in one batch.
func (s *Store) Replace(kvs map[string][]byte) error {
	b := s.db.NewBatch()
	defer b.Close()
	if err := b.DeleteRange([]byte{0x00}, []byte{0xff}, nil); err != nil {
		return err
	}
	for k, v := range kvs {
		if err := b.Set([]byte(k), v, nil); err != nil {
			return err
		}
	}
	return b.Commit(pebble.Sync)
}

// Batch collects the writes of one invocation.
type Batch struct {
	s *Store
	b *pebble.Batch
}

func (s *Store) NewBatch() *Batch {
	return &Batch{s: s, b: s.db.NewBatch()}
}

func (b *Batch) PutGroup(id uint64, rec []byte) error {
	return b.b.Set(groupKey(id), rec, nil)
}

// PutInstrument writes the record of instrument id and indexes it under
// group.
func (b *Batch) PutInstrument(id, group uint64, rec []byte) error {
	if err := b.b.Set(instrumentKey(id), rec, nil); err != nil {
		return err
	}
	var g [8]byte
	binary.BigEndian.PutUint64(g[:], group)
	return b.b.Set(indexKey(id), g[:], nil)
}

func (b *Batch) putUint64(key []byte, v uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return b.b.Set(key, buf[:], nil)
}

// SetApplied records the journal sequence the group's records reflect.
func (b *Batch) SetApplied(group, seq uint64) error {
	return b.putUint64(appliedKey(group), seq)
}

func (b *Batch) SetLastGroup(id uint64) error {
	return b.putUint64([]byte(keyLastGroup), id)
}

func (b *Batch) SetLastInstrument(id uint64) error {
	return b.putUint64([]byte(keyLastInstrument), id)
}

// Commit writes the batch atomically and releases it.
func (b *Batch) Commit() error {
	defer b.b.Close()
	opts := pebble.NoSync
	if b.s.sync {
		opts = pebble.Sync
	}
	return errors.Wrap(b.b.Commit(opts), "committing batch")
}

// Discard releases the batch without writing it.
func (b *Batch) Discard() {
	_ = b.b.Close()
}
