// Package exit is the report outbox: execution reports drained from the
// engine wait here until the publisher has handed them to the broker.
package exit

import (
	"encoding/binary"
	"fmt"
	"path/filepath"
	"time"

	"clob/domain/errs"
	"clob/infra/logging"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"
)

// -------------------- State --------------------

type ExitState uint8

const (
	StateNew ExitState = iota
	StateSent
	StateAcked
	StateFailed
)

func (s ExitState) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// -------------------- Record --------------------

// Key addresses one execution report.
type Key struct {
	Instrument uint64
	Seq        uint64
}

func (k Key) bytes() []byte {
	return []byte(fmt.Sprintf("%s%020d/%020d", keyPrefix, k.Instrument, k.Seq))
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%d", k.Instrument, k.Seq)
}

type ExitRecord struct {
	State       ExitState
	Retries     uint32
	LastAttempt int64
	Payload     []byte
}

const (
	keyPrefix  = "report/"
	recordHead = 1 + 4 + 8
)

// binary encoding: [state:1][retries:4][lastAttempt:8][payload]
func encodeRecord(r ExitRecord) []byte {
	buf := make([]byte, recordHead+len(r.Payload))
	buf[0] = byte(r.State)
	binary.BigEndian.PutUint32(buf[1:5], r.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(r.LastAttempt))
	copy(buf[recordHead:], r.Payload)
	return buf
}

func decodeRecord(b []byte) (ExitRecord, error) {
	if len(b) < recordHead {
		return ExitRecord{}, errors.Wrapf(errs.ErrCorruptRecord, "outbox record of %d bytes", len(b))
	}
	return ExitRecord{
		State:       ExitState(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Payload:     append([]byte(nil), b[recordHead:]...),
	}, nil
}

func parseKey(b []byte) (Key, error) {
	var k Key
	_, err := fmt.Sscanf(string(b[len(keyPrefix):]), "%020d/%020d", &k.Instrument, &k.Seq)
	if err != nil {
		return k, errors.Wrapf(errs.ErrCorruptRecord, "outbox key %q", b)
	}
	return k, nil
}

// -------------------- WAL --------------------

type Config struct {
	Dir string `long:"dir" description:"directory of the report outbox"`
}

func NewDefaultConfig(root string) Config {
	return Config{Dir: filepath.Join(root, "outbox")}
}

type ExitWAL struct {
	log *logging.Logger
	db  *pebble.DB
	now func() time.Time
}

func Open(log *logging.Logger, cfg Config) (*ExitWAL, error) {
	db, err := pebble.Open(cfg.Dir, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "opening outbox at %s", cfg.Dir)
	}
	return &ExitWAL{log: log.Named("outbox"), db: db, now: time.Now}, nil
}

func (w *ExitWAL) Close() error {
	return w.db.Close()
}

// -------------------- API --------------------

// Entry is a report to archive.
type Entry struct {
	Key     Key
	Payload []byte
}

// PutNew archives entries in state NEW in one batch. Entries already in
// the outbox keep their state, so draining the same report twice does not
// publish it twice.
func (w *ExitWAL) PutNew(entries []Entry) (added int, err error) {
	b := w.db.NewBatch()
	defer b.Close()
	for _, e := range entries {
		key := e.Key.bytes()
		_, closer, err := w.db.Get(key)
		if err == nil {
			_ = closer.Close()
			continue
		}
		if !errors.Is(err, pebble.ErrNotFound) {
			return 0, err
		}
		if err := b.Set(key, encodeRecord(ExitRecord{State: StateNew, Payload: e.Payload}), nil); err != nil {
			return 0, err
		}
		added++
	}
	if added == 0 {
		return 0, nil
	}
	return added, b.Commit(pebble.Sync)
}

// UpdateState moves a record to state after send / ack / failure.
func (w *ExitWAL) UpdateState(k Key, state ExitState, retries uint32) error {
	rec, err := w.Get(k)
	if err != nil {
		return err
	}
	rec.State = state
	rec.Retries = retries
	rec.LastAttempt = w.now().UnixNano()
	return w.db.Set(k.bytes(), encodeRecord(rec), pebble.Sync)
}

// Delete removes a record.
func (w *ExitWAL) Delete(k Key) error {
	return w.db.Delete(k.bytes(), pebble.Sync)
}

// Get returns the current record of a report.
func (w *ExitWAL) Get(k Key) (ExitRecord, error) {
	val, closer, err := w.db.Get(k.bytes())
	if errors.Is(err, pebble.ErrNotFound) {
		return ExitRecord{}, errors.Wrapf(errs.ErrNotFound, "outbox record %s", k)
	}
	if err != nil {
		return ExitRecord{}, err
	}
	defer closer.Close()

	return decodeRecord(val)
}

// -------------------- Scan --------------------

// ScanByState calls fn for up to limit records in state, in key order. A
// limit of 0 scans everything.
func (w *ExitWAL) ScanByState(state ExitState, limit int, fn func(Key, ExitRecord) error) error {
	iter, err := w.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte("report/~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	n := 0
	for iter.First(); iter.Valid(); iter.Next() {
		rec, err := decodeRecord(iter.Value())
		if err != nil {
			return err
		}
		if rec.State != state {
			continue
		}
		k, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		if err := fn(k, rec); err != nil {
			return err
		}
		if n++; limit > 0 && n >= limit {
			break
		}
	}
	return iter.Error()
}

// PurgeAcked deletes acknowledged records and returns how many it removed.
func (w *ExitWAL) PurgeAcked() (int, error) {
	var keys []Key
	if err := w.ScanByState(StateAcked, 0, func(k Key, _ ExitRecord) error {
		keys = append(keys, k)
		return nil
	}); err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	b := w.db.NewBatch()
	defer b.Close()
	for _, k := range keys {
		if err := b.Delete(k.bytes(), nil); err != nil {
			return 0, err
		}
	}
	return len(keys), b.Commit(pebble.Sync)
}
