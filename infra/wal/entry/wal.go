package entry

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"
	"time"

	"clob/config/encoding"
	"clob/infra/logging"
	"clob/infra/memory"
	"clob/infra/sequence"

	"github.com/pkg/errors"
)

type Config struct {
	Dir             string            `long:"dir" description:"journal directory"`
	SegmentSize     encoding.ByteSize `long:"segment-size" description:"rotate segments above this size, e.g. 64MiB"`
	SegmentDuration encoding.Duration `long:"segment-duration" description:"rotate segments older than this"`
	// Sync fsyncs every append.
	Sync bool `long:"sync"`
}

func NewDefaultConfig(root string) Config {
	return Config{
		Dir:             filepath.Join(root, "journal"),
		SegmentSize:     64 << 20,
		SegmentDuration: encoding.Duration{Duration: time.Hour},
		Sync:            true,
	}
}

var frames = memory.NewBuffers(512, 64<<10)

// WAL is the entry journal: every accepted invocation is appended before
// its effects are committed to the record store.
type WAL struct {
	log *logging.Logger
	cfg Config

	mu         sync.Mutex
	seq        *sequence.Sequencer
	current    *segment
	lastRotate time.Time
}

// Open opens the journal in cfg.Dir, continuing the highest segment and
// the sequence after its last complete record. A frame torn by a crash
// at the tail of that segment is cut off.
func Open(log *logging.Logger, cfg Config) (*WAL, error) {
	log = log.Named("journal")
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}
	paths, idx, err := segments(cfg.Dir)
	if err != nil {
		return nil, err
	}

	var lastSeq uint64
	index := 0
	for i, p := range paths {
		maxSeq, good, torn, err := scanSegment(p, nil)
		if err != nil {
			return nil, err
		}
		if torn {
			if i != len(paths)-1 {
				return nil, errors.Errorf("torn frame inside sealed segment %s", p)
			}
			log.Warn("cutting torn frame", logging.String("segment", p), logging.Int64("offset", good))
			if err := os.Truncate(p, good); err != nil {
				return nil, err
			}
		}
		if maxSeq > lastSeq {
			lastSeq = maxSeq
		}
		index = idx[i]
	}

	seg, err := openSegment(cfg.Dir, index)
	if err != nil {
		return nil, err
	}
	log.Info("journal opened",
		logging.String("dir", cfg.Dir),
		logging.Int("segment", index),
		logging.Uint64("last-seq", lastSeq))

	return &WAL{
		log:        log,
		cfg:        cfg,
		seq:        sequence.New(lastSeq),
		current:    seg,
		lastRotate: time.Now(),
	}, nil
}

// LastSeq returns the sequence of the last appended record.
func (w *WAL) LastSeq() uint64 {
	return w.seq.Last()
}

// Append frames data as the next record and writes it. The frame is
// [type:1][seq:8][time:8][len:4][payload][crc:4].
func (w *WAL) Append(t RecordType, now int64, data []byte) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	seq := w.seq.Pending()
	payloadLen := uint32(len(data))
	bufp := frames.Get(headerSize + int(payloadLen) + crcSize)
	defer frames.Put(bufp)
	buf := *bufp
	buf[0] = byte(t)
	binary.BigEndian.PutUint64(buf[1:9], seq)
	binary.BigEndian.PutUint64(buf[9:17], uint64(now))
	binary.BigEndian.PutUint32(buf[17:21], payloadLen)
	copy(buf[headerSize:], data)
	binary.BigEndian.PutUint32(buf[headerSize+int(payloadLen):], CRC32(buf[:headerSize+int(payloadLen)]))

	if err := w.current.append(buf); err != nil {
		return 0, errors.Wrapf(err, "appending %s record", t)
	}
	if w.cfg.Sync {
		if err := w.current.sync(); err != nil {
			return 0, errors.Wrap(err, "syncing journal")
		}
	}
	if err := w.seq.Commit(seq); err != nil {
		return 0, err
	}

	if w.current.offset >= w.cfg.SegmentSize.Bytes() ||
		w.cfg.SegmentDuration.Duration > 0 && time.Since(w.lastRotate) >= w.cfg.SegmentDuration.Duration {
		if err := w.rotate(); err != nil {
			return seq, err
		}
	}
	return seq, nil
}

func (w *WAL) rotate() error {
	next := w.current.index + 1
	if err := w.current.close(); err != nil {
		return err
	}
	seg, err := openSegment(w.cfg.Dir, next)
	if err != nil {
		return err
	}
	w.current = seg
	w.lastRotate = time.Now()
	w.log.Debug("journal rotated", logging.Int("segment", next))
	return nil
}

// TruncateBefore removes sealed segments whose records are all at or
// below seq. The segment being written is never removed.
func (w *WAL) TruncateBefore(seq uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	paths, idx, err := segments(w.cfg.Dir)
	if err != nil {
		return err
	}
	for i, path := range paths {
		if idx[i] >= w.current.index {
			continue
		}
		maxSeq, _, _, err := scanSegment(path, nil)
		if err != nil {
			return err
		}
		if maxSeq <= seq {
			if err := os.Remove(path); err != nil {
				return err
			}
			w.log.Debug("journal segment removed", logging.String("segment", path))
		}
	}
	return nil
}

func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current.close()
}
