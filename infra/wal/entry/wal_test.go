package entry

import (
	"os"
	"testing"

	"clob/config/encoding"
	"clob/infra/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, segSize int64) Config {
	return Config{Dir: t.TempDir(), SegmentSize: encoding.ByteSize(segSize), SegmentDuration: encoding.Duration{}}
}

func collect(t *testing.T, dir string, after uint64) []*Record {
	t.Helper()
	var out []*Record
	_, err := Replay(dir, after, func(r *Record) error {
		out = append(out, r)
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestAppendAndReplay(t *testing.T) {
	cfg := testConfig(t, 1<<20)
	w, err := Open(logging.NewTestLogger(), cfg)
	require.NoError(t, err)

	seq, err := w.Append(RecordCreateGroup, 100, []byte("a"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq)
	seq, err = w.Append(RecordSubmit, 101, []byte("bb"))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), seq)
	require.NoError(t, w.Close())

	recs := collect(t, cfg.Dir, 0)
	require.Len(t, recs, 2)
	assert.Equal(t, Record{Type: RecordSubmit, Seq: 2, Time: 101, Data: []byte("bb")}, *recs[1])

	recs = collect(t, cfg.Dir, 1)
	require.Len(t, recs, 1)
	assert.Equal(t, uint64(2), recs[0].Seq)
}

func TestReopenContinuesSequence(t *testing.T) {
	cfg := testConfig(t, 1<<20)
	w, err := Open(logging.NewTestLogger(), cfg)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := w.Append(RecordCrank, int64(i), nil)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	w, err = Open(logging.NewTestLogger(), cfg)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), w.LastSeq())
	seq, err := w.Append(RecordCrank, 9, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), seq)
	require.NoError(t, w.Close())

	assert.Len(t, collect(t, cfg.Dir, 0), 4)
}

func TestTornTailIsCut(t *testing.T) {
	cfg := testConfig(t, 1<<20)
	w, err := Open(logging.NewTestLogger(), cfg)
	require.NoError(t, err)
	_, err = w.Append(RecordDeposit, 1, []byte("full"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	// a crash in the middle of the second frame
	f, err := os.OpenFile(segmentPath(cfg.Dir, 0), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte{byte(RecordDeposit), 0, 0, 0})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	assert.Len(t, collect(t, cfg.Dir, 0), 1)

	w, err = Open(logging.NewTestLogger(), cfg)
	require.NoError(t, err)
	seq, err := w.Append(RecordWithdraw, 2, []byte("next"))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), seq)
	require.NoError(t, w.Close())

	recs := collect(t, cfg.Dir, 0)
	require.Len(t, recs, 2)
	assert.Equal(t, []byte("next"), recs[1].Data)
}

func TestCorruptFrameFailsReplay(t *testing.T) {
	cfg := testConfig(t, 1<<20)
	w, err := Open(logging.NewTestLogger(), cfg)
	require.NoError(t, err)
	_, err = w.Append(RecordCancel, 1, []byte("payload"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	path := segmentPath(cfg.Dir, 0)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	b[headerSize] ^= 0xff
	require.NoError(t, os.WriteFile(path, b, 0o644))

	_, err = Replay(cfg.Dir, 0, func(*Record) error { return nil })
	assert.Error(t, err)
}

func TestRotateAndTruncate(t *testing.T) {
	cfg := testConfig(t, 1)
	w, err := Open(logging.NewTestLogger(), cfg)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		_, err := w.Append(RecordSubmit, int64(i), []byte{byte(i)})
		require.NoError(t, err)
	}

	paths, _, err := segments(cfg.Dir)
	require.NoError(t, err)
	// every append seals a segment and opens an empty one
	assert.Len(t, paths, 5)

	require.NoError(t, w.TruncateBefore(2))
	paths, idx, err := segments(cfg.Dir)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 4}, idx)
	assert.Len(t, paths, 3)

	recs := collect(t, cfg.Dir, 0)
	require.Len(t, recs, 2)
	assert.Equal(t, uint64(3), recs[0].Seq)

	seq, err := w.Append(RecordSubmit, 9, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), seq)
	require.NoError(t, w.Close())
}

func TestRecordTypeNames(t *testing.T) {
	assert.Equal(t, "submit", RecordSubmit.String())
	assert.Equal(t, "ack_reports", RecordAckReports.String())
	assert.Equal(t, "unknown", RecordType(0).String())
}
