package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAndLoadLatest(t *testing.T) {
	dir := t.TempDir()
	w := &Writer{Dir: dir, Keep: 2}

	none, err := LoadLatest(dir)
	require.NoError(t, err)
	assert.Nil(t, none)

	for _, seq := range []uint64{5, 9, 12} {
		_, err := w.Write(&Snapshot{
			Seq:     seq,
			Created: time.Unix(int64(seq), 0).UTC(),
			Records: []Record{{Key: "group/1", Value: []byte{byte(seq)}}},
		})
		require.NoError(t, err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*"))
	require.NoError(t, err)
	assert.Len(t, files, 2, "oldest snapshot pruned, no temp files left")

	s, err := LoadLatest(dir)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, uint64(12), s.Seq)
	assert.Equal(t, map[string][]byte{"group/1": {12}}, s.Map())
}

func TestLoadCorrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, fileName(1)), []byte("junk"), 0o644))
	_, err := LoadLatest(dir)
	assert.Error(t, err)
}
