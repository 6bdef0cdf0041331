package sequence

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommitAdvances(t *testing.T) {
	s := New(10)
	assert.Equal(t, uint64(11), s.Pending())
	// nothing is issued until the record is committed
	assert.Equal(t, uint64(11), s.Pending())
	assert.Equal(t, uint64(10), s.Last())

	require.NoError(t, s.Commit(11))
	assert.Equal(t, uint64(11), s.Last())
	assert.Equal(t, uint64(12), s.Pending())
}

func TestCommitRejectsGapsAndRepeats(t *testing.T) {
	s := New(0)
	assert.Error(t, s.Commit(2))
	require.NoError(t, s.Commit(1))
	assert.Error(t, s.Commit(1))
	assert.Equal(t, uint64(1), s.Last())
}

func TestConcurrentCommitsAreUnique(t *testing.T) {
	s := New(0)
	const workers, each = 8, 500

	var mu sync.Mutex
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				mu.Lock()
				err := s.Commit(s.Pending())
				mu.Unlock()
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(workers*each), s.Last())
}
