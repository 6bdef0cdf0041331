package ring

import (
	"encoding/binary"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type u64Codec struct{}

func (u64Codec) Size() int { return 8 }
func (u64Codec) Put(dst []byte, v uint64) { binary.BigEndian.PutUint64(dst, v) }
func (u64Codec) Get(src []byte) (uint64, error) {
	v := binary.BigEndian.Uint64(src)
	if v == 0 {
		return 0, errors.New("zero slot")
	}
	return v, nil
}

func TestRingBasic(t *testing.T) {
	r := New[uint64](4)

	if !r.Enqueue(1) || !r.Enqueue(2) {
		t.Fatal("enqueue failed unexpectedly")
	}
	v, ok := r.Dequeue()
	if !ok || v != 1 {
		t.Errorf("expected first dequeue to be 1, got %d", v)
	}
	v, ok = r.Dequeue()
	if !ok || v != 2 {
		t.Errorf("expected second dequeue to be 2, got %d", v)
	}
	if _, ok := r.Dequeue(); ok {
		t.Error("expected empty ring to report no item")
	}
}

func TestRingFullRejectsWithoutCorruption(t *testing.T) {
	r := New[uint64](3)
	for i := uint64(1); i <= 3; i++ {
		require.True(t, r.Enqueue(i))
	}
	assert.True(t, r.Full())
	assert.False(t, r.Enqueue(99))
	assert.Equal(t, uint64(3), r.Len())
	assert.Equal(t, uint64(0), r.Free())

	var got []uint64
	r.Each(func(_ uint64, v uint64) bool {
		got = append(got, v)
		return true
	})
	assert.Equal(t, []uint64{1, 2, 3}, got)
}

func TestRingWrapAround(t *testing.T) {
	r := New[uint64](2)
	for i := uint64(1); i <= 10; i++ {
		require.True(t, r.Enqueue(i))
		v, ok := r.Dequeue()
		require.True(t, ok)
		require.Equal(t, i, v)
	}
	assert.Equal(t, uint64(10), r.Head())
	assert.Equal(t, uint64(10), r.Tail())
	assert.True(t, r.Empty())
}

func TestRingAtAndDiscard(t *testing.T) {
	r := New[uint64](4)
	for i := uint64(1); i <= 4; i++ {
		r.Enqueue(i * 10)
	}
	v, ok := r.At(2)
	assert.True(t, ok)
	assert.Equal(t, uint64(30), v)

	_, ok = r.At(4)
	assert.False(t, ok)

	assert.Equal(t, uint64(2), r.Discard(2))
	_, ok = r.At(1)
	assert.False(t, ok)
	head, _ := r.Peek()
	assert.Equal(t, uint64(30), head)

	assert.Equal(t, uint64(2), r.Discard(10))
	assert.True(t, r.Empty())
}

func TestRingEncodeDecode(t *testing.T) {
	r := New[uint64](3)
	for i := uint64(1); i <= 5; i++ {
		r.Enqueue(i)
		if i <= 2 {
			r.Dequeue()
		}
	}

	buf := make([]byte, EncodedLen[uint64](r.Cap(), u64Codec{}))
	Encode(buf, r, u64Codec{})

	got, n, err := Decode[uint64](buf, u64Codec{})
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, r.Head(), got.Head())
	assert.Equal(t, r.Tail(), got.Tail())

	for c := r.Head(); c < r.Tail(); c++ {
		want, _ := r.At(c)
		slot, err := SlotAt[uint64](buf, c, u64Codec{})
		require.NoError(t, err)
		assert.Equal(t, want, slot)
	}

	_, err = SlotAt[uint64](buf, r.Tail(), u64Codec{})
	assert.Error(t, err)

	head, tail, err := Cursors(buf)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), head)
	assert.Equal(t, uint64(5), tail)
}

func TestRingDecodeRejectsBadHeader(t *testing.T) {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint64(buf[0:8], 2)
	binary.BigEndian.PutUint64(buf[8:16], 0)
	binary.BigEndian.PutUint64(buf[16:24], 3)

	_, _, err := Decode[uint64](buf, u64Codec{})
	assert.True(t, errors.Is(err, ErrCorrupt))

	_, _, err = Decode[uint64](buf[:10], u64Codec{})
	assert.True(t, errors.Is(err, ErrCorrupt))
}

func TestRingBoundProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		capacity := rapid.Uint64Range(1, 16).Draw(t, "capacity")
		r := New[uint64](capacity)
		var model []uint64
		next := uint64(1)

		ops := rapid.SliceOfN(rapid.Bool(), 1, 200).Draw(t, "ops")
		for _, enqueue := range ops {
			if enqueue {
				ok := r.Enqueue(next)
				if uint64(len(model)) == capacity {
					if ok {
						t.Fatalf("enqueue succeeded on full ring")
					}
				} else {
					if !ok {
						t.Fatalf("enqueue failed with %d/%d", len(model), capacity)
					}
					model = append(model, next)
				}
				next++
			} else {
				v, ok := r.Dequeue()
				if len(model) == 0 {
					if ok {
						t.Fatalf("dequeue succeeded on empty ring")
					}
					continue
				}
				if !ok || v != model[0] {
					t.Fatalf("dequeue got %d, want %d", v, model[0])
				}
				model = model[1:]
			}
			if r.Len() > r.Cap() || r.Len() != uint64(len(model)) {
				t.Fatalf("len %d, model %d, cap %d", r.Len(), len(model), r.Cap())
			}
		}
	})
}
