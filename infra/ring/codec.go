package ring

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// HeaderSize is the encoded size of the ring header: [cap:8][head:8][tail:8].
const HeaderSize = 24

// ErrCorrupt is returned when encoded ring bytes are inconsistent.
var ErrCorrupt = errors.New("corrupt ring encoding")

// Codec encodes one item into a fixed-size slot.
type Codec[T any] interface {
	Size() int
	Put(dst []byte, v T)
	Get(src []byte) (T, error)
}

// EncodedLen is the byte length of an encoded ring of the given capacity.
func EncodedLen[T any](capacity uint64, c Codec[T]) int {
	return HeaderSize + int(capacity)*c.Size()
}

// Encode writes r into dst, which must be EncodedLen bytes long. Every
// slot of the arena is present; slots that hold no item are zeroed, so
// the layout depends only on the capacity.
func Encode[T any](dst []byte, r *Ring[T], c Codec[T]) {
	binary.BigEndian.PutUint64(dst[0:8], r.Cap())
	binary.BigEndian.PutUint64(dst[8:16], r.head)
	binary.BigEndian.PutUint64(dst[16:24], r.tail)

	size := c.Size()
	arena := dst[HeaderSize:]
	clear(arena[:int(r.Cap())*size])
	r.Each(func(cursor uint64, v T) bool {
		off := int(r.slot(cursor)) * size
		c.Put(arena[off:off+size], v)
		return true
	})
}

// Decode rebuilds a ring from src and returns it together with the
// number of bytes consumed.
func Decode[T any](src []byte, c Codec[T]) (*Ring[T], int, error) {
	capacity, head, tail, err := readHeader(src)
	if err != nil {
		return nil, 0, err
	}
	n := EncodedLen(capacity, c)
	if len(src) < n {
		return nil, 0, errors.Wrapf(ErrCorrupt, "need %d bytes, have %d", n, len(src))
	}

	r := New[T](capacity)
	r.head, r.tail = head, tail

	size := c.Size()
	arena := src[HeaderSize:]
	for cursor := head; cursor < tail; cursor++ {
		off := int(r.slot(cursor)) * size
		v, err := c.Get(arena[off : off+size])
		if err != nil {
			return nil, 0, errors.Wrapf(err, "slot %d", cursor)
		}
		r.slots[r.slot(cursor)] = v
	}
	return r, n, nil
}

// Cursors reads head and tail from an encoded ring without decoding any slot.
func Cursors(src []byte) (head, tail uint64, err error) {
	_, head, tail, err = readHeader(src)
	return head, tail, err
}

// SlotAt decodes the single item at cursor straight from the encoded
// ring. It costs one slot decode regardless of the ring size.
func SlotAt[T any](src []byte, cursor uint64, c Codec[T]) (T, error) {
	var zero T
	capacity, head, tail, err := readHeader(src)
	if err != nil {
		return zero, err
	}
	if cursor < head || cursor >= tail {
		return zero, errors.Errorf("cursor %d outside [%d, %d)", cursor, head, tail)
	}
	size := c.Size()
	off := HeaderSize + int(cursor%capacity)*size
	if len(src) < off+size {
		return zero, errors.Wrapf(ErrCorrupt, "slot %d out of bounds", cursor)
	}
	return c.Get(src[off : off+size])
}

func readHeader(src []byte) (capacity, head, tail uint64, err error) {
	if len(src) < HeaderSize {
		return 0, 0, 0, errors.Wrap(ErrCorrupt, "short header")
	}
	capacity = binary.BigEndian.Uint64(src[0:8])
	head = binary.BigEndian.Uint64(src[8:16])
	tail = binary.BigEndian.Uint64(src[16:24])
	if capacity == 0 || tail < head || tail-head > capacity {
		return 0, 0, 0, errors.Wrapf(ErrCorrupt, "cap=%d head=%d tail=%d", capacity, head, tail)
	}
	return capacity, head, tail, nil
}
