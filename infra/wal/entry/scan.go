package entry

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"
)

const (
	headerSize = 1 + 8 + 8 + 4
	crcSize    = 4
)

// errTorn marks a frame cut short by a crash during append.
var errTorn = errors.New("torn frame")

func readRecord(r io.Reader) (*Record, int64, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, 0, errTorn
		}
		return nil, 0, err
	}

	l := binary.BigEndian.Uint32(header[17:21])
	data := make([]byte, int(l)+crcSize)
	if _, err := io.ReadFull(r, data); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, 0, errTorn
		}
		return nil, 0, err
	}

	payload := data[:l]
	sum := binary.BigEndian.Uint32(data[l:])
	if !CRC32Valid(append(header, payload...), sum) {
		return nil, 0, errors.Errorf("crc mismatch at seq %d", binary.BigEndian.Uint64(header[1:9]))
	}

	return &Record{
		Type: RecordType(header[0]),
		Seq:  binary.BigEndian.Uint64(header[1:9]),
		Time: int64(binary.BigEndian.Uint64(header[9:17])),
		Data: payload,
	}, int64(headerSize) + int64(l) + crcSize, nil
}

// scanSegment reads every frame of a segment. It returns the highest
// sequence found and the offset just past the last complete frame.
func scanSegment(path string, fn func(*Record) error) (maxSeq uint64, good int64, torn bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, false, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for {
		rec, n, err := readRecord(r)
		if err == io.EOF {
			return maxSeq, good, false, nil
		}
		if errors.Is(err, errTorn) {
			return maxSeq, good, true, nil
		}
		if err != nil {
			return maxSeq, good, false, errors.Wrapf(err, "segment %s", path)
		}
		if rec.Seq > maxSeq {
			maxSeq = rec.Seq
		}
		good += n
		if fn != nil {
			if err := fn(rec); err != nil {
				return maxSeq, good, false, err
			}
		}
	}
}
