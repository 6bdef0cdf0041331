package snapshot

import (
	"encoding/gob"
	"os"

	"github.com/pkg/errors"
)

// LoadLatest reads the newest snapshot in dir. It returns nil without an
// error when there is none.
func LoadLatest(dir string) (*Snapshot, error) {
	files, err := list(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}
	return Load(files[len(files)-1])
}

func Load(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var s Snapshot
	if err := gob.NewDecoder(f).Decode(&s); err != nil {
		return nil, errors.Wrapf(err, "decoding snapshot %s", path)
	}
	return &s, nil
}
