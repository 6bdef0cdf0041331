package snapshot

import "time"

type Snapshot struct {
	Seq     uint64
	Created time.Time
	Records []Record
}

type Record struct {
	Key   string
	Value []byte
}

// Map returns the records keyed by key.
func (s *Snapshot) Map() map[string][]byte {
	out := make(map[string][]byte, len(s.Records))
	for _, r := range s.Records {
		out[r.Key] = r.Value
	}
	return out
}
