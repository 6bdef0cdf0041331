// Package encoding holds the configuration value types that read from
// both clob.toml and the command line.
package encoding

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"clob/infra/logging"

	"github.com/pkg/errors"
)

// Duration reads "250ms" or "1h" style values.
type Duration struct {
	time.Duration
}

func (d Duration) Get() time.Duration { return d.Duration }

func (d *Duration) UnmarshalText(text []byte) (err error) {
	d.Duration, err = time.ParseDuration(string(text))
	return errors.Wrapf(err, "duration %q", text)
}

func (d *Duration) UnmarshalFlag(s string) error { return d.UnmarshalText([]byte(s)) }

func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// LogLevel reads a level name. Write needs MarshalText to keep the name
// readable in the generated file.
type LogLevel struct {
	logging.Level
}

func (l LogLevel) Get() logging.Level { return l.Level }

func (l *LogLevel) UnmarshalText(text []byte) (err error) {
	l.Level, err = logging.ParseLevel(string(text))
	return err
}

func (l *LogLevel) UnmarshalFlag(s string) error { return l.UnmarshalText([]byte(s)) }

func (l LogLevel) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

// Bool is a flag that takes an explicit value, so `--reporter.enabled=false`
// can switch off what the file turned on.
type Bool bool

func (b *Bool) UnmarshalFlag(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return errors.Errorf("expected true or false, got %q", s)
	}
	*b = Bool(v)
	return nil
}

// ByteSize reads sizes such as "512KiB" or "64MiB". A bare number is a
// count of bytes.
type ByteSize int64

var byteUnits = []struct {
	suffix string
	scale  int64
}{
	{"GiB", 1 << 30},
	{"MiB", 1 << 20},
	{"KiB", 1 << 10},
	{"B", 1},
}

func (s ByteSize) Bytes() int64 { return int64(s) }

func (s *ByteSize) UnmarshalText(text []byte) error {
	str := strings.TrimSpace(string(text))
	scale := int64(1)
	for _, u := range byteUnits {
		if strings.HasSuffix(str, u.suffix) {
			str, scale = strings.TrimSpace(strings.TrimSuffix(str, u.suffix)), u.scale
			break
		}
	}
	n, err := strconv.ParseInt(str, 10, 64)
	if err != nil || n < 0 || n > (1<<63-1)/scale {
		return errors.Errorf("invalid size %q", text)
	}
	*s = ByteSize(n * scale)
	return nil
}

func (s *ByteSize) UnmarshalFlag(v string) error { return s.UnmarshalText([]byte(v)) }

// MarshalText uses the largest unit that divides the size exactly.
func (s ByteSize) MarshalText() ([]byte, error) {
	for _, u := range byteUnits {
		if int64(s) != 0 && int64(s)%u.scale == 0 {
			return []byte(fmt.Sprintf("%d%s", int64(s)/u.scale, u.suffix)), nil
		}
	}
	return []byte("0B"), nil
}
