package encoding_test

import (
	"bytes"
	"testing"
	"time"

	"clob/config/encoding"
	"clob/infra/logging"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Interval encoding.Duration
	Level    encoding.LogLevel
	Segment  encoding.ByteSize
}

func TestDecodeFromTOML(t *testing.T) {
	var cfg sample
	_, err := toml.Decode("Interval = \"250ms\"\nLevel = \"warn\"\nSegment = \"64MiB\"\n", &cfg)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.Interval.Get())
	assert.Equal(t, logging.WarnLevel, cfg.Level.Get())
	assert.Equal(t, int64(64<<20), cfg.Segment.Bytes())
}

func TestEncodeKeepsReadableValues(t *testing.T) {
	cfg := sample{
		Interval: encoding.Duration{Duration: time.Minute},
		Level:    encoding.LogLevel{Level: logging.ErrorLevel},
		Segment:  encoding.ByteSize(3 << 10),
	}
	var buf bytes.Buffer
	require.NoError(t, toml.NewEncoder(&buf).Encode(cfg))
	assert.Contains(t, buf.String(), `Interval = "1m0s"`)
	assert.Contains(t, buf.String(), `Level = "error"`)
	assert.Contains(t, buf.String(), `Segment = "3KiB"`)

	var back sample
	_, err := toml.Decode(buf.String(), &back)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}

func TestByteSize(t *testing.T) {
	for in, want := range map[string]int64{
		"0":      0,
		"100":    100,
		"7B":     7,
		"2 KiB":  2 << 10,
		"1GiB":   1 << 30,
		"10MiB ": 10 << 20,
	} {
		var s encoding.ByteSize
		require.NoError(t, s.UnmarshalText([]byte(in)), in)
		assert.Equal(t, want, s.Bytes(), in)
	}
	for _, in := range []string{"", "MiB", "-1", "1.5MiB", "1TiB", "99999999999GiB"} {
		var s encoding.ByteSize
		assert.Error(t, s.UnmarshalText([]byte(in)), in)
	}

	out, err := encoding.ByteSize(1536).MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1536B", string(out))
	out, err = encoding.ByteSize(0).MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "0B", string(out))
}

func TestFlags(t *testing.T) {
	var d encoding.Duration
	assert.Error(t, d.UnmarshalFlag("soon"))

	var l encoding.LogLevel
	require.NoError(t, l.UnmarshalFlag("debug"))
	assert.Equal(t, logging.DebugLevel, l.Get())

	var b encoding.Bool
	require.NoError(t, b.UnmarshalFlag("true"))
	assert.True(t, bool(b))
	require.NoError(t, b.UnmarshalFlag("false"))
	assert.False(t, bool(b))
	assert.Error(t, b.UnmarshalFlag("yes"))
}
