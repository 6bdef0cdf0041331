package logging_test

import (
	"path/filepath"
	"testing"

	"clob/infra/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]logging.Level{
		"debug": logging.DebugLevel,
		"INFO":  logging.InfoLevel,
		"warn":  logging.WarnLevel,
		"error": logging.ErrorLevel,
	} {
		got, err := logging.ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := logging.ParseLevel("loud")
	assert.Error(t, err)
	assert.Equal(t, "warn", logging.WarnLevel.String())
}

func TestNamedSharesLevel(t *testing.T) {
	log, logs := logging.NewObservedLogger(logging.InfoLevel)
	child := log.Named("engine").Named("crank")
	assert.Equal(t, "engine.crank", child.GetName())

	child.Debug("hidden")
	child.Info("shown", logging.Instrument(7))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "engine.crank", entry.LoggerName)
	assert.EqualValues(t, 7, entry.ContextMap()["instrument"])

	log.SetLevel(logging.DebugLevel)
	assert.Equal(t, logging.DebugLevel, child.GetLevel())
	child.Debug("now shown")
	assert.Equal(t, 2, logs.Len())
}

func TestWithKeepsFields(t *testing.T) {
	log, logs := logging.NewObservedLogger(logging.DebugLevel)
	log.With(logging.Group(3)).Printf("group %d ready ", 3)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "group 3 ready", logs.All()[0].Message)
	assert.Contains(t, logs.All()[0].ContextMap(), "group")
}

func TestFileOutput(t *testing.T) {
	cfg := logging.NewDefaultConfig()
	cfg.Environment = "prod"
	cfg.File = filepath.Join(t.TempDir(), "clob.log")

	log := logging.NewLoggerFromConfig(cfg, logging.WarnLevel)
	log.Info("dropped")
	log.Warn("kept")
	log.AtExit()

	assert.FileExists(t, cfg.File)
	assert.Equal(t, logging.WarnLevel, log.GetLevel())
}
