package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	got    []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.got = append(w.got, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublishMapsMessages(t *testing.T) {
	w := &recordingWriter{}
	p := &Producer{writer: w}

	require.NoError(t, p.Publish(context.Background(), nil))
	assert.Empty(t, w.got)

	require.NoError(t, p.Publish(context.Background(), []Message{
		{Key: []byte("1"), Value: []byte("a")},
		{Key: []byte("2"), Value: []byte("b")},
	}))
	require.Len(t, w.got, 2)
	assert.Equal(t, []byte("2"), w.got[1].Key)
	assert.Equal(t, []byte("b"), w.got[1].Value)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublishError(t *testing.T) {
	p := &Producer{writer: &recordingWriter{err: errors.New("no leader")}}
	err := p.Publish(context.Background(), []Message{{Value: []byte("x")}})
	assert.ErrorContains(t, err, "no leader")
}
