package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/converti/converti-api/internal/domain/model"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	declared   []string
	kind       string
	durable    bool
	declareErr error
	publishErr error
	sent       []published
	closed     bool
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, durable, _, _, _ bool, _ amqp.Table) error {
	if f.declareErr != nil {
		return f.declareErr
	}
	f.declared = append(f.declared, name)
	f.kind = kind
	f.durable = durable
	return nil
}

func (f *fakeChannel) PublishWithContext(
	_ context.Context,
	exchange, key string,
	_, _ bool,
	msg amqp.Publishing,
) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.sent = append(f.sent, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestNewPublisher(t *testing.T) {
	t.Run("declares a durable topic exchange", func(t *testing.T) {
		ch := &fakeChannel{}
		_, err := NewPublisher(ch, " converti.jobs ")
		require.NoError(t, err)
		assert.Equal(t, []string{"converti.jobs"}, ch.declared)
		assert.Equal(t, "topic", ch.kind)
		assert.True(t, ch.durable)
	})

	t.Run("rejects missing inputs", func(t *testing.T) {
		_, err := NewPublisher(nil, "x")
		require.Error(t, err)
		_, err = NewPublisher(&fakeChannel{}, "")
		require.Error(t, err)
	})

	t.Run("declare failure", func(t *testing.T) {
		_, err := NewPublisher(&fakeChannel{declareErr: errors.New("access refused")}, "x")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "access refused")
	})
}

func TestPublisher_Publish(t *testing.T) {
	ch := &fakeChannel{}
	p, err := NewPublisher(ch, "converti.jobs")
	require.NoError(t, err)

	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	event := model.JobEvent{
		Type:       model.JobEventCompleted,
		Job:        model.JobView{JobID: "abc", Status: model.JobStatusCompleted, TotalFiles: 1, ProcessedFiles: 1},
		OccurredAt: at,
	}
	require.NoError(t, p.Publish(context.Background(), event))

	require.Len(t, ch.sent, 1)
	got := ch.sent[0]
	assert.Equal(t, "converti.jobs", got.exchange)
	assert.Equal(t, "job.completed", got.key)
	assert.Equal(t, "application/json", got.msg.ContentType)
	assert.Equal(t, amqp.Persistent, got.msg.DeliveryMode)
	assert.Equal(t, at, got.msg.Timestamp)
	assert.Equal(t, "abc:job.completed", got.msg.MessageId)

	var decoded model.JobEvent
	require.NoError(t, json.Unmarshal(got.msg.Body, &decoded))
	assert.Equal(t, event.Type, decoded.Type)
	assert.Equal(t, "abc", decoded.Job.JobID)

	ch.publishErr = errors.New("channel closed")
	require.Error(t, p.Publish(context.Background(), event))

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}
