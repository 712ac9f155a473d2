package outbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appoutbox "staybook/internal/app/outbox"
	infraoutbox "staybook/internal/infra/outbox"
	"staybook/internal/infra/storage/memory"
)

type published struct {
	topic   string
	key     string
	payload []byte
	headers map[string]string
}

type fakeProducer struct {
	sent []published
	fail error
}

func (p *fakeProducer) Publish(_ context.Context, topic, key string, payload []byte, headers map[string]string) error {
	if p.fail != nil {
		return p.fail
	}
	p.sent = append(p.sent, published{topic: topic, key: key, payload: payload, headers: headers})
	return nil
}

func record(id, name string) appoutbox.EventRecord {
	return appoutbox.EventRecord{
		ID:         id,
		Name:       name,
		Payload:    []byte(`{"booking_id":"b-1","status":"confirmed"}`),
		OccurredAt: time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC),
		Aggregate:  "b-1",
		Headers:    map[string]string{"traceparent": "00-abc-def-01"},
	}
}

func TestWorker_DrainPublishesCloudEvents(t *testing.T) {
	store := memory.NewOutbox()
	require.NoError(t, store.Add(t.Context(), record("e-1", "booking.confirmed")))
	require.NoError(t, store.Add(t.Context(), record("e-2", "calendar.blocked")))
	producer := &fakeProducer{}
	w := &infraoutbox.Worker{Store: store, Producer: producer, TopicPrefix: "dev."}

	sent, err := w.Drain(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Empty(t, store.Pending())

	require.Len(t, producer.sent, 2)
	first := producer.sent[0]
	assert.Equal(t, "dev.booking.events.v1", first.topic)
	assert.Equal(t, "dev.booking.events.v1", producer.sent[1].topic)
	assert.Equal(t, "b-1", first.key)
	assert.Equal(t, "application/cloudevents+json", first.headers["content-type"])

	var envelope map[string]any
	require.NoError(t, json.Unmarshal(first.payload, &envelope))
	assert.Equal(t, "booking.confirmed.v1", envelope["type"])
	assert.Equal(t, "e-1", envelope["id"])
	assert.Equal(t, "00-abc-def-01", envelope["traceparent"])
	data, ok := envelope["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "confirmed", data["status"])
}

func TestWorker_FailedPublishIsRescheduled(t *testing.T) {
	store := memory.NewOutbox()
	require.NoError(t, store.Add(t.Context(), record("e-1", "booking.created")))
	producer := &fakeProducer{fail: errors.New("broker down")}
	w := &infraoutbox.Worker{Store: store, Producer: producer, Backoff: []time.Duration{time.Hour}}

	sent, err := w.Drain(t.Context())
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Equal(t, []string{"booking.created"}, store.Pending())

	msg, err := store.Claim(t.Context(), "other")
	require.NoError(t, err)
	assert.Nil(t, msg, "record must wait for its backoff")
}

func TestWorker_RunRequiresDependencies(t *testing.T) {
	w := &infraoutbox.Worker{}
	assert.ErrorIs(t, w.Run(context.Background()), infraoutbox.ErrWorkerNotConfigured)
}

func TestWorker_NudgeDrainsBeforeTick(t *testing.T) {
	store := memory.NewOutbox()
	producer := &fakeProducer{}
	w := &infraoutbox.Worker{Store: store, Producer: producer, Interval: time.Hour}
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.NoError(t, store.Add(t.Context(), record("e-1", "booking.cancelled")))
	require.NoError(t, w.Flush(t.Context()))
	assert.Eventually(t, func() bool { return len(store.Pending()) == 0 }, time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
