package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Producer interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

// Worker relays committed outbox records to the broker as CloudEvents.
type Worker struct {
	Store       Store
	Producer    Producer
	Interval    time.Duration
	TopicPrefix string
	Source      string
	ID          string
	Backoff     []time.Duration
	Logger      *slog.Logger

	once  sync.Once
	nudge chan struct{}
}

var ErrWorkerNotConfigured = errors.New("outbox: worker missing dependencies")

func (w *Worker) Run(ctx context.Context) error {
	if w.Store == nil || w.Producer == nil {
		return ErrWorkerNotConfigured
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-w.nudges():
		}
		if _, err := w.Drain(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger().Error("outbox relay failed", "err", err)
		}
	}
}

// Nudge asks a running worker to drain now instead of waiting for the next tick.
func (w *Worker) Nudge() {
	select {
	case w.nudges() <- struct{}{}:
	default:
	}
}

// Flush lets the worker serve as the command pipeline's outbox flusher.
func (w *Worker) Flush(context.Context) error {
	w.Nudge()
	return nil
}

// Drain publishes due records until none is left and reports how many were sent.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	sent := 0
	for {
		msg, err := w.Store.Claim(ctx, w.workerID())
		if err != nil || msg == nil {
			return sent, err
		}
		ok, err := w.publish(ctx, msg)
		if err != nil {
			return sent, err
		}
		if ok {
			sent++
		} else {
			// failed records are rescheduled; leave them for a later pass
			return sent, nil
		}
	}
}

func (w *Worker) publish(ctx context.Context, msg *Message) (bool, error) {
	topic := w.topicFor(msg.Name)
	payload, headers, err := w.formatPayload(msg)
	if err != nil {
		return false, w.Store.MarkFailed(ctx, msg.ID, w.nextRetry(msg.Attempts), err.Error())
	}
	if err := w.Producer.Publish(ctx, topic, msg.Aggregate, payload, headers); err != nil {
		w.logger().Warn("outbox publish failed", "event", msg.Name, "id", msg.ID, "attempts", msg.Attempts+1, "err", err)
		return false, w.Store.MarkFailed(ctx, msg.ID, w.nextRetry(msg.Attempts), err.Error())
	}
	return true, w.Store.MarkSent(ctx, msg.ID)
}

func (w *Worker) formatPayload(msg *Message) ([]byte, map[string]string, error) {
	data := map[string]any{}
	if err := json.Unmarshal(msg.Payload, &data); err != nil {
		return nil, nil, err
	}
	evt := map[string]any{
		"specversion":     "1.0",
		"id":              msg.ID,
		"type":            msg.Name + ".v1",
		"source":          w.source(),
		"subject":         msg.Aggregate,
		"time":            msg.OccurredAt,
		"datacontenttype": "application/json",
		"data":            data,
	}
	if trace, ok := msg.Headers["traceparent"]; ok {
		evt["traceparent"] = trace
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, nil, err
	}
	headers := map[string]string{
		"content-type": "application/cloudevents+json",
	}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	return payload, headers, nil
}

// topicFor maps booking.* and calendar.* events onto one stream per aggregate
// family, so a property's events stay ordered under the booking key.
func (w *Worker) topicFor(name string) string {
	base := name
	if idx := strings.IndexRune(name, '.'); idx > 0 {
		base = name[:idx]
	}
	if base == "calendar" {
		base = "booking"
	}
	topic := base + ".events.v1"
	if w.TopicPrefix != "" {
		topic = w.TopicPrefix + topic
	}
	return topic
}

func (w *Worker) nudges() chan struct{} {
	w.once.Do(func() { w.nudge = make(chan struct{}, 1) })
	return w.nudge
}

func (w *Worker) workerID() string {
	if w.ID != "" {
		return w.ID
	}
	return "outbox-relay"
}

func (w *Worker) interval() time.Duration {
	if w.Interval <= 0 {
		return 500 * time.Millisecond
	}
	return w.Interval
}

func (w *Worker) nextRetry(attempts int) time.Time {
	if attempts < len(w.Backoff) {
		return time.Now().Add(w.Backoff[attempts])
	}
	if len(w.Backoff) > 0 {
		return time.Now().Add(w.Backoff[len(w.Backoff)-1])
	}
	return time.Now().Add(5 * time.Second)
}

func (w *Worker) source() string {
	if w.Source != "" {
		return w.Source
	}
	return "app://staybook"
}

func (w *Worker) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}

// LogProducer stands in for the broker when none is configured.
type LogProducer struct {
	Logger *slog.Logger
}

func (p LogProducer) Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("event published", "topic", topic, "key", key, "bytes", len(payload))
	return nil
}
