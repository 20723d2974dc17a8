package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/streamtip/swap-adapter/internal/metrics"
	"github.com/streamtip/swap-adapter/pkg/logger"
	"github.com/streamtip/swap-adapter/pkg/model"
)

// Publisher wraps a NATS connection and publishes swap lifecycle events.
// Downstream consumers (viewer push, notifications) subscribe to these
// subjects; the engine itself never talks to a browser.
type Publisher struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	service string
}

// New creates a new Publisher with JetStream enabled.
func New(nc *nats.Conn, service string) (*Publisher, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	return &Publisher{
		nc:      nc,
		js:      js,
		service: service,
	}, nil
}

// PublishStatusChanged emits a swap status-change event. Terminal statuses
// additionally get a dedicated final-event subject so consumers can subscribe
// to outcomes only.
func (p *Publisher) PublishStatusChanged(ctx context.Context, sw *model.Swap, source string) error {
	event := model.SwapStatusEvent{
		EventID:   uuid.New(),
		TradeID:   sw.TradeID,
		Provider:  sw.Provider,
		Status:    sw.Status,
		Reason:    sw.Reason,
		Final:     sw.Status.IsTerminal(),
		Source:    source,
		Timestamp: time.Now().UTC(),
	}

	if err := p.publish(ctx, "evt.swap.status_changed.v1", event); err != nil {
		return err
	}

	if event.Final {
		return p.publish(ctx, "evt.swap."+string(sw.Status)+".v1", event)
	}
	return nil
}

// Publish emits an arbitrary payload on the given subject. Used by
// background jobs for non-lifecycle events.
func (p *Publisher) Publish(ctx context.Context, subject string, payload any) error {
	return p.publish(ctx, subject, payload)
}

// publish serializes and publishes a payload to JetStream.
func (p *Publisher) publish(ctx context.Context, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		metrics.IncError("publisher", "marshal_failed")
		return err
	}

	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"source":       []string{p.service},
			"content_type": []string{"application/json"},
		},
	}

	if _, err := p.js.PublishMsg(msg); err != nil {
		logger.S().Errorw("publisher.publish_failed",
			"subject", subject,
			"error", err,
		)
		metrics.IncNATSMessage(subject, "error")
		return err
	}

	metrics.IncNATSMessage(subject, "ok")
	return nil
}

func (p *Publisher) Close() {
	if p.nc != nil && p.nc.IsConnected() {
		p.nc.Close()
	}
}
