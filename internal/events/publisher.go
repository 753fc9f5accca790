// Package events fans message lifecycle events out over NATS for realtime
// delivery (websocket gateways, push dispatch). Publishing is fire-and-forget:
// errors are logged, never propagated.
package events

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

type Publisher struct {
	nc  *nats.Conn
	log *zap.Logger
}

func NewPublisher(natsURL string, log *zap.Logger) (*Publisher, error) {
	nc, err := nats.Connect(natsURL)
	if err != nil {
		return nil, err
	}
	return &Publisher{nc: nc, log: log}, nil
}

// Publish sends the payload on subject "chat.<event>".
func (p *Publisher) Publish(event string, payload interface{}) {
	b, err := json.Marshal(payload)
	if err != nil {
		p.log.Warn("event marshal failed", zap.String("event", event), zap.Error(err))
		return
	}
	if err := p.nc.Publish("chat."+event, b); err != nil {
		p.log.Warn("event publish failed", zap.String("event", event), zap.Error(err))
	}
}

func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}
