package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/valkey-io/valkey-go"
)

// DefaultChannel is the Valkey pub/sub channel events are published on.
const DefaultChannel = "scheduler:events"

// ValkeyPublisher publishes events to a Valkey pub/sub channel and forwards
// them to the local broker for SSE clients. Events are stamped with origin so
// Relay can tell them apart from other instances' events.
type ValkeyPublisher struct {
	client  valkey.Client
	channel string
	origin  string
	local   *Broker
}

// NewValkeyPublisher connects to Valkey and verifies the connection.
func NewValkeyPublisher(addr, channel, origin string, local *Broker) (*ValkeyPublisher, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Valkey: %w", err)
	}

	if channel == "" {
		channel = DefaultChannel
	}

	slog.Info("Initialized Valkey event publisher", "address", addr, "channel", channel, "origin", origin)
	return NewValkeyPublisherWithClient(client, channel, origin, local), nil
}

// NewValkeyPublisherWithClient wraps an existing client.
func NewValkeyPublisherWithClient(client valkey.Client, channel, origin string, local *Broker) *ValkeyPublisher {
	return &ValkeyPublisher{client: client, channel: channel, origin: origin, local: local}
}

// Publish forwards the event locally and then to Valkey. A Valkey failure is
// returned but never prevents local delivery.
func (p *ValkeyPublisher) Publish(ctx context.Context, ev Event) error {
	ev.Origin = p.origin
	if p.local != nil {
		p.local.Publish(ctx, ev)
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	cmd := p.client.B().Publish().Channel(p.channel).Message(string(payload)).Build()
	if err := p.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to publish event to Valkey: %w", err)
	}
	return nil
}

// Relay subscribes to the channel and forwards events published by other
// instances to the local broker. It blocks until ctx is cancelled.
func (p *ValkeyPublisher) Relay(ctx context.Context) error {
	if p.local == nil {
		return fmt.Errorf("relay requires a local broker")
	}
	slog.Info("Relaying Valkey events", "channel", p.channel)

	err := p.client.Receive(ctx, p.client.B().Subscribe().Channel(p.channel).Build(), func(msg valkey.PubSubMessage) {
		ev, ok := p.decode(msg.Message)
		if !ok {
			return
		}
		p.local.Publish(ctx, ev)
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("valkey subscription ended: %w", err)
	}
	return nil
}

// decode parses a relayed message, dropping malformed payloads and events
// this instance published itself.
func (p *ValkeyPublisher) decode(message string) (Event, bool) {
	var ev Event
	if err := json.Unmarshal([]byte(message), &ev); err != nil {
		slog.Warn("Dropping malformed event", "error", err)
		return Event{}, false
	}
	if ev.Origin == p.origin {
		return Event{}, false
	}
	return ev, true
}

// Close releases the Valkey connection.
func (p *ValkeyPublisher) Close() {
	p.client.Close()
}
