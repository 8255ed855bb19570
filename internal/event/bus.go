// Package event carries collection change notifications to subscribers over a
// watermill gochannel.
package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Type names a collection change.
type Type string

const (
	EntriesLoaded Type = "entries.loaded"
	LoadFailed    Type = "entries.load_failed"
	EntryAdded    Type = "entry.added"
	EntryUpdated  Type = "entry.updated"
	EntryRemoved  Type = "entry.removed"
)

const topic = "collection.changes"

// Change describes one mutation of the collection.
type Change struct {
	Type    Type   `json:"type"`
	EntryID int64  `json:"entryId,omitempty"`
	Count   int    `json:"count"`
	Error   string `json:"error,omitempty"`
}

// Bus fans changes out to every live subscriber. Changes published while
// nobody is subscribed are dropped.
type Bus struct {
	pubsub *gochannel.GoChannel
}

// NewBus creates a bus backed by an in-process gochannel.
func NewBus() *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer: 64,
				Persistent:          false,
			},
			watermill.NopLogger{},
		),
	}
}

// Publish sends a change to all subscribers without waiting for them.
func (b *Bus) Publish(c Change) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding change: %w", err)
	}
	return b.pubsub.Publish(topic, message.NewMessage(watermill.NewUUID(), payload))
}

// Subscribe returns a channel of changes that is closed when ctx ends or the
// bus is closed.
func (b *Bus) Subscribe(ctx context.Context) (<-chan Change, error) {
	msgs, err := b.pubsub.Subscribe(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	out := make(chan Change, 16)
	go func() {
		defer close(out)
		for msg := range msgs {
			var c Change
			err := json.Unmarshal(msg.Payload, &c)
			msg.Ack()
			if err != nil {
				continue
			}
			select {
			case out <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close shuts the bus down and closes all subscriber channels.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}
