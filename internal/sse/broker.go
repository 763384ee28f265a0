// Package sse implements Server-Sent Events framing and a broker for
// server-wide events.
package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/starford/sagenote/internal/hub"
)

// Event represents an SSE event.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Frame encodes e as an SSE frame.
func Frame(e Event) ([]byte, error) {
	payload, err := json.Marshal(e.Data)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", e.Type, payload)), nil
}

// Broker broadcasts server-wide events, such as asset directory changes, to
// every connected stream. Delivery never blocks the publisher; a client whose
// buffer is full misses the event.
type Broker struct {
	events *hub.Hub[Event]
}

// NewBroker creates a broker.
func NewBroker() *Broker {
	return &Broker{events: hub.New[Event](64)}
}

// Close stops the broker and ends every stream.
func (b *Broker) Close() {
	b.events.Close()
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan Event {
	return b.events.Subscribe()
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan Event) {
	b.events.Unsubscribe(ch)
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	return b.events.ClientCount()
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	b.events.Publish(event)
}

// PublishAssetEvent publishes an asset directory change.
func (b *Broker) PublishAssetEvent(kind, name string) {
	b.Publish(Event{Type: "asset." + kind, Data: map[string]string{"name": name}})
}

// KeepAlive is the interval between comment frames on an idle stream.
var KeepAlive = 25 * time.Second

// Stream serves an SSE response. Every value from src is converted with
// toEvent and written as a frame, interleaved with broker events, until the
// client disconnects, src closes or the broker shuts down. A nil broker
// streams src only.
func Stream[T any](w http.ResponseWriter, r *http.Request, b *Broker, src <-chan T, toEvent func(T) Event) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return errors.New("sse: streaming unsupported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var events chan Event
	if b != nil {
		events = b.Subscribe()
		defer b.Unsubscribe(events)
	}

	ping := time.NewTicker(KeepAlive)
	defer ping.Stop()

	write := func(e Event) error {
		frame, err := Frame(e)
		if err != nil {
			return err
		}
		if _, err := w.Write(frame); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case v, ok := <-src:
			if !ok {
				return nil
			}
			if err := write(toEvent(v)); err != nil {
				return err
			}
		case e, ok := <-events:
			if !ok {
				return nil
			}
			if err := write(e); err != nil {
				return err
			}
		case <-ping.C:
			if _, err := w.Write([]byte(": ping\n\n")); err != nil {
				return err
			}
			flusher.Flush()
		}
	}
}
