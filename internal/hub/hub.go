// Package hub implements an in-process fan-out broadcaster.
package hub

import (
	"sync/atomic"
)

// Hub broadcasts values to every subscribed channel.
//
// Concurrency model: a single internal event loop (goroutine) owns the set of
// subscribers. Public methods talk to the loop through channels, so no mutexes
// are required. Delivery never blocks: when a subscriber's buffer is full the
// value is dropped for that subscriber only. With a buffer of one and a
// signal-like T this coalesces bursts into a single pending notification.
type Hub[T any] struct {
	buffer int

	subscribeCh   chan chan T
	unsubscribeCh chan chan T
	publishCh     chan T
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// New creates a hub whose subscriber channels have the given buffer size.
func New[T any](buffer int) *Hub[T] {
	if buffer <= 0 {
		buffer = 1
	}

	h := &Hub[T]{
		buffer:        buffer,
		subscribeCh:   make(chan chan T),
		unsubscribeCh: make(chan chan T),
		publishCh:     make(chan T, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go h.run()
	return h
}

func (h *Hub[T]) run() {
	defer close(h.stopped)

	clients := make(map[chan T]struct{})

	for {
		select {
		case <-h.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-h.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-h.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case v := <-h.publishCh:
			for ch := range clients {
				select {
				case ch <- v:
				default:
				}
			}

		case resp := <-h.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the loop and closes all subscriber channels.
func (h *Hub[T]) Close() {
	if h.closed.CompareAndSwap(false, true) {
		close(h.stopCh)
	}
	<-h.stopped
}

// Done is closed once the hub has stopped.
func (h *Hub[T]) Done() <-chan struct{} {
	return h.stopped
}

// Subscribe registers a new subscriber. The subscriber is registered when
// Subscribe returns, so every later Publish reaches it. On a closed hub the
// returned channel is already closed.
func (h *Hub[T]) Subscribe() chan T {
	ch := make(chan T, h.buffer)
	if h.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case h.subscribeCh <- ch:
	case <-h.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub[T]) Unsubscribe(ch chan T) {
	if h.closed.Load() {
		return
	}
	select {
	case h.unsubscribeCh <- ch:
	case <-h.stopped:
	}
}

// ClientCount returns the number of subscribers.
func (h *Hub[T]) ClientCount() int {
	if h.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case h.countReqCh <- resp:
	case <-h.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-h.stopped:
		return 0
	}
}

// Publish sends v to all subscribers.
func (h *Hub[T]) Publish(v T) {
	if h.closed.Load() {
		return
	}
	select {
	case h.publishCh <- v:
	case <-h.stopped:
	}
}
