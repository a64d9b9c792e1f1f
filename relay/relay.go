// Package relay forwards the events of a run to an external consumer.
//
// The coordinator publishes events into a Relay, which never blocks it. A
// separate consumer goroutine drains the relay with Stream, framing each event
// for its transport through a Sink (SSE, WebSocket, NATS) and interleaving
// heartbeats to keep the connection open. When the consumer goes away the
// relay is detached and the run keeps executing to completion.
package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hupe1980/roundtable/core"
	"github.com/hupe1980/roundtable/logging"
)

// DefaultHeartbeatInterval matches what browsers and proxies tolerate for idle
// event streams.
const DefaultHeartbeatInterval = 2 * time.Second

// ErrDetached is returned by Stream after Detach was called.
var ErrDetached = errors.New("relay detached")

// Sink frames events for one transport. Send is only called from the
// goroutine running Stream.
type Sink interface {
	Send(ctx context.Context, ev core.Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev core.Event) error

// Send implements Sink.
func (f SinkFunc) Send(ctx context.Context, ev core.Event) error { return f(ctx, ev) }

// Options configures a Relay.
type Options struct {
	// HeartbeatInterval between keep-alive events; <= 0 disables them.
	HeartbeatInterval time.Duration
	Logger            logging.Logger
}

// Relay is an unbounded, ordered event queue between one run and one
// consumer. Publish is safe for concurrent use.
type Relay struct {
	opts Options

	mu       sync.Mutex
	queue    []core.Event
	closed   bool
	detached bool
	notify   chan struct{}
}

// New creates a relay.
func New(optFns ...func(o *Options)) *Relay {
	opts := Options{
		HeartbeatInterval: DefaultHeartbeatInterval,
		Logger:            logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Relay{opts: opts, notify: make(chan struct{}, 1)}
}

// Publish enqueues ev. Terminal events close the relay; later events and
// events published after Detach are discarded.
func (r *Relay) Publish(ev core.Event) {
	r.mu.Lock()
	if r.closed || r.detached {
		r.mu.Unlock()
		return
	}
	r.queue = append(r.queue, ev)
	if ev.IsTerminal() {
		r.closed = true
	}
	r.mu.Unlock()

	r.signal()
}

// Close ends the stream without a terminal event.
func (r *Relay) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.signal()
}

// Detach stops delivery: queued events are dropped and Stream returns
// ErrDetached. Publishing stays safe.
func (r *Relay) Detach() {
	r.mu.Lock()
	r.detached = true
	r.queue = nil
	r.mu.Unlock()

	r.signal()
}

func (r *Relay) signal() {
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// drain takes all queued events. done reports that nothing will follow.
func (r *Relay) drain() (events []core.Event, done, detached bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	events, r.queue = r.queue, nil

	return events, r.closed, r.detached
}

// Stream delivers events to sink in publish order until the stream ends (a
// terminal event or Close), ctx is done or sink fails. Heartbeats are sent
// while waiting. On a sink failure or cancellation the relay detaches so the
// producer is never held up by a consumer that went away.
func (r *Relay) Stream(ctx context.Context, sink Sink) error {
	var tick <-chan time.Time
	if r.opts.HeartbeatInterval > 0 {
		ticker := time.NewTicker(r.opts.HeartbeatInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		events, done, detached := r.drain()
		if detached {
			return ErrDetached
		}

		for _, ev := range events {
			if err := sink.Send(ctx, ev); err != nil {
				r.opts.Logger.Warn("relay.sink.failed", "event", string(ev.Type), "error", err.Error())
				r.Detach()
				return err
			}
		}

		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			r.Detach()
			return ctx.Err()
		case <-r.notify:
		case <-tick:
			if err := sink.Send(ctx, core.NewHeartbeatEvent()); err != nil {
				r.opts.Logger.Warn("relay.heartbeat.failed", "error", err.Error())
				r.Detach()
				return err
			}
		}
	}
}

// MultiSink sends every event to all sinks, stopping at the first error.
func MultiSink(sinks ...Sink) Sink {
	return SinkFunc(func(ctx context.Context, ev core.Event) error {
		for _, s := range sinks {
			if err := s.Send(ctx, ev); err != nil {
				return err
			}
		}
		return nil
	})
}

// ChannelSink forwards events to ch, blocking until received or ctx is done.
func ChannelSink(ch chan<- core.Event) Sink {
	return SinkFunc(func(ctx context.Context, ev core.Event) error {
		select {
		case ch <- ev:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}
