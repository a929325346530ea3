// Package publish fans handled envelopes out to every connected session.
//
// Each subscriber owns a buffered queue. Publish never waits on a subscriber
// longer than the configured send timeout; a payload that cannot be queued in
// time is dropped for that subscriber only and counted. Frames can also be
// mirrored to NATS so external tooling can follow the playground.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"evalgo.org/playground/internal/event"
	"evalgo.org/playground/internal/metrics"
)

const (
	DefaultQueueSize   = 256
	DefaultSendTimeout = 2 * time.Second
)

// Message is the wire frame every payload is sent in.
type Message struct {
	Kind      event.Kind    `json:"kind"`
	Timestamp time.Time     `json:"timestamp"`
	Data      event.Payload `json:"data"`
}

// Encode frames a payload for the wire.
func Encode(kind event.Kind, payload event.Payload) ([]byte, error) {
	frame, err := json.Marshal(Message{Kind: kind, Timestamp: time.Now().UTC(), Data: payload})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", kind, err)
	}
	return frame, nil
}

// DeliveryError describes a payload that was not queued for a subscriber.
type DeliveryError struct {
	Subscriber string
	Reason     string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery to %s failed: %s", e.Subscriber, e.Reason)
}

// Mirror receives a copy of every broadcast frame.
type Mirror interface {
	Mirror(kind event.Kind, frame []byte) error
}

// Subscriber is one session's view of the publisher.
type Subscriber struct {
	id    string
	queue chan []byte
	done  chan struct{}
	once  sync.Once
}

// ID returns the session id the subscriber was registered under.
func (s *Subscriber) ID() string { return s.id }

// Messages yields encoded frames in publish order.
func (s *Subscriber) Messages() <-chan []byte { return s.queue }

// Done is closed once the subscriber is unsubscribed.
func (s *Subscriber) Done() <-chan struct{} { return s.done }

func (s *Subscriber) close() {
	s.once.Do(func() { close(s.done) })
}

// Options tune per-subscriber delivery.
type Options struct {
	QueueSize   int
	SendTimeout time.Duration
}

// Publisher is the registry of subscribed sessions.
type Publisher struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber

	queueSize   int
	sendTimeout time.Duration
	mirror      Mirror
	logger      *zap.Logger
}

// New creates a publisher. Zero options fall back to the defaults.
func New(opts Options, logger *zap.Logger) *Publisher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = DefaultSendTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		subscribers: make(map[string]*Subscriber),
		queueSize:   opts.QueueSize,
		sendTimeout: opts.SendTimeout,
		logger:      logger,
	}
}

// SetMirror installs m to receive every broadcast frame. Must be called
// before publishing starts.
func (p *Publisher) SetMirror(m Mirror) {
	p.mirror = m
}

// Subscribe registers a session. Subscribing an id twice replaces the older
// subscriber, which is closed.
func (p *Publisher) Subscribe(id string) *Subscriber {
	sub := &Subscriber{
		id:    id,
		queue: make(chan []byte, p.queueSize),
		done:  make(chan struct{}),
	}

	p.mu.Lock()
	old, replaced := p.subscribers[id]
	p.subscribers[id] = sub
	count := len(p.subscribers)
	p.mu.Unlock()

	if replaced {
		old.close()
	}
	metrics.Sessions.Set(float64(count))
	p.logger.Debug("subscriber registered", zap.String("session", id), zap.Int("total", count))
	return sub
}

// Unsubscribe removes a session. Unknown ids are ignored.
func (p *Publisher) Unsubscribe(id string) {
	p.mu.Lock()
	sub, ok := p.subscribers[id]
	if ok {
		delete(p.subscribers, id)
	}
	count := len(p.subscribers)
	p.mu.Unlock()

	if !ok {
		return
	}
	sub.close()
	metrics.Sessions.Set(float64(count))
	p.logger.Debug("subscriber removed", zap.String("session", id), zap.Int("total", count))
}

// Count returns the number of registered subscribers.
func (p *Publisher) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subscribers)
}

// Publish delivers payload to every subscriber registered when the call
// starts. Failed deliveries are counted and dropped; only an encoding failure
// is returned.
func (p *Publisher) Publish(ctx context.Context, kind event.Kind, payload event.Payload) error {
	frame, err := Encode(kind, payload)
	if err != nil {
		return err
	}

	p.mu.RLock()
	targets := make([]*Subscriber, 0, len(p.subscribers))
	for _, sub := range p.subscribers {
		targets = append(targets, sub)
	}
	p.mu.RUnlock()

	for _, sub := range targets {
		p.record(p.deliver(ctx, sub, frame))
	}

	if p.mirror != nil {
		if err := p.mirror.Mirror(kind, frame); err != nil {
			p.logger.Warn("failed to mirror frame", zap.String("kind", string(kind)), zap.Error(err))
		}
	}
	return nil
}

// PublishTo delivers payload to one session only. A session that is no longer
// subscribed is a dropped delivery, not an error.
func (p *Publisher) PublishTo(ctx context.Context, session string, kind event.Kind, payload event.Payload) error {
	frame, err := Encode(kind, payload)
	if err != nil {
		return err
	}

	p.mu.RLock()
	sub, ok := p.subscribers[session]
	p.mu.RUnlock()

	if !ok {
		p.record(&DeliveryError{Subscriber: session, Reason: "not subscribed"})
		return nil
	}
	p.record(p.deliver(ctx, sub, frame))
	return nil
}

func (p *Publisher) deliver(ctx context.Context, sub *Subscriber, frame []byte) error {
	select {
	case <-sub.done:
		return &DeliveryError{Subscriber: sub.id, Reason: "unsubscribed"}
	default:
	}

	select {
	case sub.queue <- frame:
		return nil
	default:
	}

	timer := time.NewTimer(p.sendTimeout)
	defer timer.Stop()

	select {
	case sub.queue <- frame:
		return nil
	case <-sub.done:
		return &DeliveryError{Subscriber: sub.id, Reason: "unsubscribed"}
	case <-timer.C:
		return &DeliveryError{Subscriber: sub.id, Reason: "queue full"}
	case <-ctx.Done():
		return &DeliveryError{Subscriber: sub.id, Reason: ctx.Err().Error()}
	}
}

func (p *Publisher) record(err error) {
	if err == nil {
		metrics.PublishDeliveries.WithLabelValues("delivered").Inc()
		return
	}
	metrics.PublishDeliveries.WithLabelValues("dropped").Inc()
	p.logger.Debug("payload dropped", zap.Error(err))
}
