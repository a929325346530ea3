package handler

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"evalgo.org/playground/internal/event"
	"evalgo.org/playground/internal/metrics"
)

// debugLogSize bounds the errors kept for Debug.
const debugLogSize = 100

// Dispatcher routes envelopes to the handler registered for their kind.
// Dispatch runs in the caller's goroutine, so envelopes from one session or
// from the engine watcher are handled in arrival order.
type Dispatcher struct {
	handlers  map[event.Kind]Handler
	publisher Publisher
	logger    *zap.Logger

	echoes *echoes

	mu       sync.Mutex
	debugLog []event.Payload
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, env event.Envelope) error

func (f HandlerFunc) Handle(ctx context.Context, env event.Envelope) error {
	return f(ctx, env)
}

// NewDispatcher wires the network, service and proxy handlers together with
// the built-in image and errors handlers.
func NewDispatcher(network, services, proxies Handler, pub Publisher, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{publisher: pub, logger: logger, echoes: newEchoes(echoTTL)}
	d.handlers = map[event.Kind]Handler{
		event.KindNetwork: network,
		event.KindService: services,
		event.KindProxy:   proxies,
		event.KindImage:   HandlerFunc(d.handleImage),
		event.KindErrors:  HandlerFunc(d.handleErrors),
	}
	return d
}

// Dispatch hands env to its kind handler. A failure is logged and counted.
// Failures other than routing errors are also reported back to the session
// env came from, if any. The error is returned so the caller can decide
// whether to carry on.
//
// Engine envelopes that merely echo a client action already published are
// dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, env event.Envelope) error {
	h, ok := d.handlers[env.Kind]
	if !ok || h == nil {
		err := &event.UnroutableEventError{Kind: env.Kind}
		metrics.EventsDispatched.WithLabelValues("unknown", "unroutable").Inc()
		d.fail(ctx, env, err)
		return err
	}

	var echoKeys []string
	switch env.Origin {
	case event.OriginEngine:
		if key, ok := engineEchoKey(env); ok && d.echoes.consume(key) {
			metrics.EventsDispatched.WithLabelValues(string(env.Kind), "echo").Inc()
			d.logger.Debug("engine echo dropped", zap.Stringer("envelope", env))
			return nil
		}
	case event.OriginClient:
		// recorded before the connector call, which may race the watcher
		echoKeys = clientEchoKeys(env)
		d.echoes.expect(echoKeys)
	}

	err := h.Handle(ctx, env)
	metrics.EventsDispatched.WithLabelValues(string(env.Kind), metrics.Result(err)).Inc()
	if err != nil {
		d.echoes.forget(echoKeys)
		d.fail(ctx, env, err)
		return err
	}

	d.logger.Debug("envelope handled", zap.Stringer("envelope", env))
	return nil
}

func (d *Dispatcher) fail(ctx context.Context, env event.Envelope, err error) {
	d.logger.Warn("envelope failed",
		zap.Stringer("envelope", env),
		zap.String("session", env.Session),
		zap.Error(err))

	if env.Session == "" || IsRoutingError(err) {
		return
	}
	payload := event.Merge(env, event.Payload{
		"kind":    string(env.Kind),
		"message": err.Error(),
	})
	if perr := d.publisher.PublishTo(ctx, env.Session, event.KindErrors, payload); perr != nil {
		d.logger.Warn("failed to report error to session", zap.String("session", env.Session), zap.Error(perr))
	}
}

// IsRoutingError reports errors raised before any handler work started.
// The dispatcher publishes nothing for these; the transport answers the
// originating session directly.
func IsRoutingError(err error) bool {
	var unroutable *event.UnroutableEventError
	var unsupported *event.UnsupportedActionError
	return errors.As(err, &unroutable) || errors.As(err, &unsupported)
}

// handleImage publishes image progress with the envelope's own fields.
func (d *Dispatcher) handleImage(ctx context.Context, env event.Envelope) error {
	return d.publisher.Publish(ctx, event.KindImage, event.Merge(env, payloadOf(env.Fields)))
}

// handleErrors records a client-reported error and rebroadcasts it.
func (d *Dispatcher) handleErrors(ctx context.Context, env event.Envelope) error {
	payload := event.Merge(env, payloadOf(env.Fields))

	d.mu.Lock()
	d.debugLog = append(d.debugLog, payload)
	if len(d.debugLog) > debugLogSize {
		d.debugLog = d.debugLog[len(d.debugLog)-debugLogSize:]
	}
	d.mu.Unlock()

	return d.publisher.Publish(ctx, event.KindErrors, payload)
}

// Debug returns the most recent errors envelopes, oldest first.
func (d *Dispatcher) Debug() []event.Payload {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]event.Payload(nil), d.debugLog...)
}

func payloadOf(fields event.Fields) event.Payload {
	payload := event.Payload{}
	for _, f := range fields {
		payload[f.Key] = f.Value
	}
	return payload
}
