// Package handler applies envelopes to the container engine and publishes the
// resulting deltas.
//
// Every kind handler resolves the envelope's action against a table built at
// construction. Client-origin envelopes make the handler perform the matching
// connector call first; engine-origin envelopes describe changes the engine
// already made and are only published. A failed connector call stops the
// envelope: nothing is published for it.
package handler

import (
	"context"

	"evalgo.org/playground/internal/event"
)

// ActionFunc handles one action of one kind.
type ActionFunc func(ctx context.Context, env event.Envelope) error

// Handler handles every action of one kind.
type Handler interface {
	Handle(ctx context.Context, env event.Envelope) error
}

// Publisher is the slice of publish.Publisher the handlers use.
type Publisher interface {
	Publish(ctx context.Context, kind event.Kind, payload event.Payload) error
	PublishTo(ctx context.Context, session string, kind event.Kind, payload event.Payload) error
}

// table resolves an action name to its ActionFunc.
type table struct {
	kind    event.Kind
	actions map[string]ActionFunc
}

func (t table) handle(ctx context.Context, env event.Envelope) error {
	fn, ok := t.actions[env.Action]
	if !ok {
		return &event.UnsupportedActionError{Kind: t.kind, Action: env.Action}
	}
	return fn(ctx, env)
}
