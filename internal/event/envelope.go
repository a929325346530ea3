// Package event defines the envelope that carries one client action or engine
// notification through the playground hub, and the payload that is broadcast
// back to every connected observer.
//
// An Envelope is built once on ingress (WebSocket frame, validated HTTP
// request or container engine event), handed to exactly one kind handler and
// never mutated afterwards. Handlers describe what changed by supplying an
// overlay which Merge combines with the envelope's base fields.
package event

import (
	"fmt"
	"unicode/utf8"
)

// Kind is the resource category or control channel an envelope concerns.
type Kind string

const (
	KindNetwork Kind = "network"
	KindService Kind = "service"
	KindProxy   Kind = "proxy"
	KindImage   Kind = "image"
	KindErrors  Kind = "errors"
)

// Kinds lists every routable kind.
var Kinds = []Kind{KindNetwork, KindService, KindProxy, KindImage, KindErrors}

// Valid reports whether k is one of the routable kinds.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Origin tells a handler who owns the side effect implied by an envelope.
type Origin string

const (
	// OriginClient envelopes come from a user; the handler performs the
	// matching connector call before publishing.
	OriginClient Origin = "client"

	// OriginEngine envelopes describe something the container engine already
	// did; the handler only publishes.
	OriginEngine Origin = "engine"
)

// ShortIDLength is the number of characters of a resource id sent to clients.
const ShortIDLength = 10

// ShortID returns the display form of a resource id. Ids of ShortIDLength or
// fewer characters pass through unchanged.
func ShortID(id string) string {
	if utf8.RuneCountInString(id) <= ShortIDLength {
		return id
	}
	return string([]rune(id)[:ShortIDLength])
}

// Envelope is one inbound client action or engine notification.
type Envelope struct {
	Kind       Kind
	Action     string
	ID         string
	Name       string
	Containers []string
	Proxy      string
	Service    string

	// Fields holds the remaining wire fields in the order they arrived.
	Fields Fields

	Origin Origin

	// Session is the WebSocket session the envelope arrived on, if any.
	Session string
}

// reserved wire keys that map onto Envelope attributes rather than Fields.
var reserved = map[string]bool{
	"kind":       true,
	"action":     true,
	"id":         true,
	"name":       true,
	"containers": true,
	"proxy":      true,
	"service":    true,
}

// FromFields builds a client-origin envelope from decoded wire fields.
// The kind is copied verbatim, so an unknown kind survives until dispatch.
func FromFields(fields Fields) Envelope {
	env := Envelope{
		Kind:       Kind(fields.String("kind")),
		Action:     fields.String("action"),
		ID:         fields.String("id"),
		Name:       fields.String("name"),
		Containers: fields.Strings("containers"),
		Proxy:      fields.String("proxy"),
		Service:    fields.String("service"),
		Origin:     OriginClient,
	}
	for _, f := range fields {
		if !reserved[f.Key] {
			env.Fields = append(env.Fields, f)
		}
	}
	return env
}

// Parse decodes a raw wire frame into a client-origin envelope.
func Parse(data []byte) (Envelope, error) {
	fields, err := ParseFields(data)
	if err != nil {
		return Envelope{}, err
	}
	return FromFields(fields), nil
}

// String renders the envelope for logs.
func (e Envelope) String() string {
	return fmt.Sprintf("%s/%s id=%s name=%q origin=%s", e.Kind, e.Action, ShortID(e.ID), e.Name, e.Origin)
}
