// Package connector is the playground's view of the container engine.
//
// The hub never talks to Docker directly: handlers, the playground API and the
// engine watcher all go through the Connector interface, which a Docker-backed
// implementation satisfies in production and a mock satisfies in tests.
package connector

import (
	"context"
	"errors"
	"fmt"

	"evalgo.org/playground/internal/event"
)

// Labels that mark resources as owned by the playground.
const (
	LabelNetwork = "envoy.playground.network"
	LabelProxy   = "envoy.playground.proxy"
	LabelService = "envoy.playground.service"

	// LabelServiceType records which registry entry a service was built from.
	LabelServiceType = "envoy.playground.service.type"
)

// Connector executes container and network lifecycle operations.
type Connector interface {
	CreateNetwork(ctx context.Context, spec NetworkSpec) (string, error)
	ListNetworks(ctx context.Context) ([]NetworkDescriptor, error)
	RemoveNetwork(ctx context.Context, id string) error

	ConnectContainer(ctx context.Context, networkID, containerID string) error
	DisconnectContainer(ctx context.Context, networkID, containerID string) error

	CreateContainer(ctx context.Context, spec ContainerSpec) (string, error)
	ListContainers(ctx context.Context) ([]ContainerDescriptor, error)
	RemoveContainer(ctx context.Context, id string) error

	// ListResources returns the playground-owned state, keyed for clients.
	ListResources(ctx context.Context) (Snapshot, error)

	// Events streams engine notifications as engine-origin envelopes until
	// ctx is cancelled.
	Events(ctx context.Context) (<-chan event.Envelope, <-chan error)

	Ping(ctx context.Context) error
	Close() error
}

// ConnectorError wraps a failure reported by the container engine.
type ConnectorError struct {
	Op  string
	Err error
}

func (e *ConnectorError) Error() string {
	return fmt.Sprintf("connector %s: %v", e.Op, e.Err)
}

func (e *ConnectorError) Unwrap() error {
	return e.Err
}

// IsConnectorError reports whether err came from the container engine.
func IsConnectorError(err error) bool {
	var ce *ConnectorError
	return errors.As(err, &ce)
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ConnectorError{Op: op, Err: err}
}
