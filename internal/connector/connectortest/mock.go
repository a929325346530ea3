// Package connectortest provides a testify mock of connector.Connector.
package connectortest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"evalgo.org/playground/internal/connector"
	"evalgo.org/playground/internal/event"
)

// Connector is a mock connector.Connector.
type Connector struct {
	mock.Mock
}

var _ connector.Connector = (*Connector)(nil)

func (m *Connector) CreateNetwork(ctx context.Context, spec connector.NetworkSpec) (string, error) {
	args := m.Called(ctx, spec)
	return args.String(0), args.Error(1)
}

func (m *Connector) ListNetworks(ctx context.Context) ([]connector.NetworkDescriptor, error) {
	args := m.Called(ctx)
	nets, _ := args.Get(0).([]connector.NetworkDescriptor)
	return nets, args.Error(1)
}

func (m *Connector) RemoveNetwork(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *Connector) ConnectContainer(ctx context.Context, networkID, containerID string) error {
	return m.Called(ctx, networkID, containerID).Error(0)
}

func (m *Connector) DisconnectContainer(ctx context.Context, networkID, containerID string) error {
	return m.Called(ctx, networkID, containerID).Error(0)
}

func (m *Connector) CreateContainer(ctx context.Context, spec connector.ContainerSpec) (string, error) {
	args := m.Called(ctx, spec)
	return args.String(0), args.Error(1)
}

func (m *Connector) ListContainers(ctx context.Context) ([]connector.ContainerDescriptor, error) {
	args := m.Called(ctx)
	containers, _ := args.Get(0).([]connector.ContainerDescriptor)
	return containers, args.Error(1)
}

func (m *Connector) RemoveContainer(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *Connector) ListResources(ctx context.Context) (connector.Snapshot, error) {
	args := m.Called(ctx)
	snap, _ := args.Get(0).(connector.Snapshot)
	return snap, args.Error(1)
}

func (m *Connector) Events(ctx context.Context) (<-chan event.Envelope, <-chan error) {
	args := m.Called(ctx)
	envs, _ := args.Get(0).(chan event.Envelope)
	errs, _ := args.Get(1).(chan error)
	return envs, errs
}

func (m *Connector) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *Connector) Close() error {
	return m.Called().Error(0)
}
