// Package playground is the entry point for every playground action. It owns
// the connector, validates HTTP bodies, turns them into client envelopes and
// runs them through the same dispatcher WebSocket frames and engine events
// use.
package playground

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"evalgo.org/playground/internal/connector"
	"evalgo.org/playground/internal/event"
	"evalgo.org/playground/internal/handler"
	"evalgo.org/playground/internal/validation"
)

// DefaultEnvoyImage is the proxy image used when none is configured.
const DefaultEnvoyImage = "envoyproxy/envoy-dev:latest"

// Metadata describes the playground limits to clients.
type Metadata struct {
	Version               string `json:"version"`
	MaxNetworkConnections int    `json:"max_network_connections"`
	MinNameLength         int    `json:"min_name_length"`
	MaxNameLength         int    `json:"max_name_length"`
	MinConfigLength       int    `json:"min_config_length"`
	MaxConfigLength       int    `json:"max_config_length"`
}

// Response is the body returned by successful actions.
type Response struct {
	Message string `json:"message"`
}

// OK is the response every successful action returns.
var OK = Response{Message: "OK"}

// Options configure an API.
type Options struct {
	EnvoyImage   string
	Bounds       validation.Bounds
	ServiceTypes ServiceTypes
}

// API exposes the playground actions.
type API struct {
	connector    connector.Connector
	validator    *validation.Validator
	dispatcher   *handler.Dispatcher
	metadata     Metadata
	serviceTypes ServiceTypes
	logger       *zap.Logger
}

// New builds the handlers and dispatcher around conn and pub.
func New(opts Options, conn connector.Connector, pub handler.Publisher, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.EnvoyImage == "" {
		opts.EnvoyImage = DefaultEnvoyImage
	}
	if opts.ServiceTypes == nil {
		opts.ServiceTypes = ServiceTypes{}
	}

	dispatcher := handler.NewDispatcher(
		handler.NewNetworkHandler(conn, pub, logger.Named("network")),
		handler.NewServiceHandler(conn, pub, opts.ServiceTypes, logger.Named("service")),
		handler.NewProxyHandler(conn, pub, opts.EnvoyImage, logger.Named("proxy")),
		pub,
		logger.Named("dispatcher"),
	)

	b := opts.Bounds
	return &API{
		connector:  conn,
		validator:  validation.New(b),
		dispatcher: dispatcher,
		metadata: Metadata{
			Version:               opts.EnvoyImage,
			MaxNetworkConnections: b.MaxNetworkConnections,
			MinNameLength:         b.MinNameLength,
			MaxNameLength:         b.MaxNameLength,
			MinConfigLength:       b.MinConfigLength,
			MaxConfigLength:       b.MaxConfigLength,
		},
		serviceTypes: opts.ServiceTypes,
		logger:       logger,
	}
}

func (a *API) Metadata() Metadata {
	return a.metadata
}

// DocumentField names the ValidationError raised for frames that are not
// envelopes at all.
const DocumentField = "document"

// HandleFrame decodes a WebSocket frame from session and dispatches it.
func (a *API) HandleFrame(ctx context.Context, session string, frame []byte) error {
	env, err := event.Parse(frame)
	if err != nil {
		return &validation.ValidationError{Field: DocumentField, Message: err.Error()}
	}
	env.Session = session
	return a.dispatcher.Dispatch(ctx, env)
}

// NetworkAdd creates a network directly through the connector. The engine
// watcher publishes the result.
func (a *API) NetworkAdd(ctx context.Context, body []byte) (Response, error) {
	cmd, err := a.validator.NetworkAdd(body)
	if err != nil {
		return Response{}, err
	}
	if _, err := a.connector.CreateNetwork(ctx, connector.NetworkSpec{
		Name:   cmd.Name,
		Labels: map[string]string{connector.LabelNetwork: cmd.Name},
	}); err != nil {
		return Response{}, err
	}
	return OK, nil
}

// NetworkEdit connects and disconnects containers until the network holds
// exactly the requested proxies and services.
func (a *API) NetworkEdit(ctx context.Context, body []byte) (Response, error) {
	cmd, err := a.validator.NetworkEdit(body)
	if err != nil {
		return Response{}, err
	}

	network, err := a.findNetwork(ctx, cmd.ID)
	if err != nil {
		return Response{}, err
	}
	containers, err := a.connector.ListContainers(ctx)
	if err != nil {
		return Response{}, err
	}

	byName := map[string]connector.ContainerDescriptor{}
	current := map[string]bool{}
	for _, c := range containers {
		if _, ok := c.Kind(); !ok {
			continue
		}
		byName[c.Name] = c
		for _, id := range c.Networks {
			if id == network.ID {
				current[c.Name] = true
			}
		}
	}

	desired := map[string]bool{}
	for field, names := range map[event.Kind][]string{event.KindProxy: cmd.Proxies, event.KindService: cmd.Services} {
		for _, name := range names {
			c, ok := byName[name]
			if kind, _ := c.Kind(); !ok || kind != field {
				return Response{}, &validation.ValidationError{
					Field:   string(field),
					Message: fmt.Sprintf("no %s named %q", field, name),
					Bound:   "unknown",
				}
			}
			desired[name] = true
		}
	}

	var connect, disconnect []string
	for _, name := range append(append([]string{}, cmd.Proxies...), cmd.Services...) {
		if !current[name] {
			connect = append(connect, name)
		}
	}
	for _, c := range containers {
		if current[c.Name] && !desired[c.Name] {
			disconnect = append(disconnect, c.Name)
		}
	}

	steps := []struct {
		action  string
		members []string
	}{
		{"disconnect", disconnect},
		{"connect", connect},
	}
	for _, step := range steps {
		if len(step.members) == 0 {
			continue
		}
		env := event.Envelope{
			Kind:       event.KindNetwork,
			Action:     step.action,
			ID:         network.ID,
			Name:       network.Name,
			Containers: step.members,
			Origin:     event.OriginClient,
		}
		if err := a.dispatcher.Dispatch(ctx, env); err != nil {
			return Response{}, err
		}
	}
	return OK, nil
}

func (a *API) NetworkDelete(ctx context.Context, body []byte) (Response, error) {
	return a.delete(ctx, event.KindNetwork, validation.ActionNetworkDelete, body)
}

func (a *API) ProxyAdd(ctx context.Context, body []byte) (Response, error) {
	cmd, err := a.validator.ProxyAdd(body)
	if err != nil {
		return Response{}, err
	}
	fields := cmd.Fields
	if len(cmd.PortMappings) > 0 {
		fields = fields.Set("port_mappings", cmd.PortMappings)
	}
	return a.create(ctx, event.KindProxy, cmd.Name, fields)
}

func (a *API) ProxyDelete(ctx context.Context, body []byte) (Response, error) {
	return a.delete(ctx, event.KindProxy, validation.ActionProxyDelete, body)
}

func (a *API) ServiceAdd(ctx context.Context, body []byte) (Response, error) {
	cmd, err := a.validator.ServiceAdd(body)
	if err != nil {
		return Response{}, err
	}
	if _, ok := a.serviceTypes[cmd.ServiceType]; !ok {
		return Response{}, &validation.ValidationError{
			Field:   "service_type",
			Message: fmt.Sprintf("unknown service type %q", cmd.ServiceType),
			Bound:   "unknown",
		}
	}
	return a.create(ctx, event.KindService, cmd.Name, cmd.Fields)
}

func (a *API) ServiceDelete(ctx context.Context, body []byte) (Response, error) {
	return a.delete(ctx, event.KindService, validation.ActionServiceDelete, body)
}

func (a *API) create(ctx context.Context, kind event.Kind, name string, fields event.Fields) (Response, error) {
	env := event.FromFields(fields)
	env.Kind = kind
	env.Action = "create"
	env.Name = name
	if err := a.dispatcher.Dispatch(ctx, env); err != nil {
		return Response{}, err
	}
	return OK, nil
}

func (a *API) delete(ctx context.Context, kind event.Kind, action string, body []byte) (Response, error) {
	cmd, err := a.validator.ResourceDelete(action, body)
	if err != nil {
		return Response{}, err
	}
	env := event.Envelope{Kind: kind, Action: "destroy", ID: cmd.ID, Origin: event.OriginClient}
	if err := a.dispatcher.Dispatch(ctx, env); err != nil {
		return Response{}, err
	}
	return OK, nil
}

// findNetwork resolves a full id, or a prefix of at least ShortIDLength
// characters, to a playground network. A prefix must match exactly one.
func (a *API) findNetwork(ctx context.Context, id string) (connector.NetworkDescriptor, error) {
	networks, err := a.connector.ListNetworks(ctx)
	if err != nil {
		return connector.NetworkDescriptor{}, err
	}

	var matches []connector.NetworkDescriptor
	for _, n := range networks {
		if !n.Owned() {
			continue
		}
		if n.ID == id {
			return n, nil
		}
		if len(id) >= event.ShortIDLength && strings.HasPrefix(n.ID, id) {
			matches = append(matches, n)
		}
	}

	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return connector.NetworkDescriptor{}, &validation.ValidationError{
			Field:   "id",
			Message: fmt.Sprintf("no network with id %q", id),
			Bound:   "unknown",
		}
	default:
		return connector.NetworkDescriptor{}, &validation.ValidationError{
			Field:   "id",
			Message: fmt.Sprintf("id %q matches %d networks", id, len(matches)),
			Bound:   "unique",
		}
	}
}

// Clear removes every playground container, then every playground network.
// Removal carries on past failures; all of them are returned together.
func (a *API) Clear(ctx context.Context) (Response, error) {
	containers, err := a.connector.ListContainers(ctx)
	if err != nil {
		return Response{}, err
	}
	var errs []error
	removed := 0
	for _, c := range containers {
		if _, ok := c.Kind(); !ok {
			continue
		}
		if err := a.connector.RemoveContainer(ctx, c.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}

	networks, err := a.connector.ListNetworks(ctx)
	if err != nil {
		return Response{}, errors.Join(append(errs, err)...)
	}
	for _, n := range networks {
		if !n.Owned() {
			continue
		}
		if err := a.connector.RemoveNetwork(ctx, n.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}

	if len(errs) > 0 {
		return Response{}, errors.Join(errs...)
	}
	a.logger.Info("playground cleared", zap.Int("removed", removed))
	return OK, nil
}

// DumpResources returns the current snapshot with the metadata and service
// types a client needs to bootstrap.
func (a *API) DumpResources(ctx context.Context) (connector.Snapshot, error) {
	snap, err := a.connector.ListResources(ctx)
	if err != nil {
		return nil, err
	}
	out := connector.Snapshot{}
	for k, v := range snap {
		out[k] = v
	}
	out["meta"] = a.metadata
	out["service_types"] = a.serviceTypes
	return out, nil
}

// Watch dispatches engine events until ctx is done or the stream fails.
// Handler failures are logged and do not stop the watch.
func (a *API) Watch(ctx context.Context) error {
	envs, errc := a.connector.Events(ctx)
	for env := range envs {
		if err := a.dispatcher.Dispatch(ctx, env); err != nil {
			a.logger.Debug("engine event not handled", zap.Stringer("envelope", env), zap.Error(err))
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	select {
	case err := <-errc:
		return err
	default:
		return nil
	}
}
