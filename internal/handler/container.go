package handler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"evalgo.org/playground/internal/connector"
	"evalgo.org/playground/internal/event"
	"evalgo.org/playground/internal/validation"
)

// Strategy turns one proxy or service envelope into the overlay to publish,
// performing the connector call first for client-origin envelopes.
type Strategy func(ctx context.Context, env event.Envelope) (event.Payload, error)

// ContainerHandler is the handler shared by proxies and services. It has a
// single entry point and leaves every action decision to its strategy.
type ContainerHandler struct {
	kind      event.Kind
	strategy  Strategy
	publisher Publisher
}

func (h *ContainerHandler) Handle(ctx context.Context, env event.Envelope) error {
	overlay, err := h.strategy(ctx, env)
	if err != nil {
		return err
	}
	return h.publisher.Publish(ctx, h.kind, event.Merge(env, overlay))
}

// ServiceImage is the container a service type runs.
type ServiceImage struct {
	Image string
	Env   []string

	// ConfigEnv names the variable that receives the user's configuration.
	ConfigEnv string
}

// ServiceCatalog resolves service types to images.
type ServiceCatalog interface {
	Lookup(serviceType string) (ServiceImage, bool)
}

// containerActions builds the action table shared by both strategies. Only
// create and destroy have a client-side effect; start and stop are only ever
// reported by the engine.
type containerActions struct {
	kind      event.Kind
	group     string
	connector connector.Connector
	logger    *zap.Logger

	// spec builds the container to create for a client envelope.
	spec func(env event.Envelope) (connector.ContainerSpec, error)

	// describe adds kind-specific keys to a published entry.
	describe func(env event.Envelope, entry map[string]interface{})
}

func (a *containerActions) strategy() Strategy {
	actions := map[string]Strategy{
		"create":  a.create,
		"start":   a.reported("running"),
		"stop":    a.reported("exited"),
		"destroy": a.destroy,
	}
	return func(ctx context.Context, env event.Envelope) (event.Payload, error) {
		fn, ok := actions[env.Action]
		if !ok {
			return nil, &event.UnsupportedActionError{Kind: a.kind, Action: env.Action}
		}
		return fn(ctx, env)
	}
}

// reported publishes an engine state change with status. Clients cannot
// request it.
func (a *containerActions) reported(status string) Strategy {
	return func(_ context.Context, env event.Envelope) (event.Payload, error) {
		if env.Origin == event.OriginClient {
			return nil, &event.UnsupportedActionError{Kind: a.kind, Action: env.Action}
		}
		return a.entry(env, env.ID, status, env.Fields.String("image")), nil
	}
}

func (a *containerActions) create(ctx context.Context, env event.Envelope) (event.Payload, error) {
	if env.Origin == event.OriginEngine {
		return a.entry(env, env.ID, "created", env.Fields.String("image")), nil
	}

	spec, err := a.spec(env)
	if err != nil {
		return nil, err
	}
	id, err := a.connector.CreateContainer(ctx, spec)
	if err != nil {
		return nil, err
	}
	a.logger.Info("container created",
		zap.String("kind", string(a.kind)),
		zap.String("name", env.Name),
		zap.String("id", event.ShortID(id)),
		zap.String("image", spec.Image))

	overlay := a.entry(env, id, "created", spec.Image)
	overlay["id"] = event.ShortID(id)
	return overlay, nil
}

func (a *containerActions) destroy(ctx context.Context, env event.Envelope) (event.Payload, error) {
	if env.Origin == event.OriginClient {
		if err := a.connector.RemoveContainer(ctx, env.ID); err != nil {
			return nil, err
		}
		a.logger.Info("container removed", zap.String("kind", string(a.kind)), zap.String("id", event.ShortID(env.ID)))
	}
	return event.Payload{"id": event.ShortID(env.ID)}, nil
}

func (a *containerActions) entry(env event.Envelope, id, status, image string) event.Payload {
	entry := map[string]interface{}{
		"name":   env.Name,
		"id":     event.ShortID(id),
		"image":  image,
		"status": status,
	}
	if a.describe != nil {
		a.describe(env, entry)
	}
	return event.Payload{a.group: map[string]interface{}{env.Name: entry}}
}

// NewProxyHandler handles Envoy proxies running image.
func NewProxyHandler(conn connector.Connector, pub Publisher, image string, logger *zap.Logger) *ContainerHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	actions := &containerActions{
		kind:      event.KindProxy,
		group:     "proxies",
		connector: conn,
		logger:    logger,
		spec: func(env event.Envelope) (connector.ContainerSpec, error) {
			ports, err := proxyPorts(env.Fields)
			if err != nil {
				return connector.ContainerSpec{}, err
			}
			return connector.ContainerSpec{
				Name:   env.Name,
				Image:  image,
				Cmd:    []string{"envoy", "--config-yaml", env.Fields.String("configuration")},
				Labels: map[string]string{connector.LabelProxy: env.Name},
				Ports:  ports,
			}, nil
		},
	}
	return &ContainerHandler{kind: event.KindProxy, strategy: actions.strategy(), publisher: pub}
}

// NewServiceHandler handles backend services whose images come from catalog.
func NewServiceHandler(conn connector.Connector, pub Publisher, catalog ServiceCatalog, logger *zap.Logger) *ContainerHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	actions := &containerActions{
		kind:      event.KindService,
		group:     "services",
		connector: conn,
		logger:    logger,
		spec: func(env event.Envelope) (connector.ContainerSpec, error) {
			serviceType := env.Fields.String("service_type")
			svc, ok := catalog.Lookup(serviceType)
			if !ok {
				return connector.ContainerSpec{}, &validation.ValidationError{
					Field:   "service_type",
					Message: fmt.Sprintf("unknown service type %q", serviceType),
					Bound:   "unknown",
				}
			}
			envVars := append([]string{}, svc.Env...)
			if config := env.Fields.String("configuration"); config != "" && svc.ConfigEnv != "" {
				envVars = append(envVars, svc.ConfigEnv+"="+config)
			}
			return connector.ContainerSpec{
				Name:  env.Name,
				Image: svc.Image,
				Env:   envVars,
				Labels: map[string]string{
					connector.LabelService:     env.Name,
					connector.LabelServiceType: serviceType,
				},
			}, nil
		},
		describe: func(env event.Envelope, entry map[string]interface{}) {
			entry["service_type"] = env.Fields.String("service_type")
		},
	}
	return &ContainerHandler{kind: event.KindService, strategy: actions.strategy(), publisher: pub}
}

// proxyPorts reads the optional port_mappings field. HTTP actions carry the
// mappings already validated; WebSocket frames are checked here.
func proxyPorts(fields event.Fields) ([]connector.PortMapping, error) {
	raw, ok := fields.Get("port_mappings")
	if !ok || raw == nil {
		return nil, nil
	}
	mappings, err := validation.PortMappings(raw)
	if err != nil {
		return nil, err
	}
	out := make([]connector.PortMapping, 0, len(mappings))
	for _, m := range mappings {
		out = append(out, connector.PortMapping{HostPort: m.From, ContainerPort: m.To})
	}
	return out, nil
}
