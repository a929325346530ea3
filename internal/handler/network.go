package handler

import (
	"context"

	"go.uber.org/zap"

	"evalgo.org/playground/internal/connector"
	"evalgo.org/playground/internal/event"
)

// NetworkHandler handles network create, connect, disconnect and destroy.
type NetworkHandler struct {
	connector connector.Connector
	publisher Publisher
	logger    *zap.Logger
	table     table
}

func NewNetworkHandler(conn connector.Connector, pub Publisher, logger *zap.Logger) *NetworkHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &NetworkHandler{connector: conn, publisher: pub, logger: logger}
	h.table = table{
		kind: event.KindNetwork,
		actions: map[string]ActionFunc{
			"create":     h.connection,
			"connect":    h.connection,
			"disconnect": h.connection,
			"destroy":    h.destroy,
		},
	}
	return h
}

func (h *NetworkHandler) Handle(ctx context.Context, env event.Envelope) error {
	return h.table.handle(ctx, env)
}

// connection publishes the network's membership after create, connect or
// disconnect.
func (h *NetworkHandler) connection(ctx context.Context, env event.Envelope) error {
	id := env.ID
	if env.Origin == event.OriginClient {
		var err error
		if id, err = h.apply(ctx, env); err != nil {
			return err
		}
	}

	return h.publisher.Publish(ctx, event.KindNetwork, event.Merge(env, connectionOverlay(env, id)))
}

// connectionOverlay describes the membership of network id. A created
// network's new id replaces the envelope's.
func connectionOverlay(env event.Envelope, id string) event.Payload {
	containers := env.Containers
	if containers == nil {
		containers = []string{}
	}
	overlay := event.Payload{
		"networks": map[string]interface{}{
			env.Name: map[string]interface{}{
				"name":       env.Name,
				"id":         event.ShortID(id),
				"containers": containers,
			},
		},
	}
	if env.Proxy != "" {
		overlay["proxy"] = env.Proxy
	}
	if env.Service != "" {
		overlay["service"] = env.Service
	}
	if id != env.ID {
		overlay["id"] = event.ShortID(id)
	}
	return overlay
}

// apply performs the connector call for a client action and returns the id of
// the affected network.
func (h *NetworkHandler) apply(ctx context.Context, env event.Envelope) (string, error) {
	switch env.Action {
	case "create":
		id, err := h.connector.CreateNetwork(ctx, connector.NetworkSpec{
			Name:   env.Name,
			Labels: map[string]string{connector.LabelNetwork: env.Name},
		})
		if err != nil {
			return "", err
		}
		h.logger.Info("network created", zap.String("name", env.Name), zap.String("id", event.ShortID(id)))
		return id, nil

	case "connect", "disconnect":
		call := h.connector.ConnectContainer
		if env.Action == "disconnect" {
			call = h.connector.DisconnectContainer
		}
		for _, member := range members(env) {
			if err := call(ctx, env.ID, member); err != nil {
				return "", err
			}
			h.logger.Debug("network membership changed",
				zap.String("action", env.Action),
				zap.String("network", event.ShortID(env.ID)),
				zap.String("container", member))
		}
	}
	return env.ID, nil
}

func (h *NetworkHandler) destroy(ctx context.Context, env event.Envelope) error {
	if env.Origin == event.OriginClient {
		if err := h.connector.RemoveNetwork(ctx, env.ID); err != nil {
			return err
		}
		h.logger.Info("network removed", zap.String("id", event.ShortID(env.ID)))
	}
	overlay := event.Payload{"id": event.ShortID(env.ID)}
	return h.publisher.Publish(ctx, event.KindNetwork, event.Merge(env, overlay))
}

// members lists the proxy, service and containers of env without repeats.
func members(env event.Envelope) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, m := range append([]string{env.Proxy, env.Service}, env.Containers...) {
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}
