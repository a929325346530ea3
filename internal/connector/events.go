package connector

import (
	"context"
	"sort"

	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"go.uber.org/zap"

	"evalgo.org/playground/internal/event"
)

// Events translates the Docker event stream into engine-origin envelopes.
// Only playground-owned networks and containers produce envelopes.
func (d *Docker) Events(ctx context.Context) (<-chan event.Envelope, <-chan error) {
	out := make(chan event.Envelope, 64)
	errc := make(chan error, 1)

	go func() {
		defer close(out)

		owned, err := d.ownedNetworks(ctx)
		if err != nil {
			errc <- wrap("events", err)
			return
		}

		msgs, errs := d.cli.Events(ctx, events.ListOptions{
			Filters: filters.NewArgs(
				filters.Arg("type", string(events.NetworkEventType)),
				filters.Arg("type", string(events.ContainerEventType)),
				filters.Arg("type", string(events.ImageEventType)),
			),
		})

		for {
			select {
			case <-ctx.Done():
				return
			case err := <-errs:
				if err != nil && ctx.Err() == nil {
					errc <- wrap("events", err)
				}
				return
			case msg := <-msgs:
				env, ok := d.translate(ctx, msg, owned)
				if !ok {
					continue
				}
				d.logger.Debug("engine event", zap.Stringer("envelope", env))
				select {
				case out <- env:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, errc
}

func (d *Docker) translate(ctx context.Context, msg events.Message, owned map[string]string) (event.Envelope, bool) {
	switch msg.Type {
	case events.NetworkEventType:
		return d.networkEnvelope(ctx, msg, owned)
	case events.ContainerEventType:
		return ContainerEnvelope(msg)
	case events.ImageEventType:
		return ImageEnvelope(msg)
	}
	return event.Envelope{}, false
}

func (d *Docker) networkEnvelope(ctx context.Context, msg events.Message, owned map[string]string) (event.Envelope, bool) {
	id := msg.Actor.ID
	env := event.Envelope{
		Kind:       event.KindNetwork,
		Action:     string(msg.Action),
		ID:         id,
		Containers: []string{},
		Origin:     event.OriginEngine,
	}

	switch env.Action {
	case "create":
		info, err := d.cli.NetworkInspect(ctx, id, network.InspectOptions{})
		if err != nil {
			return event.Envelope{}, false
		}
		if _, ok := info.Labels[LabelNetwork]; !ok {
			return event.Envelope{}, false
		}
		owned[id] = info.Name
		env.Name = info.Name
		return env, true

	case "connect", "disconnect":
		name, ok := owned[id]
		if !ok {
			return event.Envelope{}, false
		}
		env.Name = name

		if info, err := d.cli.NetworkInspect(ctx, id, network.InspectOptions{}); err == nil {
			for _, endpoint := range info.Containers {
				env.Containers = append(env.Containers, endpoint.Name)
			}
			sort.Strings(env.Containers)
		}

		// the container may already be gone when a disconnect follows a destroy
		if c, err := d.cli.ContainerInspect(ctx, msg.Actor.Attributes["container"]); err == nil && c.Config != nil {
			cname := trimSlash(c.Name)
			if _, ok := c.Config.Labels[LabelProxy]; ok {
				env.Proxy = cname
			} else if _, ok := c.Config.Labels[LabelService]; ok {
				env.Service = cname
			}
		}
		return env, true

	case "destroy":
		name, ok := owned[id]
		if !ok {
			return event.Envelope{}, false
		}
		delete(owned, id)
		env.Name = name
		return env, true
	}

	return event.Envelope{}, false
}

// ContainerEnvelope translates a container event for a playground proxy or
// service. Other containers and uninteresting actions are skipped.
func ContainerEnvelope(msg events.Message) (event.Envelope, bool) {
	attrs := msg.Actor.Attributes

	var kind event.Kind
	if _, ok := attrs[LabelProxy]; ok {
		kind = event.KindProxy
	} else if _, ok := attrs[LabelService]; ok {
		kind = event.KindService
	} else {
		return event.Envelope{}, false
	}

	action := string(msg.Action)
	switch action {
	case "create", "start", "destroy":
	case "die":
		action = "stop"
	default:
		return event.Envelope{}, false
	}

	env := event.Envelope{
		Kind:   kind,
		Action: action,
		ID:     msg.Actor.ID,
		Name:   attrs["name"],
		Origin: event.OriginEngine,
	}
	env.Fields = env.Fields.Set("image", attrs["image"])
	if kind == event.KindService {
		env.Fields = env.Fields.Set("service_type", attrs[LabelServiceType])
	}
	return env, true
}

// ImageEnvelope translates image pull and removal progress.
func ImageEnvelope(msg events.Message) (event.Envelope, bool) {
	action := string(msg.Action)
	switch action {
	case "pull", "tag", "untag", "delete":
	default:
		return event.Envelope{}, false
	}

	name := msg.Actor.Attributes["name"]
	if name == "" {
		name = msg.Actor.ID
	}

	env := event.Envelope{
		Kind:   event.KindImage,
		Action: action,
		ID:     msg.Actor.ID,
		Name:   name,
		Origin: event.OriginEngine,
	}
	env.Fields = env.Fields.Set("status", action)
	return env, true
}

func trimSlash(name string) string {
	if len(name) > 0 && name[0] == '/' {
		return name[1:]
	}
	return name
}
