package validation

import (
	"fmt"

	"evalgo.org/playground/internal/event"
)

// NetworkAddCommand creates an empty playground network.
type NetworkAddCommand struct {
	Name   string       `json:"name"`
	Fields event.Fields `json:"-"`
}

// NetworkEditCommand sets which proxies and services a network connects.
type NetworkEditCommand struct {
	ID       string       `json:"id"`
	Proxies  []string     `json:"proxies"`
	Services []string     `json:"services"`
	Fields   event.Fields `json:"-"`
}

// PortMapping publishes a proxy port on the host.
type PortMapping struct {
	From int `json:"mapping_from"`
	To   int `json:"mapping_to"`
}

// ProxyAddCommand creates an Envoy proxy container.
type ProxyAddCommand struct {
	Name          string        `json:"name"`
	Configuration string        `json:"configuration"`
	PortMappings  []PortMapping `json:"port_mappings"`
	Fields        event.Fields  `json:"-"`
}

// ServiceAddCommand creates a backend service container.
type ServiceAddCommand struct {
	Name          string       `json:"name"`
	ServiceType   string       `json:"service_type"`
	Configuration string       `json:"configuration,omitempty"`
	Fields        event.Fields `json:"-"`
}

// ResourceDeleteCommand removes a network, proxy or service by id.
type ResourceDeleteCommand struct {
	ID     string       `json:"id"`
	Fields event.Fields `json:"-"`
}

func (v *Validator) NetworkAdd(data []byte) (*NetworkAddCommand, error) {
	fields, err := v.Validate(ActionNetworkAdd, data)
	if err != nil {
		return nil, err
	}
	return &NetworkAddCommand{Name: fields.String("name"), Fields: fields}, nil
}

// NetworkEdit also enforces the connection limit across proxies and services.
func (v *Validator) NetworkEdit(data []byte) (*NetworkEditCommand, error) {
	fields, err := v.Validate(ActionNetworkEdit, data)
	if err != nil {
		return nil, err
	}
	cmd := &NetworkEditCommand{
		ID:       fields.String("id"),
		Proxies:  fields.Strings("proxies"),
		Services: fields.Strings("services"),
		Fields:   fields,
	}

	connections := len(cmd.Proxies) + len(cmd.Services)
	if connections > v.bounds.MaxNetworkConnections {
		return nil, &ValidationError{
			Field:   "connections",
			Message: fmt.Sprintf("%d connections requested, at most %d allowed", connections, v.bounds.MaxNetworkConnections),
			Bound:   fmt.Sprintf("max=%d", v.bounds.MaxNetworkConnections),
		}
	}
	return cmd, nil
}

func (v *Validator) ProxyAdd(data []byte) (*ProxyAddCommand, error) {
	fields, err := v.Validate(ActionProxyAdd, data)
	if err != nil {
		return nil, err
	}
	cmd := &ProxyAddCommand{
		Name:          fields.String("name"),
		Configuration: fields.String("configuration"),
		PortMappings:  []PortMapping{},
		Fields:        fields,
	}
	if raw, ok := fields.Get("port_mappings"); ok {
		if cmd.PortMappings, err = PortMappings(raw); err != nil {
			return nil, err
		}
	}
	return cmd, nil
}

func (v *Validator) ServiceAdd(data []byte) (*ServiceAddCommand, error) {
	fields, err := v.Validate(ActionServiceAdd, data)
	if err != nil {
		return nil, err
	}
	return &ServiceAddCommand{
		Name:          fields.String("name"),
		ServiceType:   fields.String("service_type"),
		Configuration: fields.String("configuration"),
		Fields:        fields,
	}, nil
}

// ResourceDelete validates a delete body for any of the *_delete actions.
func (v *Validator) ResourceDelete(action string, data []byte) (*ResourceDeleteCommand, error) {
	switch action {
	case ActionNetworkDelete, ActionProxyDelete, ActionServiceDelete:
	default:
		return nil, &ValidationError{Field: "action", Message: fmt.Sprintf("%q is not a delete action", action), Bound: "unknown"}
	}
	fields, err := v.Validate(action, data)
	if err != nil {
		return nil, err
	}
	return &ResourceDeleteCommand{ID: fields.String("id"), Fields: fields}, nil
}
