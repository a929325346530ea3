package connector

import (
	"sort"

	"evalgo.org/playground/internal/event"
)

// NetworkSpec describes a network to create.
type NetworkSpec struct {
	Name   string            `json:"name"`
	Labels map[string]string `json:"labels,omitempty"`
}

// NetworkDescriptor is a network as listed by the engine.
type NetworkDescriptor struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Labels     map[string]string `json:"labels"`
	Containers []string          `json:"containers"`
}

// Owned reports whether the playground created this network.
func (n NetworkDescriptor) Owned() bool {
	_, ok := n.Labels[LabelNetwork]
	return ok
}

// PortMapping publishes a container port on the host.
type PortMapping struct {
	HostPort      int `json:"mapping_from"`
	ContainerPort int `json:"mapping_to"`
}

// ContainerSpec describes a proxy or service container to create.
type ContainerSpec struct {
	Name   string            `json:"name"`
	Image  string            `json:"image"`
	Cmd    []string          `json:"cmd,omitempty"`
	Env    []string          `json:"env,omitempty"`
	Labels map[string]string `json:"labels,omitempty"`
	Ports  []PortMapping     `json:"ports,omitempty"`
}

// ContainerDescriptor is a container as listed by the engine.
type ContainerDescriptor struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Image    string            `json:"image"`
	Status   string            `json:"status"`
	Labels   map[string]string `json:"labels"`
	Networks []string          `json:"networks"`
}

// Kind returns which playground resource kind the container is, if any.
func (c ContainerDescriptor) Kind() (event.Kind, bool) {
	if _, ok := c.Labels[LabelProxy]; ok {
		return event.KindProxy, true
	}
	if _, ok := c.Labels[LabelService]; ok {
		return event.KindService, true
	}
	return "", false
}

// Snapshot is the full playground state handed to (re)connecting clients.
// Every id it contains is already in short form.
type Snapshot map[string]interface{}

// NewSnapshot builds a snapshot from listed networks and containers, keeping
// only playground-owned resources.
func NewSnapshot(networks []NetworkDescriptor, containers []ContainerDescriptor) Snapshot {
	byID := make(map[string]ContainerDescriptor, len(containers))
	proxies := map[string]interface{}{}
	services := map[string]interface{}{}

	for _, c := range containers {
		kind, ok := c.Kind()
		if !ok {
			continue
		}
		byID[c.ID] = c
		entry := map[string]interface{}{
			"name":   c.Name,
			"id":     event.ShortID(c.ID),
			"image":  c.Image,
			"status": c.Status,
		}
		if kind == event.KindProxy {
			proxies[c.Name] = entry
		} else {
			entry["service_type"] = c.Labels[LabelServiceType]
			services[c.Name] = entry
		}
	}

	nets := map[string]interface{}{}
	for _, n := range networks {
		if !n.Owned() {
			continue
		}
		members := []string{}
		seen := map[string]bool{}
		add := func(c ContainerDescriptor) {
			if !seen[c.ID] {
				seen[c.ID] = true
				members = append(members, c.Name)
			}
		}
		for _, id := range n.Containers {
			if c, ok := byID[id]; ok {
				add(c)
			}
		}
		for _, c := range containers {
			if _, ok := byID[c.ID]; !ok {
				continue
			}
			for _, netID := range c.Networks {
				if netID == n.ID {
					add(c)
				}
			}
		}
		sort.Strings(members)
		nets[n.Name] = map[string]interface{}{
			"name":       n.Name,
			"id":         event.ShortID(n.ID),
			"containers": members,
		}
	}

	return Snapshot{
		"networks": nets,
		"proxies":  proxies,
		"services": services,
	}
}
