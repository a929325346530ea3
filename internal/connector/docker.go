package connector

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	dockerclient "github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"go.uber.org/zap"

	"evalgo.org/playground/internal/metrics"
)

// Docker is a Connector backed by a Docker Engine API client.
type Docker struct {
	cli    *dockerclient.Client
	logger *zap.Logger
}

// NewDocker connects to the engine at host, or the environment's DOCKER_HOST
// when host is empty.
func NewDocker(host string, logger *zap.Logger) (*Docker, error) {
	opts := []dockerclient.Opt{dockerclient.WithAPIVersionNegotiation()}
	if host != "" {
		if !strings.Contains(host, "://") {
			host = "unix://" + host
		}
		opts = append(opts, dockerclient.WithHost(host))
	} else {
		opts = append(opts, dockerclient.FromEnv)
	}

	cli, err := dockerclient.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}

	return &Docker{cli: cli, logger: logger}, nil
}

func (d *Docker) observe(op string, err error) error {
	metrics.ConnectorCalls.WithLabelValues(op, metrics.Result(err)).Inc()
	if err != nil {
		d.logger.Warn("connector call failed", zap.String("op", op), zap.Error(err))
	}
	return wrap(op, err)
}

// CreateNetwork creates a bridge network carrying the playground label.
func (d *Docker) CreateNetwork(ctx context.Context, spec NetworkSpec) (string, error) {
	labels := map[string]string{LabelNetwork: spec.Name}
	for k, v := range spec.Labels {
		labels[k] = v
	}

	resp, err := d.cli.NetworkCreate(ctx, spec.Name, network.CreateOptions{
		Driver: "bridge",
		Labels: labels,
	})
	if err := d.observe("create_network", err); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// ListNetworks lists every network visible to the engine.
func (d *Docker) ListNetworks(ctx context.Context) ([]NetworkDescriptor, error) {
	nets, err := d.cli.NetworkList(ctx, network.ListOptions{})
	if err := d.observe("list_networks", err); err != nil {
		return nil, err
	}

	out := make([]NetworkDescriptor, 0, len(nets))
	for _, n := range nets {
		members := make([]string, 0, len(n.Containers))
		for id := range n.Containers {
			members = append(members, id)
		}
		sort.Strings(members)
		out = append(out, NetworkDescriptor{
			ID:         n.ID,
			Name:       n.Name,
			Labels:     n.Labels,
			Containers: members,
		})
	}
	return out, nil
}

func (d *Docker) RemoveNetwork(ctx context.Context, id string) error {
	return d.observe("remove_network", d.cli.NetworkRemove(ctx, id))
}

func (d *Docker) ConnectContainer(ctx context.Context, networkID, containerID string) error {
	return d.observe("connect_container", d.cli.NetworkConnect(ctx, networkID, containerID, nil))
}

func (d *Docker) DisconnectContainer(ctx context.Context, networkID, containerID string) error {
	return d.observe("disconnect_container", d.cli.NetworkDisconnect(ctx, networkID, containerID, false))
}

// CreateContainer creates and starts a container, pulling its image first if
// the engine does not have it.
func (d *Docker) CreateContainer(ctx context.Context, spec ContainerSpec) (string, error) {
	exposed := nat.PortSet{}
	bindings := nat.PortMap{}
	for _, p := range spec.Ports {
		port, err := nat.NewPort("tcp", strconv.Itoa(p.ContainerPort))
		if err != nil {
			return "", d.observe("create_container", err)
		}
		exposed[port] = struct{}{}
		bindings[port] = append(bindings[port], nat.PortBinding{
			HostIP:   "0.0.0.0",
			HostPort: strconv.Itoa(p.HostPort),
		})
	}

	cfg := &container.Config{
		Image:        spec.Image,
		Cmd:          spec.Cmd,
		Env:          spec.Env,
		Labels:       spec.Labels,
		ExposedPorts: exposed,
	}
	hostCfg := &container.HostConfig{PortBindings: bindings}

	resp, err := d.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, spec.Name)
	if dockerclient.IsErrNotFound(err) {
		if pullErr := d.pull(ctx, spec.Image); pullErr != nil {
			return "", d.observe("pull_image", pullErr)
		}
		resp, err = d.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, spec.Name)
	}
	if err := d.observe("create_container", err); err != nil {
		return "", err
	}

	if err := d.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		_ = d.cli.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return "", d.observe("start_container", err)
	}
	return resp.ID, nil
}

func (d *Docker) pull(ctx context.Context, ref string) error {
	reader, err := d.cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return err
	}
	defer reader.Close()

	// progress is surfaced through image events, the stream only needs draining
	_, err = io.Copy(io.Discard, reader)
	return err
}

// ListContainers lists every container, running or not.
func (d *Docker) ListContainers(ctx context.Context) ([]ContainerDescriptor, error) {
	containers, err := d.cli.ContainerList(ctx, container.ListOptions{All: true})
	if err := d.observe("list_containers", err); err != nil {
		return nil, err
	}

	out := make([]ContainerDescriptor, 0, len(containers))
	for _, c := range containers {
		name := ""
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}
		nets := []string{}
		if c.NetworkSettings != nil {
			for _, settings := range c.NetworkSettings.Networks {
				if settings != nil && settings.NetworkID != "" {
					nets = append(nets, settings.NetworkID)
				}
			}
		}
		sort.Strings(nets)
		out = append(out, ContainerDescriptor{
			ID:       c.ID,
			Name:     name,
			Image:    c.Image,
			Status:   c.State,
			Labels:   c.Labels,
			Networks: nets,
		})
	}
	return out, nil
}

func (d *Docker) RemoveContainer(ctx context.Context, id string) error {
	return d.observe("remove_container", d.cli.ContainerRemove(ctx, id, container.RemoveOptions{
		Force:         true,
		RemoveVolumes: true,
	}))
}

// ListResources snapshots playground-owned networks, proxies and services.
func (d *Docker) ListResources(ctx context.Context) (Snapshot, error) {
	nets, err := d.ListNetworks(ctx)
	if err != nil {
		return nil, err
	}
	containers, err := d.ListContainers(ctx)
	if err != nil {
		return nil, err
	}
	return NewSnapshot(nets, containers), nil
}

func (d *Docker) Ping(ctx context.Context) error {
	_, err := d.cli.Ping(ctx)
	return d.observe("ping", err)
}

func (d *Docker) Close() error {
	return d.cli.Close()
}

// ownedNetworks returns the id → name map of playground networks.
func (d *Docker) ownedNetworks(ctx context.Context) (map[string]string, error) {
	nets, err := d.cli.NetworkList(ctx, network.ListOptions{
		Filters: filters.NewArgs(filters.Arg("label", LabelNetwork)),
	})
	if err != nil {
		return nil, err
	}
	owned := make(map[string]string, len(nets))
	for _, n := range nets {
		owned[n.ID] = n.Name
	}
	return owned, nil
}
