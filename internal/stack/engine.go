package stack

import (
	"context"
	"fmt"
	"net/netip"
	"os"
	"strconv"

	"github.com/containerd/errdefs"
	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/mount"
	"github.com/moby/moby/api/types/network"
	"github.com/moby/moby/client"
	"go.uber.org/zap"
)

// Labels stamped on everything the engine creates. Teardown and status find
// stack resources by them.
const (
	labelStack   = "lexrag.stack"
	labelService = "lexrag.service"
)

// Engine drives a StackSpec against a Docker daemon.
type Engine struct {
	client *client.Client
	logger *zap.Logger
}

// NewEngine connects to the daemon using the environment (DOCKER_HOST etc).
func NewEngine(logger *zap.Logger) (*Engine, error) {
	c, err := client.New(client.FromEnv)
	if err != nil {
		return nil, fmt.Errorf("connect docker daemon: %w", err)
	}
	return &Engine{client: c, logger: logger}, nil
}

// Up creates the stack network and brings the services up in dependency
// order. An already-running stack is recreated service by service.
func (e *Engine) Up(ctx context.Context, spec StackSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}

	if err := e.ensureNetwork(ctx, spec); err != nil {
		return err
	}

	ordered, err := spec.StartOrder()
	if err != nil {
		return err
	}
	for _, svc := range ordered {
		if err := e.startService(ctx, spec, svc); err != nil {
			return err
		}
	}
	return nil
}

// ensureNetwork creates the bridge network if missing. A concurrent create
// is resolved by re-inspecting instead of matching error strings.
func (e *Engine) ensureNetwork(ctx context.Context, spec StackSpec) error {
	_, err := e.client.NetworkInspect(ctx, spec.Network, client.NetworkInspectOptions{})
	if err == nil {
		return nil
	}
	if !errdefs.IsNotFound(err) {
		return fmt.Errorf("inspect network %q: %w", spec.Network, err)
	}

	e.logger.Info("creating network", zap.String("network", spec.Network))
	_, err = e.client.NetworkCreate(ctx, spec.Network, client.NetworkCreateOptions{
		Labels: map[string]string{labelStack: spec.Name},
	})
	if err != nil {
		if _, ie := e.client.NetworkInspect(ctx, spec.Network, client.NetworkInspectOptions{}); ie == nil {
			return nil
		}
		return fmt.Errorf("create network %q: %w", spec.Network, err)
	}
	return nil
}

func (e *Engine) startService(ctx context.Context, spec StackSpec, svc ServiceSpec) error {
	name := spec.ContainerName(svc.Name)

	if err := e.removeContainer(ctx, name); err != nil {
		return err
	}

	exposed := network.PortSet{}
	portMap := network.PortMap{}
	for _, pb := range svc.Ports {
		port, _ := network.PortFrom(uint16(pb.Container), "tcp")
		exposed[port] = struct{}{}
		portMap[port] = append(portMap[port], network.PortBinding{
			HostIP:   netip.MustParseAddr("0.0.0.0"),
			HostPort: strconv.Itoa(pb.Host),
		})
	}

	mounts := make([]mount.Mount, 0, len(svc.Mounts))
	for _, m := range svc.Mounts {
		mounts = append(mounts, mount.Mount{
			Type:     mount.TypeBind,
			Source:   m.Source,
			Target:   m.Target,
			ReadOnly: m.ReadOnly,
		})
	}

	cfg := &container.Config{
		Image: svc.Image,
		Env:   envList(svc.Env),
		Labels: map[string]string{
			labelStack:   spec.Name,
			labelService: svc.Name,
		},
		ExposedPorts: exposed,
	}
	hostCfg := &container.HostConfig{
		Mounts:        mounts,
		PortBindings:  portMap,
		RestartPolicy: restartPolicy(svc.Restart),
	}
	netCfg := &network.NetworkingConfig{
		EndpointsConfig: map[string]*network.EndpointSettings{
			// The service name is the DNS name inside the stack network.
			spec.Network: {Aliases: []string{svc.Name}},
		},
	}

	e.logger.Info("starting service",
		zap.String("service", svc.Name),
		zap.String("image", svc.Image),
		zap.String("container", name))

	created, err := e.client.ContainerCreate(ctx, client.ContainerCreateOptions{
		Config:           cfg,
		HostConfig:       hostCfg,
		NetworkingConfig: netCfg,
		Name:             name,
		Image:            svc.Image,
	})
	if err != nil {
		return fmt.Errorf("create container %q: %w", name, err)
	}

	if _, err := e.client.ContainerStart(ctx, created.ID, client.ContainerStartOptions{}); err != nil {
		return fmt.Errorf("start container %q: %w", name, err)
	}
	return nil
}

func restartPolicy(policy string) container.RestartPolicy {
	switch policy {
	case RestartAlways:
		return container.RestartPolicy{Name: container.RestartPolicyAlways}
	case RestartOnFailure:
		return container.RestartPolicy{Name: container.RestartPolicyOnFailure}
	default:
		return container.RestartPolicy{Name: container.RestartPolicyDisabled}
	}
}

func (e *Engine) removeContainer(ctx context.Context, name string) error {
	_, err := e.client.ContainerInspect(ctx, name, client.ContainerInspectOptions{})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("inspect container %q: %w", name, err)
	}

	_, _ = e.client.ContainerStop(ctx, name, client.ContainerStopOptions{})
	if _, err := e.client.ContainerRemove(ctx, name, client.ContainerRemoveOptions{Force: true}); err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("remove container %q: %w", name, err)
	}
	return nil
}

// Down stops and removes the stack containers, then the network. Everything
// is found by label, so Down also cleans up after a partially failed Up.
func (e *Engine) Down(ctx context.Context, spec StackSpec) error {
	f := make(client.Filters).Add("label", labelStack+"="+spec.Name)

	containers, err := e.client.ContainerList(ctx, client.ContainerListOptions{
		All:     true,
		Filters: f,
	})
	if err != nil {
		return fmt.Errorf("list stack containers: %w", err)
	}
	for _, c := range containers.Items {
		e.logger.Info("removing container", zap.String("id", c.ID))
		_, _ = e.client.ContainerStop(ctx, c.ID, client.ContainerStopOptions{})
		if _, err := e.client.ContainerRemove(ctx, c.ID, client.ContainerRemoveOptions{Force: true}); err != nil && !errdefs.IsNotFound(err) {
			return fmt.Errorf("remove container %q: %w", c.ID, err)
		}
	}

	nets, err := e.client.NetworkList(ctx, client.NetworkListOptions{Filters: f})
	if err != nil {
		return fmt.Errorf("list stack networks: %w", err)
	}
	for _, n := range nets.Items {
		e.logger.Info("removing network", zap.String("network", n.Name))
		if _, err := e.client.NetworkRemove(ctx, n.ID, client.NetworkRemoveOptions{}); err != nil && !errdefs.IsNotFound(err) {
			return fmt.Errorf("remove network %q: %w", n.Name, err)
		}
	}
	return nil
}

// ServiceStatus is one row of Status output.
type ServiceStatus struct {
	Service   string
	Container string
	State     string
	Status    string
}

// Status reports the current state of every declared service. A service with
// no container shows state "absent".
func (e *Engine) Status(ctx context.Context, spec StackSpec) ([]ServiceStatus, error) {
	f := make(client.Filters).Add("label", labelStack+"="+spec.Name)

	containers, err := e.client.ContainerList(ctx, client.ContainerListOptions{
		All:     true,
		Filters: f,
	})
	if err != nil {
		return nil, fmt.Errorf("list stack containers: %w", err)
	}

	byService := make(map[string]ServiceStatus)
	for _, c := range containers.Items {
		svc := c.Labels[labelService]
		if svc == "" {
			continue
		}
		name := ""
		if len(c.Names) > 0 {
			name = c.Names[0]
		}
		byService[svc] = ServiceStatus{
			Service:   svc,
			Container: name,
			State:     string(c.State),
			Status:    c.Status,
		}
	}

	statuses := make([]ServiceStatus, 0, len(spec.Services))
	for _, svc := range spec.Services {
		st, ok := byService[svc.Name]
		if !ok {
			st = ServiceStatus{Service: svc.Name, State: "absent"}
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}

// Logs streams a service's log output, demultiplexed into stdout and stderr.
func (e *Engine) Logs(ctx context.Context, spec StackSpec, service string, follow bool) error {
	if _, ok := spec.Service(service); !ok {
		return fmt.Errorf("unknown service %q", service)
	}

	rc, err := e.client.ContainerLogs(ctx, spec.ContainerName(service), client.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     follow,
		Since:      "0",
	})
	if err != nil {
		return fmt.Errorf("logs for %q: %w", service, err)
	}
	defer rc.Close()

	return demuxLogs(os.Stdout, os.Stderr, rc)
}
