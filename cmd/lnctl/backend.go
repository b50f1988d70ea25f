package main

import (
	"github.com/QQGoblin/lnfleet/pkg/backend"
	"github.com/QQGoblin/lnfleet/pkg/backend/docker"
	"github.com/QQGoblin/lnfleet/pkg/backend/kubernetes"
	"github.com/QQGoblin/lnfleet/pkg/config"
	"github.com/QQGoblin/lnfleet/pkg/fleet"
	"github.com/QQGoblin/lnfleet/pkg/invoker"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
	"os"
)

// newBackend builds the configured backend. The returned func releases its connections.
func newBackend(cfg *config.Config) (backend.Backend, func(), error) {
	switch cfg.Backend {
	case config.BackendKubernetes:
		restConfig, clientset, err := kubernetes.GetClientSet(cfg.Kubernetes.Kubeconfig, cfg.Kubernetes.Apiserver)
		if err != nil {
			return nil, nil, err
		}
		return kubernetes.New(cfg.Project, cfg.Kubernetes.Namespace, restConfig, clientset), func() {}, nil

	case config.BackendCompose:
		if cfg.Docker.SSH.Host != "" {
			runner, err := docker.NewSSHRunner(docker.SSHConfig{
				Host:           cfg.Docker.SSH.Host,
				Port:           cfg.Docker.SSH.Port,
				User:           cfg.Docker.SSH.User,
				PrivateKeyPath: cfg.Docker.SSH.KeyFile,
			})
			if err != nil {
				return nil, nil, err
			}
			closer := func() {
				if err := runner.Close(); err != nil {
					klog.Warningf("close ssh connection: %v", err)
				}
			}
			return docker.NewCompose(cfg.Project, runner), closer, nil
		}

		var opts []docker.ComposeOption
		if _, err := os.Stat(cfg.Docker.Socket); err == nil {
			socket, err := docker.NewSocketClient(cfg.Docker.Socket, cfg.Docker.Timeout)
			if err != nil {
				return nil, nil, err
			}
			opts = append(opts, docker.WithSocketClient(socket))
		} else {
			klog.V(2).Infof("docker socket %s unavailable, status falls back to the docker cli", cfg.Docker.Socket)
		}
		return docker.NewCompose(cfg.Project, docker.NewShellRunner(), opts...), func() {}, nil
	}
	return nil, nil, errors.Errorf("unsupported backend %q", cfg.Backend)
}

func newFleet(cfg *config.Config) (*fleet.Fleet, func(), error) {
	b, closer, err := newBackend(cfg)
	if err != nil {
		return nil, nil, err
	}
	inv := invoker.New(b, invoker.NewRetrier(cfg.Policy()))
	f, err := fleet.New(b, inv, cfg.Export.Parallelism, cfg.NodeOptions()...)
	if err != nil {
		closer()
		return nil, nil, err
	}
	return f, closer, nil
}
