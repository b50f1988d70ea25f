package config

import (
	"github.com/QQGoblin/lnfleet/pkg/backend/docker"
	"github.com/QQGoblin/lnfleet/pkg/backend/kubernetes"
	"github.com/QQGoblin/lnfleet/pkg/invoker"
	"github.com/QQGoblin/lnfleet/pkg/lnnode"
	"github.com/pkg/errors"
	"strings"
	"time"
)

const (
	BackendCompose    = "compose"
	BackendKubernetes = "kubernetes"
)

type Config struct {
	// 比特币网络，传给lncli/lightning-cli的--network
	Network string `mapstructure:"network"`
	// 编排后端 compose|kubernetes
	Backend string `mapstructure:"backend"`
	// 容器/Pod名称前缀
	Project string `mapstructure:"project"`

	Docker     DockerConfig     `mapstructure:"docker"`
	Kubernetes KubernetesConfig `mapstructure:"kubernetes"`
	Retry      RetryConfig      `mapstructure:"retry"`
	Export     ExportConfig     `mapstructure:"export"`

	Nodes []NodeConfig `mapstructure:"nodes"`
}

type DockerConfig struct {
	Socket  string        `mapstructure:"socket"`
	Timeout time.Duration `mapstructure:"timeout"`
	SSH     SSHConfig     `mapstructure:"ssh"`
}

// SSHConfig 非空Host时docker命令在远端主机执行
type SSHConfig struct {
	Host    string `mapstructure:"host"`
	Port    uint   `mapstructure:"port"`
	User    string `mapstructure:"user"`
	KeyFile string `mapstructure:"key-file"`
}

type KubernetesConfig struct {
	Kubeconfig string `mapstructure:"kubeconfig"`
	Apiserver  string `mapstructure:"apiserver"`
	Namespace  string `mapstructure:"namespace"`
}

type RetryConfig struct {
	MaxAttempts uint64        `mapstructure:"max-attempts"`
	BaseDelay   time.Duration `mapstructure:"base-delay"`
	MaxDelay    time.Duration `mapstructure:"max-delay"`
}

type ExportConfig struct {
	Dir         string `mapstructure:"dir"`
	Parallelism int    `mapstructure:"parallelism"`
}

type NodeConfig struct {
	Index          int    `mapstructure:"index"`
	Implementation string `mapstructure:"implementation"`
	Image          string `mapstructure:"image"`
	CircuitBreaker bool   `mapstructure:"circuit-breaker"`
}

func Default() *Config {
	policy := invoker.DefaultPolicy()
	return &Config{
		Network: lnnode.DefaultNetwork,
		Backend: BackendCompose,
		Project: "warnet",
		Docker: DockerConfig{
			Socket:  docker.DefaultSocket,
			Timeout: 10 * time.Second,
			SSH: SSHConfig{
				Port: 22,
				User: "root",
			},
		},
		Kubernetes: KubernetesConfig{
			Namespace: kubernetes.DefaultNamespace,
		},
		Retry: RetryConfig{
			MaxAttempts: policy.MaxAttempts,
			BaseDelay:   policy.BaseDelay,
			MaxDelay:    policy.MaxDelay,
		},
		Export: ExportConfig{
			Dir:         "credentials",
			Parallelism: 4,
		},
	}
}

func (c *Config) Validate() error {
	switch c.Backend {
	case BackendCompose, BackendKubernetes:
	default:
		return errors.Errorf("unsupported backend %q, want %s or %s", c.Backend, BackendCompose, BackendKubernetes)
	}
	if c.Network == "" {
		return errors.New("network must not be empty")
	}
	if c.Project == "" {
		return errors.New("project must not be empty")
	}
	if c.Retry.MaxAttempts == 0 {
		return errors.New("retry.max-attempts must be at least 1")
	}
	if c.Retry.BaseDelay <= 0 {
		return errors.New("retry.base-delay must be positive")
	}
	if c.Retry.MaxDelay < c.Retry.BaseDelay {
		return errors.Errorf("retry.max-delay %s is shorter than retry.base-delay %s", c.Retry.MaxDelay, c.Retry.BaseDelay)
	}
	if c.Export.Parallelism < 0 {
		return errors.New("export.parallelism must not be negative")
	}
	if c.Backend == BackendKubernetes && c.Kubernetes.Namespace == "" {
		return errors.New("kubernetes.namespace must not be empty")
	}

	seen := make(map[int]bool, len(c.Nodes))
	for _, n := range c.Nodes {
		if n.Index < 0 {
			return errors.Errorf("node index %d is negative", n.Index)
		}
		if seen[n.Index] {
			return errors.Errorf("duplicate node index %d", n.Index)
		}
		seen[n.Index] = true
		if _, err := lnnode.GenerateCLICommand(lnnode.Kind(n.Implementation), c.Network, nil); err != nil {
			return errors.Wrapf(err, "node %d", n.Index)
		}
	}
	return nil
}

// Policy returns the retry policy for the command invoker.
func (c *Config) Policy() invoker.Policy {
	return invoker.Policy{
		MaxAttempts: c.Retry.MaxAttempts,
		BaseDelay:   c.Retry.BaseDelay,
		MaxDelay:    c.Retry.MaxDelay,
	}
}

// NodeOptions converts the node list. Implementation names are matched case-insensitively.
func (c *Config) NodeOptions() []lnnode.Options {
	opts := make([]lnnode.Options, 0, len(c.Nodes))
	for _, n := range c.Nodes {
		opts = append(opts, lnnode.Options{
			Index:          n.Index,
			Kind:           lnnode.Kind(strings.ToLower(n.Implementation)),
			Network:        c.Network,
			Image:          n.Image,
			CircuitBreaker: n.CircuitBreaker,
		})
	}
	return opts
}
