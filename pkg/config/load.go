package config

import (
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"strings"
)

const EnvPrefix = "LNCTL"

// FlagKeys maps command line flags to configuration keys.
var FlagKeys = map[string]string{
	"network":            "network",
	"backend":            "backend",
	"project":            "project",
	"docker-socket":      "docker.socket",
	"ssh-host":           "docker.ssh.host",
	"ssh-user":           "docker.ssh.user",
	"ssh-key":            "docker.ssh.key-file",
	"kubeconfig":         "kubernetes.kubeconfig",
	"apiserver":          "kubernetes.apiserver",
	"namespace":          "kubernetes.namespace",
	"retry-max-attempts": "retry.max-attempts",
	"retry-base-delay":   "retry.base-delay",
	"retry-max-delay":    "retry.max-delay",
	"export-dir":         "export.dir",
	"parallelism":        "export.parallelism",
}

// AddFlags registers the flags of FlagKeys on fs with the defaults of Default().
func AddFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("network", d.Network, "bitcoin network of the nodes")
	fs.String("backend", d.Backend, "orchestration backend, compose or kubernetes")
	fs.String("project", d.Project, "container name prefix")
	fs.String("docker-socket", d.Docker.Socket, "docker engine socket")
	fs.String("ssh-host", d.Docker.SSH.Host, "run docker commands on this host over ssh")
	fs.String("ssh-user", d.Docker.SSH.User, "ssh user")
	fs.String("ssh-key", d.Docker.SSH.KeyFile, "ssh private key, ssh-agent is used when empty")
	fs.String("kubeconfig", d.Kubernetes.Kubeconfig, "kubeconfig file, in-cluster config when empty")
	fs.String("apiserver", d.Kubernetes.Apiserver, "kubernetes apiserver address")
	fs.String("namespace", d.Kubernetes.Namespace, "kubernetes namespace of the nodes")
	fs.Uint64("retry-max-attempts", d.Retry.MaxAttempts, "attempts per node command")
	fs.Duration("retry-base-delay", d.Retry.BaseDelay, "delay before the first retry")
	fs.Duration("retry-max-delay", d.Retry.MaxDelay, "upper bound of the retry delay")
	fs.String("export-dir", d.Export.Dir, "directory credentials are exported to")
	fs.Int("parallelism", d.Export.Parallelism, "nodes processed concurrently, 0 for unlimited")
}

// Load layers defaults, the optional config file, LNCTL_* environment variables and flags
// that were set explicitly, in increasing precedence.
func Load(configFile string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", configFile)
		}
	}

	if fs != nil {
		for name, key := range FlagKeys {
			flag := fs.Lookup(name)
			if flag == nil || !flag.Changed {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, errors.Wrapf(err, "bind flag %s", name)
			}
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("network", d.Network)
	v.SetDefault("backend", d.Backend)
	v.SetDefault("project", d.Project)
	v.SetDefault("docker.socket", d.Docker.Socket)
	v.SetDefault("docker.timeout", d.Docker.Timeout)
	v.SetDefault("docker.ssh.host", d.Docker.SSH.Host)
	v.SetDefault("docker.ssh.port", d.Docker.SSH.Port)
	v.SetDefault("docker.ssh.user", d.Docker.SSH.User)
	v.SetDefault("docker.ssh.key-file", d.Docker.SSH.KeyFile)
	v.SetDefault("kubernetes.kubeconfig", d.Kubernetes.Kubeconfig)
	v.SetDefault("kubernetes.apiserver", d.Kubernetes.Apiserver)
	v.SetDefault("kubernetes.namespace", d.Kubernetes.Namespace)
	v.SetDefault("retry.max-attempts", d.Retry.MaxAttempts)
	v.SetDefault("retry.base-delay", d.Retry.BaseDelay)
	v.SetDefault("retry.max-delay", d.Retry.MaxDelay)
	v.SetDefault("export.dir", d.Export.Dir)
	v.SetDefault("export.parallelism", d.Export.Parallelism)
}
