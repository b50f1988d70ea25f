package docker

import (
	"context"
	"fmt"
	"github.com/melbahja/goph"
	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
	"strings"
	"time"
)

const (
	DefaultSSHPort    = 22
	sshConnectTimeout = 3 * time.Second
)

type SSHConfig struct {
	Host           string
	Port           uint
	User           string
	PrivateKeyPath string
}

// SSHRunner runs the docker CLI on a remote docker host.
type SSHRunner struct {
	host   string
	client *goph.Client
}

var _ Runner = &SSHRunner{}

func NewSSHRunner(cfg SSHConfig) (*SSHRunner, error) {
	if cfg.Port == 0 {
		cfg.Port = DefaultSSHPort
	}
	var (
		auth goph.Auth
		err  error
	)
	if cfg.PrivateKeyPath == "" {
		auth, err = goph.UseAgent()
	} else {
		auth, err = goph.Key(cfg.PrivateKeyPath, "")
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load ssh credentials for %s", cfg.Host)
	}
	client, err := goph.NewConn(&goph.Config{
		User:    cfg.User,
		Addr:    cfg.Host,
		Port:    cfg.Port,
		Auth:    auth,
		Timeout: sshConnectTimeout,
		// #nosec G106
		Callback: ssh.InsecureIgnoreHostKey(),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "connect to %s", cfg.Host)
	}
	return &SSHRunner{host: cfg.Host, client: client}, nil
}

func (r *SSHRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	quoted := make([]string, 0, len(args))
	for _, a := range args {
		quoted = append(quoted, shellQuote(a))
	}
	cmd, err := r.client.CommandContext(ctx, name, quoted...)
	if err != nil {
		return nil, errors.Wrapf(err, "prepare %s on %s", name, r.host)
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, errors.Wrapf(err, "%s %s on %s: %s", name, strings.Join(args, " "), r.host, strings.TrimSpace(string(out)))
	}
	return out, nil
}

func (r *SSHRunner) Close() error {
	return r.client.Close()
}

// shellQuote quotes s for the remote login shell.
func shellQuote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n'\"\\$`|&;<>(){}*?!#~") {
		return s
	}
	return fmt.Sprintf("'%s'", strings.ReplaceAll(s, "'", `'"'"'`))
}
