package docker

import (
	"context"
	"github.com/pkg/errors"
	executil "k8s.io/utils/exec"
	"strings"
)

// Runner runs the docker CLI somewhere: on this host or on a remote one.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ShellRunner 直接通过本机 shell 执行 docker 命令
type ShellRunner struct {
	executor executil.Interface
}

var _ Runner = &ShellRunner{}

func NewShellRunner() *ShellRunner {
	return &ShellRunner{executor: executil.New()}
}

// NewShellRunnerWithExecutor is used by tests to inject a fake executor.
func NewShellRunnerWithExecutor(executor executil.Interface) *ShellRunner {
	return &ShellRunner{executor: executor}
}

func (r *ShellRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := r.executor.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, errors.Wrapf(err, "%s %s: %s", name, strings.Join(args, " "), strings.TrimSpace(string(out)))
	}
	return out, nil
}

func execArgs(container, cmd string) []string {
	return []string{"exec", container, "sh", "-c", cmd}
}

// copyArgs streams remotePath out of the container as a tar archive on stdout.
func copyArgs(container, remotePath string) []string {
	return []string{"cp", container + ":" + remotePath, "-"}
}

func inspectArgs(container string) []string {
	return []string{"inspect", "--format", "{{.State.Status}} {{.State.ExitCode}}", container}
}

func isNoSuchContainer(out []byte) bool {
	s := string(out)
	return strings.Contains(s, "No such object") || strings.Contains(s, "No such container")
}
