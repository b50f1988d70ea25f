// Package fakebackend provides a scripted in-memory backend.Backend for tests.
package fakebackend

import (
	"context"
	"fmt"
	"github.com/QQGoblin/lnfleet/pkg/backend"
	"github.com/pkg/errors"
	"sync"
)

// Response is one scripted reply to an Exec or GetFile call.
type Response struct {
	Output []byte
	Err    error
}

func OK(output string) Response {
	return Response{Output: []byte(output)}
}

func Fail(msg string) Response {
	return Response{Err: errors.New(msg)}
}

type key struct {
	index   int
	service backend.ServiceType
	arg     string
}

// Backend replays queued responses per (index, service, command). When the queue for a key
// holds a single response it is returned forever; otherwise responses are consumed in order.
type Backend struct {
	Network string

	mu       sync.Mutex
	execs    map[key][]Response
	files    map[key][]Response
	statuses map[key]backend.RunningStatus
	calls    []string
	counts   map[key]int
}

var _ backend.Backend = &Backend{}

func New(network string) *Backend {
	return &Backend{
		Network:  network,
		execs:    make(map[key][]Response),
		files:    make(map[key][]Response),
		statuses: make(map[key]backend.RunningStatus),
		counts:   make(map[key]int),
	}
}

func (b *Backend) OnExec(index int, service backend.ServiceType, cmd string, responses ...Response) {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := key{index, service, cmd}
	b.execs[k] = append(b.execs[k], responses...)
}

func (b *Backend) OnGetFile(index int, service backend.ServiceType, path string, responses ...Response) {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := key{index, service, path}
	b.files[k] = append(b.files[k], responses...)
}

func (b *Backend) SetStatus(index int, service backend.ServiceType, status backend.RunningStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statuses[key{index, service, ""}] = status
}

// ExecCount returns how many times cmd was executed on the service.
func (b *Backend) ExecCount(index int, service backend.ServiceType, cmd string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts[key{index, service, cmd}]
}

// Calls returns every call made so far, formatted as "<op> <container> <arg>".
func (b *Backend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func (b *Backend) Exec(_ context.Context, index int, service backend.ServiceType, cmd string) ([]byte, error) {
	return b.next(b.execs, "exec", index, service, cmd)
}

func (b *Backend) GetFile(_ context.Context, index int, service backend.ServiceType, path string) ([]byte, error) {
	return b.next(b.files, "get-file", index, service, path)
}

func (b *Backend) GetStatus(_ context.Context, index int, service backend.ServiceType) (backend.RunningStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, fmt.Sprintf("status %s", b.ContainerName(index, service)))
	status, ok := b.statuses[key{index, service, ""}]
	if !ok {
		return backend.StatusPending, nil
	}
	return status, nil
}

func (b *Backend) ContainerName(index int, service backend.ServiceType) string {
	return fmt.Sprintf("%s-%s-%06d", b.Network, service, index)
}

func (b *Backend) next(table map[key][]Response, op string, index int, service backend.ServiceType, arg string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	container := b.ContainerName(index, service)
	k := key{index, service, arg}
	b.calls = append(b.calls, fmt.Sprintf("%s %s %s", op, container, arg))
	b.counts[k]++

	queue := table[k]
	if len(queue) == 0 {
		return nil, backend.NewError(op, container, errors.Errorf("no scripted response for %q", arg))
	}
	resp := queue[0]
	if len(queue) > 1 {
		table[k] = queue[1:]
	}
	if resp.Err != nil {
		return nil, backend.NewError(op, container, resp.Err)
	}
	return resp.Output, nil
}
