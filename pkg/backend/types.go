package backend

import (
	"context"
	"fmt"
)

// ServiceType 标识节点内的一个服务实例
type ServiceType string

const (
	ServiceBitcoin        ServiceType = "bitcoin"
	ServiceLightning      ServiceType = "ln"
	ServiceCircuitBreaker ServiceType = "cb"
)

// RunningStatus is the lifecycle state reported by the orchestration backend.
type RunningStatus int

const (
	StatusUnknown RunningStatus = iota
	StatusPending
	StatusRunning
	StatusStopped
	StatusFailed
	// StatusNotPresent is returned for a service that is not attached to the node.
	StatusNotPresent
)

func (s RunningStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusStopped:
		return "stopped"
	case StatusFailed:
		return "failed"
	case StatusNotPresent:
		return "not-present"
	default:
		return "unknown"
	}
}

// Backend executes commands and serves files for the services of a node.
// Implementations are expected to be unreliable; callers retry through pkg/invoker.
type Backend interface {
	Exec(ctx context.Context, index int, service ServiceType, cmd string) ([]byte, error)
	GetFile(ctx context.Context, index int, service ServiceType, path string) ([]byte, error)
	GetStatus(ctx context.Context, index int, service ServiceType) (RunningStatus, error)
	// ContainerName must be a pure function of (index, service).
	ContainerName(index int, service ServiceType) string
}

// Error is a transport or container failure. It is always retryable.
type Error struct {
	Op        string
	Container string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("backend %s on %s: %v", e.Op, e.Container, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(op, container string, err error) error {
	return &Error{Op: op, Container: container, Err: err}
}
