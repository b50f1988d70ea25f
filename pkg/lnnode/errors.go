package lnnode

import (
	"fmt"
	"github.com/pkg/errors"
)

var (
	ErrNonPositiveAmount = errors.New("channel amount must be a positive number of satoshis")
	ErrExportUnsupported = errors.New("credential export is not supported for this implementation")
)

// UnsupportedImplementationError is a configuration error and is never retried.
type UnsupportedImplementationError struct {
	Kind string
}

func (e *UnsupportedImplementationError) Error() string {
	return fmt.Sprintf("unsupported LN implementation: %s", e.Kind)
}

// FileRetrievalError reports a credential file the backend could not produce.
type FileRetrievalError struct {
	Node string
	Path string
	Err  error
}

func (e *FileRetrievalError) Error() string {
	return fmt.Sprintf("retrieve %s from %s: %v", e.Path, e.Node, e.Err)
}

func (e *FileRetrievalError) Unwrap() error {
	return e.Err
}

// PeerResolutionError wraps the failure of a peer to report its own identity.
type PeerResolutionError struct {
	Peer string
	Err  error
}

func (e *PeerResolutionError) Error() string {
	return fmt.Sprintf("resolve peer %s: %v", e.Peer, e.Err)
}

func (e *PeerResolutionError) Unwrap() error {
	return e.Err
}
