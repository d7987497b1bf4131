package rpc

import (
	"errors"
	"fmt"

	"github.com/avickers/tempo/internal/storage"
)

// ErrDaemonUnavailable indicates that no daemon could be reached on the
// socket. The factory falls back to direct storage on this error.
var ErrDaemonUnavailable = errors.New("daemon unavailable")

// TransportError wraps a connection-level failure so callers can tell a
// broken transport apart from a storage error the daemon reported.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("rpc %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// codeFor classifies a storage error for the wire.
func codeFor(err error) string {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, storage.ErrIntegrity):
		return CodeIntegrity
	default:
		return CodeInternal
	}
}

// errorFor reverses codeFor on the client side, keeping the daemon's
// message as context around the sentinel.
func errorFor(code, msg string) error {
	switch code {
	case CodeNotFound:
		return fmt.Errorf("%s: %w", msg, storage.ErrNotFound)
	case CodeIntegrity:
		return fmt.Errorf("%s: %w", msg, storage.ErrIntegrity)
	default:
		return errors.New(msg)
	}
}
