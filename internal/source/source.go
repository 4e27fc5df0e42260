package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/t77yq/dashmon/internal/model"
)

// MetricSource fetches a metric snapshot for a resource kind. It is the
// external data-access collaborator: implementations may hit the
// network and fail with a TransportError. Retrying is the scheduler's
// responsibility, never the source's caller's.
type MetricSource interface {
	Fetch(ctx context.Context, kind string, filters map[string]interface{}) (*model.Snapshot, error)
}

// FetchFunc adapts a function to the MetricSource interface.
type FetchFunc func(ctx context.Context, kind string, filters map[string]interface{}) (*model.Snapshot, error)

// Fetch implements MetricSource.
func (f FetchFunc) Fetch(ctx context.Context, kind string, filters map[string]interface{}) (*model.Snapshot, error) {
	return f(ctx, kind, filters)
}

// ErrUnknownKind is returned when a source does not serve the requested
// resource kind.
var ErrUnknownKind = errors.New("unknown resource kind")

// TransportError wraps a network, timeout, or HTTP-level fetch failure.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport error during %s (status %d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
