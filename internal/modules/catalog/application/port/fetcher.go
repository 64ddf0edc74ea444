package port

import (
	"context"
	"errors"

	"courtsync/internal/modules/catalog/domain"
)

var (
	// ErrNotFound reports that the upstream API has no entity for the id.
	ErrNotFound = errors.New("entity not found")
	// ErrForbidden reports that the upstream API rejected the credentials.
	ErrForbidden = errors.New("entity access forbidden")
	// ErrUpstream wraps any other upstream failure; the server's error
	// message, when present, is carried in the wrapping error text.
	ErrUpstream = errors.New("upstream request failed")
)

// Fetcher loads and mutates one entity collection against the upstream REST
// API. Implementations must be safe for concurrent use.
type Fetcher[T any] interface {
	List(ctx context.Context, scope domain.Scope) ([]T, error)
	Get(ctx context.Context, id string) (T, error)
	Create(ctx context.Context, scope domain.Scope, payload T) (T, error)
	Update(ctx context.Context, scope domain.Scope, id string, payload T) (T, error)
	Delete(ctx context.Context, scope domain.Scope, id string) error
}
