package consumption

import "context"

// Store persists consumption records.
type Store interface {
	// Driver names the backend for logs and metrics ("sqlite", "remote").
	Driver() string
	Create(ctx context.Context, r Record) error
	Get(ctx context.Context, id string) (Record, error)
	List(ctx context.Context, f Filter) ([]Record, error)
	Update(ctx context.Context, r Record) error
	Delete(ctx context.Context, id string) error
}
