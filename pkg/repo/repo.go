// Package repo provides a small generic repository abstraction over
// Neo4j, used by the statute graph for node-level reads.
package repo

import "context"

// ListOpts paginates List calls.
type ListOpts struct {
	Offset int
	Limit  int
}

// Repository is the generic read/write contract for one node label.
type Repository[T any, ID comparable] interface {
	Get(ctx context.Context, id ID) (T, error)
	List(ctx context.Context, opts ListOpts) ([]T, error)
	Save(ctx context.Context, entity T) error
	Delete(ctx context.Context, id ID) error
}
