package store

import (
	"context"
	"errors"

	"booklend/pkg/domain"
)

var (
	// ErrNotFound indicates no book exists under the requested id.
	ErrNotFound = errors.New("book not found")
	// ErrVersionConflict indicates a conditional update presented a stale version.
	ErrVersionConflict = errors.New("version conflict")
)

// Store defines persistence operations for book records.
//
// ConditionalUpdate is the concurrency primitive: the mutation is applied
// atomically and only when the stored version still equals expectedVersion,
// so two concurrent updates against the same id and version yield exactly
// one success and one ErrVersionConflict. Any error other than the
// sentinels above is a storage fault and propagates unchanged.
type Store interface {
	List(ctx context.Context) ([]domain.Book, error)
	Get(ctx context.Context, id int) (domain.Book, bool, error)
	Insert(ctx context.Context, book domain.Book) (domain.Book, error)
	ConditionalUpdate(ctx context.Context, id int, expectedVersion int64, mutate func(domain.Book) domain.Book) (domain.Book, error)
}
