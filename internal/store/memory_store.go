package store

import (
	"context"
	"sync"
	"time"

	"booklend/pkg/domain"
)

// MemoryStore keeps book records in-process. It is the reference Store
// implementation for tests and single-node deployments.
type MemoryStore struct {
	mu     sync.RWMutex
	books  map[int]domain.Book
	order  []int
	nextID int
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		books:  make(map[int]domain.Book),
		nextID: 1,
	}
}

// List returns all records in insertion order.
func (m *MemoryStore) List(_ context.Context) ([]domain.Book, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Book, 0, len(m.order))
	for _, id := range m.order {
		res = append(res, m.books[id])
	}
	return res, nil
}

// Get retrieves a book by id.
func (m *MemoryStore) Get(_ context.Context, id int) (domain.Book, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.books[id]
	return b, ok, nil
}

// Insert assigns a fresh id and version 0 and persists the record.
func (m *MemoryStore) Insert(_ context.Context, book domain.Book) (domain.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	book.ID = m.nextID
	m.nextID++
	book.Version = 0
	book.CreatedAt = now
	book.UpdatedAt = now
	m.books[book.ID] = book
	m.order = append(m.order, book.ID)
	return book, nil
}

// ConditionalUpdate applies mutate only when the stored version still
// equals expectedVersion. The whole read-check-write runs under the lock.
func (m *MemoryStore) ConditionalUpdate(_ context.Context, id int, expectedVersion int64, mutate func(domain.Book) domain.Book) (domain.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.books[id]
	if !ok {
		return domain.Book{}, ErrNotFound
	}
	if current.Version != expectedVersion {
		return domain.Book{}, ErrVersionConflict
	}
	next := mutate(current)
	// id, version and creation time are store-owned; mutators cannot touch them.
	next.ID = current.ID
	next.Version = current.Version + 1
	next.CreatedAt = current.CreatedAt
	next.UpdatedAt = time.Now().UTC()
	m.books[id] = next
	return next, nil
}
