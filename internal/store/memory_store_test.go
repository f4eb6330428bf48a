package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"booklend/pkg/domain"
)

func testBook(title string) domain.Book {
	return domain.Book{
		Title:         title,
		Author:        "Frank Herbert",
		ISBN:          "978-0441013593",
		PublishedYear: 1965,
		IsAvailable:   true,
	}
}

func TestMemoryStoreInsertAssignsSequentialIDs(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first, err := s.Insert(ctx, testBook("Dune"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	second, err := s.Insert(ctx, testBook("Dune Messiah"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	if first.ID != 1 || second.ID != 2 {
		t.Fatalf("expected ids 1 and 2, got %d and %d", first.ID, second.ID)
	}
	if first.Version != 0 || second.Version != 0 {
		t.Fatalf("expected fresh records at version 0, got %d and %d", first.Version, second.Version)
	}
	if first.CreatedAt.IsZero() || first.UpdatedAt.IsZero() {
		t.Fatalf("expected timestamps to be set on insert")
	}
}

func TestMemoryStoreGetRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	inserted, err := s.Insert(ctx, testBook("Dune"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, ok, err := s.Get(ctx, inserted.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatalf("expected book %d to exist", inserted.ID)
	}
	if got != inserted {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, inserted)
	}
}

func TestMemoryStoreGetMissing(t *testing.T) {
	s := NewMemoryStore()

	_, ok, err := s.Get(context.Background(), 42)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatalf("expected missing book to report ok=false")
	}
}

func TestMemoryStoreListPreservesInsertionOrder(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	titles := []string{"Dune", "Dune Messiah", "Children of Dune"}

	for _, title := range titles {
		if _, err := s.Insert(ctx, testBook(title)); err != nil {
			t.Fatalf("insert %q: %v", title, err)
		}
	}

	books, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(books) != len(titles) {
		t.Fatalf("expected %d books, got %d", len(titles), len(books))
	}
	for i, title := range titles {
		if books[i].Title != title {
			t.Fatalf("position %d: got %q want %q", i, books[i].Title, title)
		}
	}
}

func TestMemoryStoreListEmpty(t *testing.T) {
	s := NewMemoryStore()

	books, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if books == nil {
		t.Fatalf("expected empty slice, got nil")
	}
	if len(books) != 0 {
		t.Fatalf("expected no books, got %d", len(books))
	}
}

func TestMemoryStoreConditionalUpdateBumpsVersion(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	inserted, err := s.Insert(ctx, testBook("Dune"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	updated, err := s.ConditionalUpdate(ctx, inserted.ID, inserted.Version, func(b domain.Book) domain.Book {
		b.IsAvailable = false
		return b
	})
	if err != nil {
		t.Fatalf("conditional update: %v", err)
	}
	if updated.IsAvailable {
		t.Fatalf("expected book to be checked out")
	}
	if updated.Version != inserted.Version+1 {
		t.Fatalf("expected version %d, got %d", inserted.Version+1, updated.Version)
	}

	got, ok, err := s.Get(ctx, inserted.ID)
	if err != nil || !ok {
		t.Fatalf("get after update: ok=%v err=%v", ok, err)
	}
	if got != updated {
		t.Fatalf("persisted record mismatch: got %+v want %+v", got, updated)
	}
}

func TestMemoryStoreConditionalUpdateStaleVersion(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	inserted, err := s.Insert(ctx, testBook("Dune"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := s.ConditionalUpdate(ctx, inserted.ID, 0, func(b domain.Book) domain.Book {
		b.IsAvailable = false
		return b
	}); err != nil {
		t.Fatalf("first update: %v", err)
	}

	_, err = s.ConditionalUpdate(ctx, inserted.ID, 0, func(b domain.Book) domain.Book {
		b.IsAvailable = false
		return b
	})
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict for stale version, got %v", err)
	}

	got, _, err := s.Get(ctx, inserted.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Version != 1 {
		t.Fatalf("losing update must not advance the record, version=%d", got.Version)
	}
}

func TestMemoryStoreConditionalUpdateMissing(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.ConditionalUpdate(context.Background(), 42, 0, func(b domain.Book) domain.Book {
		return b
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreConditionalUpdateGuardsStoreOwnedFields(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	inserted, err := s.Insert(ctx, testBook("Dune"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	updated, err := s.ConditionalUpdate(ctx, inserted.ID, 0, func(b domain.Book) domain.Book {
		b.ID = 99
		b.Version = 42
		b.IsAvailable = false
		return b
	})
	if err != nil {
		t.Fatalf("conditional update: %v", err)
	}
	if updated.ID != inserted.ID {
		t.Fatalf("mutator must not change id: got %d", updated.ID)
	}
	if updated.Version != 1 {
		t.Fatalf("mutator must not set version: got %d", updated.Version)
	}
	if !updated.CreatedAt.Equal(inserted.CreatedAt) {
		t.Fatalf("creation time must survive updates")
	}
}

func TestMemoryStoreConcurrentConditionalUpdateSingleWinner(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	inserted, err := s.Insert(ctx, testBook("Dune"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	const writers = 8
	start := make(chan struct{})
	results := make(chan error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := s.ConditionalUpdate(ctx, inserted.ID, 0, func(b domain.Book) domain.Book {
				b.IsAvailable = false
				return b
			})
			results <- err
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	var wins, conflicts int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrVersionConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d (conflicts=%d)", wins, conflicts)
	}

	got, _, err := s.Get(ctx, inserted.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Version != 1 || got.IsAvailable {
		t.Fatalf("expected single applied update, got version=%d available=%v", got.Version, got.IsAvailable)
	}
}
