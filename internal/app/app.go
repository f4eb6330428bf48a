package app

import (
	"context"
	"errors"
	"fmt"

	"booklend/internal/store"
	"booklend/pkg/domain"
)

const defaultCheckoutRetries = 3

// Config holds runtime configuration for the lending service.
type Config struct {
	Store           store.Store // injected directly by tests; overrides backend selection
	StoreBackend    string      // memory | postgres | redis
	DatabaseURL     string
	RedisAddr       string
	RedisPassword   string
	CheckoutRetries int
}

// CreateBookParams carries the boundary-validated fields for a new book.
type CreateBookParams struct {
	Title         string
	Author        string
	ISBN          string
	PublishedYear int
}

// App enforces the availability state machine over a Store. It never
// caches a record across calls; every transition decision is made against
// a fresh read.
type App struct {
	store   store.Store
	retries int
}

// New selects a store backend and wires the lending service.
func New(cfg Config) (*App, error) {
	retries := cfg.CheckoutRetries
	if retries <= 0 {
		retries = defaultCheckoutRetries
	}
	dataStore := cfg.Store
	if dataStore == nil {
		var err error
		dataStore, err = openStore(cfg)
		if err != nil {
			return nil, err
		}
	}
	return &App{store: dataStore, retries: retries}, nil
}

func openStore(cfg Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case "", "memory":
		return store.NewMemoryStore(), nil
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required for postgres backend")
		}
		s, err := store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
		return s, nil
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("redis address required for redis backend")
		}
		return store.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// List returns all books in insertion order.
func (a *App) List(ctx context.Context) ([]domain.Book, error) {
	return a.store.List(ctx)
}

// Get returns a single book. Non-positive ids are rejected before any
// store access.
func (a *App) Get(ctx context.Context, id int) (domain.Book, error) {
	if id <= 0 {
		return domain.Book{}, ErrInvalidID
	}
	book, ok, err := a.store.Get(ctx, id)
	if err != nil {
		return domain.Book{}, err
	}
	if !ok {
		return domain.Book{}, ErrNotFound
	}
	return book, nil
}

// Create persists a new book, available by default. Field constraints are
// the boundary's job; the service only refuses an empty spec.
func (a *App) Create(ctx context.Context, params CreateBookParams) (domain.Book, error) {
	if params == (CreateBookParams{}) {
		return domain.Book{}, ErrInvalidBook
	}
	return a.store.Insert(ctx, domain.Book{
		Title:         params.Title,
		Author:        params.Author,
		ISBN:          params.ISBN,
		PublishedYear: params.PublishedYear,
		IsAvailable:   true,
	})
}

// Checkout flips a book to checked out.
func (a *App) Checkout(ctx context.Context, id int) (domain.Book, error) {
	return a.transition(ctx, id, false, ErrAlreadyCheckedOut)
}

// Return flips a book back to available.
func (a *App) Return(ctx context.Context, id int) (domain.Book, error) {
	return a.transition(ctx, id, true, ErrAlreadyAvailable)
}

// transition moves a book to the target availability. Losing a version
// race retries the whole read-decide-write sequence, so the state check
// always runs against fresh data; a book already in the target state is a
// terminal stateErr, not a retry.
func (a *App) transition(ctx context.Context, id int, target bool, stateErr error) (domain.Book, error) {
	if id <= 0 {
		return domain.Book{}, ErrInvalidID
	}
	for attempt := 0; attempt < a.retries; attempt++ {
		book, ok, err := a.store.Get(ctx, id)
		if err != nil {
			return domain.Book{}, err
		}
		if !ok {
			return domain.Book{}, ErrNotFound
		}
		if book.IsAvailable == target {
			return domain.Book{}, stateErr
		}
		updated, err := a.store.ConditionalUpdate(ctx, id, book.Version, func(b domain.Book) domain.Book {
			b.IsAvailable = target
			return b
		})
		switch {
		case err == nil:
			return updated, nil
		case errors.Is(err, store.ErrVersionConflict):
			continue
		case errors.Is(err, store.ErrNotFound):
			return domain.Book{}, ErrNotFound
		default:
			return domain.Book{}, err
		}
	}
	return domain.Book{}, ErrConflict
}
