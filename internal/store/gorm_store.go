package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"booklend/pkg/domain"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&BookModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// List returns all books in id order, which is insertion order for the
// autoincrement key.
func (s *GormStore) List(ctx context.Context) ([]domain.Book, error) {
	var models []BookModel
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Book, 0, len(models))
	for _, m := range models {
		res = append(res, bookFromModel(m))
	}
	return res, nil
}

// Get retrieves a book by id.
func (s *GormStore) Get(ctx context.Context, id int) (domain.Book, bool, error) {
	var model BookModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, err
	}
	return bookFromModel(model), true, nil
}

// Insert persists a new record; the database assigns the id.
func (s *GormStore) Insert(ctx context.Context, book domain.Book) (domain.Book, error) {
	now := time.Now().UTC()
	model := bookToModel(book)
	model.ID = 0
	model.Version = 0
	model.CreatedAt = now
	model.UpdatedAt = now
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.Book{}, err
	}
	return bookFromModel(model), nil
}

// ConditionalUpdate applies mutate only when the stored version still
// equals expectedVersion. The version guard in the WHERE clause makes the
// write atomic with respect to concurrent updates on the same id: a racing
// writer that commits first leaves RowsAffected at zero here.
func (s *GormStore) ConditionalUpdate(ctx context.Context, id int, expectedVersion int64, mutate func(domain.Book) domain.Book) (domain.Book, error) {
	var updated domain.Book
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model BookModel
		if err := tx.First(&model, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if model.Version != expectedVersion {
			return ErrVersionConflict
		}
		next := mutate(bookFromModel(model))
		res := tx.Model(&BookModel{}).
			Where("id = ? AND version = ?", id, expectedVersion).
			Updates(map[string]any{
				"title":          next.Title,
				"author":         next.Author,
				"isbn":           next.ISBN,
				"published_year": next.PublishedYear,
				"is_available":   next.IsAvailable,
				"version":        expectedVersion + 1,
				"updated_at":     time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrVersionConflict
		}
		next.ID = id
		next.Version = expectedVersion + 1
		next.CreatedAt = model.CreatedAt
		updated = next
		return nil
	})
	if err != nil {
		return domain.Book{}, err
	}
	return updated, nil
}

func bookToModel(b domain.Book) BookModel {
	return BookModel{
		ID:            b.ID,
		Title:         b.Title,
		Author:        b.Author,
		ISBN:          b.ISBN,
		PublishedYear: b.PublishedYear,
		IsAvailable:   b.IsAvailable,
		Version:       b.Version,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}

func bookFromModel(m BookModel) domain.Book {
	return domain.Book{
		ID:            m.ID,
		Title:         m.Title,
		Author:        m.Author,
		ISBN:          m.ISBN,
		PublishedYear: m.PublishedYear,
		IsAvailable:   m.IsAvailable,
		Version:       m.Version,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}
