package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"booklend/pkg/domain"
)

const (
	bookKeyPrefix = "book:"
	bookIDSeqKey  = "book:next_id"
	bookIndexKey  = "book:ids"
)

// RedisStore implements Store on Redis. Each book lives as a JSON record
// under book:<id>; conditional updates run under WATCH so a concurrent
// write to the same key aborts the transaction.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore builds a Redis-backed book store.
func NewRedisStore(addr, password string) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
	}
}

// bookRecord is the persisted JSON shape. It carries the version and
// timestamps the external Book view hides.
type bookRecord struct {
	ID            int       `json:"id"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	ISBN          string    `json:"isbn"`
	PublishedYear int       `json:"publishedYear"`
	IsAvailable   bool      `json:"isAvailable"`
	Version       int64     `json:"version"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func bookKey(id int) string { return bookKeyPrefix + strconv.Itoa(id) }

// List returns all books in insertion order, tracked by the index list.
func (s *RedisStore) List(ctx context.Context) ([]domain.Book, error) {
	ids, err := s.client.LRange(ctx, bookIndexKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	res := make([]domain.Book, 0, len(ids))
	for _, raw := range ids {
		data, err := s.client.Get(ctx, bookKeyPrefix+raw).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		var rec bookRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("decode book %s: %w", raw, err)
		}
		res = append(res, recordToDomain(rec))
	}
	return res, nil
}

// Get retrieves a book by id.
func (s *RedisStore) Get(ctx context.Context, id int) (domain.Book, bool, error) {
	data, err := s.client.Get(ctx, bookKey(id)).Bytes()
	if err == redis.Nil {
		return domain.Book{}, false, nil
	}
	if err != nil {
		return domain.Book{}, false, err
	}
	var rec bookRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.Book{}, false, fmt.Errorf("decode book %d: %w", id, err)
	}
	return recordToDomain(rec), true, nil
}

// Insert allocates an id from the sequence key and persists the record.
func (s *RedisStore) Insert(ctx context.Context, book domain.Book) (domain.Book, error) {
	id, err := s.client.Incr(ctx, bookIDSeqKey).Result()
	if err != nil {
		return domain.Book{}, err
	}
	now := time.Now().UTC()
	book.ID = int(id)
	book.Version = 0
	book.CreatedAt = now
	book.UpdatedAt = now
	data, err := json.Marshal(recordFromDomain(book))
	if err != nil {
		return domain.Book{}, err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, bookKey(book.ID), data, 0)
		pipe.RPush(ctx, bookIndexKey, strconv.Itoa(book.ID))
		return nil
	})
	if err != nil {
		return domain.Book{}, err
	}
	return book, nil
}

// ConditionalUpdate applies mutate only when the stored version still
// equals expectedVersion. The key is watched for the whole read-check-write,
// so a concurrent writer fails the EXEC and surfaces as ErrVersionConflict.
func (s *RedisStore) ConditionalUpdate(ctx context.Context, id int, expectedVersion int64, mutate func(domain.Book) domain.Book) (domain.Book, error) {
	key := bookKey(id)
	var updated domain.Book
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var rec bookRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("decode book %d: %w", id, err)
		}
		if rec.Version != expectedVersion {
			return ErrVersionConflict
		}
		next := mutate(recordToDomain(rec))
		next.ID = id
		next.Version = expectedVersion + 1
		next.CreatedAt = rec.CreatedAt
		next.UpdatedAt = time.Now().UTC()
		payload, err := json.Marshal(recordFromDomain(next))
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		if err != nil {
			return err
		}
		updated = next
		return nil
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return domain.Book{}, ErrVersionConflict
	}
	if err != nil {
		return domain.Book{}, err
	}
	return updated, nil
}

func recordFromDomain(b domain.Book) bookRecord {
	return bookRecord{
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

func recordToDomain(r bookRecord) domain.Book {
	return domain.Book{
		ID:            r.ID,
		Title:         r.Title,
		Author:        r.Author,
		ISBN:          r.ISBN,
		PublishedYear: r.PublishedYear,
		IsAvailable:   r.IsAvailable,
		Version:       r.Version,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}
