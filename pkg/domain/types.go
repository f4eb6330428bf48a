package domain

import "time"

// Book is the single lendable unit tracked by the service. A book is
// either available or checked out; Version is the concurrency token
// guarding that transition and never leaves the process boundary.
type Book struct {
	ID            int       `json:"id"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	ISBN          string    `json:"isbn"`
	PublishedYear int       `json:"publishedYear"`
	IsAvailable   bool      `json:"isAvailable"`
	Version       int64     `json:"-"`
	CreatedAt     time.Time `json:"-"`
	UpdatedAt     time.Time `json:"-"`
}
