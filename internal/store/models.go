package store

import "time"

// BookModel is the GORM representation of a book record.
type BookModel struct {
	ID            int       `gorm:"primaryKey;autoIncrement"`
	Title         string    `gorm:"size:100;not null"`
	Author        string    `gorm:"size:100;not null"`
	ISBN          string    `gorm:"not null"`
	PublishedYear int       `gorm:"not null"`
	IsAvailable   bool      `gorm:"not null"`
	Version       int64     `gorm:"not null"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

// TableName keeps the table named after the entity.
func (BookModel) TableName() string { return "books" }
