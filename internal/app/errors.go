package app

import "errors"

var (
	// ErrInvalidID indicates a non-positive book id.
	ErrInvalidID = errors.New("id must be greater than zero")
	// ErrInvalidBook indicates an absent or empty creation request.
	ErrInvalidBook = errors.New("book fields are required")
	// ErrNotFound indicates the requested book does not exist.
	ErrNotFound = errors.New("book not found")
	// ErrAlreadyCheckedOut indicates a checkout against an unavailable book.
	ErrAlreadyCheckedOut = errors.New("book is already checked out")
	// ErrAlreadyAvailable indicates a return against an available book.
	ErrAlreadyAvailable = errors.New("book is already available")
	// ErrConflict indicates the retry budget for a concurrent update race ran out.
	ErrConflict = errors.New("concurrent update conflict")
)
