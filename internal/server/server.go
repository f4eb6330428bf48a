package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"booklend/internal/app"
	"booklend/internal/util"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App *app.App
}

// Server exposes the lending HTTP endpoints.
type Server struct {
	app *app.App
	mux *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app: cfg.App,
		mux: http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler wrapped in the middleware chain.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("booklend", util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// books
	s.mux.HandleFunc("/books", s.handleBooks)
	s.mux.HandleFunc("/books/", s.handleBookByID)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListBooks(w, r)
	case http.MethodPost:
		s.handleCreateBook(w, r)
	default:
		methodNotAllowed(w, r)
	}
}

// /books/{id}, /books/{id}/checkout or /books/{id}/return
func (s *Server) handleBookByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/books/")
	parts := strings.SplitN(path, "/", 2)
	id, err := strconv.Atoi(parts[0])
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, "id must be greater than zero")
		return
	}

	if len(parts) == 2 {
		switch parts[1] {
		case "checkout":
			s.handleCheckout(w, r, id)
		case "return":
			s.handleReturn(w, r, id)
		default:
			writeError(w, r, http.StatusNotFound, "not found")
		}
		return
	}

	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	book, err := s.app.Get(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := s.app.List(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, books)
}

type createBookRequest struct {
	Title         string `json:"title"`
	Author        string `json:"author"`
	ISBN          string `json:"isbn"`
	PublishedYear int    `json:"publishedYear"`
}

func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	var req createBookRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if msg, ok := validateCreate(&req); !ok {
		writeError(w, r, http.StatusBadRequest, msg)
		return
	}
	book, err := s.app.Create(r.Context(), app.CreateBookParams{
		Title:         req.Title,
		Author:        req.Author,
		ISBN:          req.ISBN,
		PublishedYear: req.PublishedYear,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/books/%d", book.ID))
	writeJSON(w, http.StatusCreated, book)
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request, id int) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	book, err := s.app.Checkout(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleReturn(w http.ResponseWriter, r *http.Request, id int) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	book, err := s.app.Return(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

const maxFieldLength = 100

// validateCreate enforces the creation contract before the service is
// invoked. Fields are normalized in place.
func validateCreate(req *createBookRequest) (string, bool) {
	req.Title = strings.TrimSpace(req.Title)
	req.Author = strings.TrimSpace(req.Author)
	req.ISBN = strings.TrimSpace(req.ISBN)
	switch {
	case req.Title == "":
		return "title is required", false
	case len(req.Title) > maxFieldLength:
		return "title cannot exceed 100 characters", false
	case req.Author == "":
		return "author is required", false
	case len(req.Author) > maxFieldLength:
		return "author cannot exceed 100 characters", false
	case req.ISBN == "":
		return "isbn is required", false
	case !isValidISBN(req.ISBN):
		return "isbn must contain only digits and hyphens", false
	case req.PublishedYear < 1 || req.PublishedYear > 9999:
		return "publishedYear must be a valid year", false
	}
	return "", true
}

func isValidISBN(isbn string) bool {
	for _, r := range isbn {
		if (r < '0' || r > '9') && r != '-' {
			return false
		}
	}
	return true
}

// writeDomainError maps service failures to status codes. Expected domain
// outcomes keep their message; anything else is an opaque 500 carrying
// only the request id.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, app.ErrInvalidID), errors.Is(err, app.ErrInvalidBook):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrAlreadyCheckedOut), errors.Is(err, app.ErrAlreadyAvailable):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	default:
		slog.Error("unhandled error",
			"err", err,
			"path", r.URL.Path,
			"request_id", util.RequestIDFromRequest(r),
		)
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      errorCodeForBook(status, msg),
		RequestID: util.RequestIDFromRequest(r),
	})
}

func errorCodeForBook(status int, msg string) string {
	message := strings.ToLower(strings.TrimSpace(msg))
	switch {
	case message == "book not found":
		return "BOOK_NOT_FOUND"
	case message == "book is already checked out":
		return "BOOK_ALREADY_CHECKED_OUT"
	case message == "book is already available":
		return "BOOK_ALREADY_AVAILABLE"
	case message == "id must be greater than zero":
		return "BOOK_INVALID_ID"
	case message == "concurrent update conflict":
		return "BOOK_CHECKOUT_CONFLICT"
	case message == "invalid json body":
		return "BOOK_INVALID_REQUEST"
	case message == "method not allowed":
		return "SYSTEM_METHOD_NOT_ALLOWED"
	case message == "not found":
		return "SYSTEM_NOT_FOUND"
	}

	switch status {
	case http.StatusBadRequest:
		return "BOOK_INVALID_REQUEST"
	case http.StatusNotFound:
		return "BOOK_NOT_FOUND"
	case http.StatusConflict:
		return "BOOK_CHECKOUT_CONFLICT"
	case http.StatusMethodNotAllowed:
		return "SYSTEM_METHOD_NOT_ALLOWED"
	default:
		if status >= http.StatusInternalServerError {
			return "SYSTEM_INTERNAL_ERROR"
		}
		return "REQUEST_ERROR"
	}
}
