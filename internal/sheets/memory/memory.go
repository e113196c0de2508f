package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Store is an in-memory sheet used by tests and local development.
type Store struct {
	mu     sync.Mutex
	header []string
	rows   [][]any
}

func New() *Store {
	return &Store{}
}

// AppendRows stores the rows and returns a synthetic range reference.
func (s *Store) AppendRows(_ context.Context, rows [][]any) (string, error) {
	if len(rows) == 0 {
		return "", errors.New("no rows to append")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	first := len(s.rows) + 1
	s.rows = append(s.rows, rows...)
	return fmt.Sprintf("mem:%d-%d", first, len(s.rows)), nil
}

// EnsureHeader records the header once.
func (s *Store) EnsureHeader(_ context.Context, header []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.header == nil {
		s.header = append([]string(nil), header...)
	}
	return nil
}

// Rows returns a copy of everything appended so far.
func (s *Store) Rows() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]any, len(s.rows))
	for i, r := range s.rows {
		out[i] = append([]any(nil), r...)
	}
	return out
}

// Header returns the recorded header row, or nil.
func (s *Store) Header() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.header...)
}
