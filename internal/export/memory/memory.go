// Package memory is an in-process BillWriter for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"accounting/internal/core"
	"accounting/internal/export"
)

var _ export.BillWriter = (*Store)(nil)

type Store struct {
	mu   sync.Mutex
	rows [][]any
}

func New() *Store {
	return &Store{}
}

// AppendBills stores one row per bill, writing the header first on an empty
// sheet, and returns a synthetic range reference.
func (s *Store) AppendBills(_ context.Context, bills []core.Bill) (string, error) {
	if len(bills) == 0 {
		return "", nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.rows) == 0 {
		header := make([]any, len(export.Header))
		for i, h := range export.Header {
			header[i] = h
		}
		s.rows = append(s.rows, header)
	}
	first := len(s.rows) + 1
	for _, b := range bills {
		s.rows = append(s.rows, export.Row(b))
	}
	return fmt.Sprintf("mem!A%d:H%d", first, len(s.rows)), nil
}

// Rows returns a copy of everything written so far, header included.
func (s *Store) Rows() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]any, len(s.rows))
	copy(out, s.rows)
	return out
}
