/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package records

import (
	"context"
	"slices"
	"sync"
)

// Operations that Memory.Fail can break.
const (
	OpConnect = "connect"
	OpOpen    = "open"
	OpRows    = "rows"
	OpClear   = "clear"
	OpWrite   = "write"
)

// Memory is an in-process Connector and Container. Writes overlay rows from
// the top-left cell like a spreadsheet range update does.
type Memory struct {
	mu       sync.Mutex
	sheets   map[string][][]string
	failures map[string]error
}

func NewMemory() *Memory {
	return &Memory{
		sheets:   make(map[string][][]string),
		failures: make(map[string]error),
	}
}

// Fail makes every later call of op return err. A nil err heals op.
func (m *Memory) Fail(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

// Put replaces the rows of the named sheet, creating it.
func (m *Memory) Put(name string, rows [][]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sheets[name] = copyRows(rows)
}

// Get returns a copy of the rows of the named sheet.
func (m *Memory) Get(name string) ([][]string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, ok := m.sheets[name]
	return copyRows(rows), ok
}

func (m *Memory) Connect(context.Context) (Container, error) {
	if err := m.failure(OpConnect); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Memory) Sheet(_ context.Context, name string, create bool, header []string) (Sheet, bool, error) {
	if err := m.failure(OpOpen); err != nil {
		return nil, false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sheets[name]; ok {
		return &memorySheet{m: m, name: name}, false, nil
	}
	if !create {
		return nil, false, ErrSheetNotFound
	}

	var rows [][]string
	if len(header) > 0 {
		rows = [][]string{slices.Clone(header)}
	}
	m.sheets[name] = rows

	return &memorySheet{m: m, name: name}, true, nil
}

func (m *Memory) failure(op string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.failures[op]
}

type memorySheet struct {
	m    *Memory
	name string
}

func (s *memorySheet) Rows(context.Context) ([][]string, error) {
	if err := s.m.failure(OpRows); err != nil {
		return nil, err
	}

	rows, _ := s.m.Get(s.name)
	return rows, nil
}

func (s *memorySheet) Clear(context.Context) error {
	if err := s.m.failure(OpClear); err != nil {
		return err
	}

	s.m.Put(s.name, nil)
	return nil
}

func (s *memorySheet) Write(_ context.Context, rows [][]string) error {
	if err := s.m.failure(OpWrite); err != nil {
		return err
	}

	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	current := s.m.sheets[s.name]
	for i, row := range rows {
		if i >= len(current) {
			current = append(current, slices.Clone(row))
			continue
		}
		merged := slices.Clone(current[i])
		for j, v := range row {
			if j >= len(merged) {
				merged = append(merged, v)
				continue
			}
			merged[j] = v
		}
		current[i] = merged
	}
	s.m.sheets[s.name] = current

	return nil
}

func copyRows(rows [][]string) [][]string {
	if rows == nil {
		return nil
	}

	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = slices.Clone(row)
	}

	return out
}
