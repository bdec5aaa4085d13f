/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package records loads and saves named collections of game data from a
// spreadsheet, one tab per collection, falling back to local JSON files when
// the spreadsheet is unconfigured or unreachable.
package records

import (
	"context"
	"errors"
)

// RecordSet is the decoded form of a collection. Values are JSON-like:
// string, float64, bool, nil, []any or map[string]any.
type RecordSet map[string]any

// ErrNotConfigured is returned by a Connector that has no credentials.
// It selects the local backend and is not reported as a failure.
var ErrNotConfigured = errors.New("remote store not configured")

// ErrSheetNotFound is returned by a Container when a sheet is missing and
// creation was not requested.
var ErrSheetNotFound = errors.New("sheet not found")

// Connector dials the remote resource.
type Connector interface {
	Connect(ctx context.Context) (Container, error)
}

// Container is one remote spreadsheet holding a sheet per collection.
type Container interface {
	// Sheet opens the named sheet. When create is set and the sheet is
	// missing, it is created with header as its first row and created
	// reports true.
	Sheet(ctx context.Context, name string, create bool, header []string) (sheet Sheet, created bool, err error)
}

// Sheet is a single tab of rows of text. Row 0 is the header.
type Sheet interface {
	Rows(ctx context.Context) ([][]string, error)
	Clear(ctx context.Context) error
	Write(ctx context.Context, rows [][]string) error
}

// Source names the backend that served a call.
type Source int

const (
	SourceLocal Source = iota
	SourceRemote
)

func (s Source) String() string {
	if s == SourceRemote {
		return "remote"
	}
	return "local"
}

// Result describes the outcome of a store call.
//
// Degraded is set when the remote resource was available but failed and the
// call was served from the local files instead. Err is the error of the
// backend that finally served the call, if any.
type Result struct {
	Source   Source
	Degraded bool
	Err      error
}

func (r Result) OK() bool {
	return r.Err == nil
}

func (r Result) outcome() string {
	switch {
	case r.Err != nil:
		return "failed"
	case r.Degraded:
		return "degraded"
	default:
		return "ok"
	}
}
