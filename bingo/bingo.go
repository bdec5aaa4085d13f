/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package bingo holds the rules of the secret identity game: which
// collections exist, how their record sets map to typed values, and how
// guesses are scored against revealed identities.
package bingo

import (
	"encoding/hex"
	"slices"

	"github.com/google/uuid"

	"github.com/Seednode/secretbingo/records"
)

// Collection names.
const (
	CollectionParticipants = "participants"
	CollectionBets         = "bets"
	CollectionReveals      = "reveals"
	CollectionIdentities   = "identities"
	CollectionCodeLinks    = "code_links"
)

// NotRevealed marks a character whose identity is still secret.
const NotRevealed = "not yet revealed"

// Bingo card dimensions.
const (
	GridColumns = 3
	GridRows    = 5
)

// Schema returns the layout of every collection the game uses.
func Schema() records.Schema {
	return records.Schema{
		CollectionParticipants: records.LayoutColumnar,
		CollectionBets:         records.LayoutBets,
		CollectionReveals:      records.LayoutReveals,
		CollectionIdentities:   records.LayoutIdentities,
		CollectionCodeLinks:    records.LayoutCodeLinks,
	}
}

// NewCode returns a fresh anonymous player code.
func NewCode() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

// Grid lays items out as a card of rows by cols, padding with empty strings
// and dropping items that do not fit.
func Grid(items []string, cols, rows int) [][]string {
	if cols <= 0 || rows <= 0 {
		return nil
	}

	cells := make([]string, cols*rows)
	copy(cells, items)

	return slices.Collect(slices.Chunk(cells, cols))
}

// CardRows returns how many rows a card needs to hold n characters,
// never fewer than GridRows.
func CardRows(n int) int {
	return max(GridRows, (n+GridColumns-1)/GridColumns)
}
