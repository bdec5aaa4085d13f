/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package bingo

import (
	"cmp"
	"slices"
)

// Standing is one player's score.
type Standing struct {
	Code    string
	Points  int
	Matched []string
}

// Rank scores every player in bets: one point per revealed character whose
// guess names the revealed person. Standings are ordered by points, then by
// code. Matched characters follow the order of characters, with revealed
// characters missing from it appended in name order.
func Rank(bets Bets, reveals Reveals, characters []string) []Standing {
	order := slices.Clone(characters)

	var extra []string
	for character := range reveals {
		if !slices.Contains(order, character) {
			extra = append(extra, character)
		}
	}
	slices.Sort(extra)
	order = append(order, extra...)

	standings := make([]Standing, 0, len(bets))
	for code, guesses := range bets {
		s := Standing{Code: code}

		for _, character := range order {
			name, ok := reveals.Revealed(character)
			if !ok || guesses[character] != name {
				continue
			}
			s.Points++
			s.Matched = append(s.Matched, character)
		}

		standings = append(standings, s)
	}

	slices.SortFunc(standings, func(a, b Standing) int {
		if c := cmp.Compare(b.Points, a.Points); c != 0 {
			return c
		}
		return cmp.Compare(a.Code, b.Code)
	})

	return standings
}

// Medal returns the marker shown next to the given 1-based place.
func Medal(place int) string {
	switch place {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	default:
		return "🔹"
	}
}
