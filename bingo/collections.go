/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package bingo

import (
	"fmt"

	"github.com/Seednode/secretbingo/records"
)

// Participants columns.
const (
	columnCharacters = "characters"
	columnRealNames  = "real_names"
)

// Participants lists the characters on the card and the real people who
// may be behind them.
type Participants struct {
	Characters []string
	RealNames  []string
}

func ParticipantsFrom(set records.RecordSet) Participants {
	return Participants{
		Characters: stringList(set[columnCharacters]),
		RealNames:  stringList(set[columnRealNames]),
	}
}

func (p Participants) RecordSet() records.RecordSet {
	return records.RecordSet{
		columnCharacters: anyList(p.Characters),
		columnRealNames:  anyList(p.RealNames),
	}
}

// Bets maps a player code to that player's guess for each character.
type Bets map[string]map[string]string

func BetsFrom(set records.RecordSet) Bets {
	bets := make(Bets, len(set))

	for code, v := range set {
		guesses, ok := v.(map[string]any)
		if !ok {
			continue
		}

		m := make(map[string]string, len(guesses))
		for character, name := range guesses {
			m[character] = stringValue(name)
		}
		bets[code] = m
	}

	return bets
}

func (b Bets) RecordSet() records.RecordSet {
	set := make(records.RecordSet, len(b))

	for code, guesses := range b {
		m := make(map[string]any, len(guesses))
		for character, name := range guesses {
			m[character] = name
		}
		set[code] = m
	}

	return set
}

// Reveals maps a character to the real person behind it, or NotRevealed.
type Reveals map[string]string

func RevealsFrom(set records.RecordSet) Reveals {
	reveals := make(Reveals, len(set))
	for character, name := range set {
		reveals[character] = stringValue(name)
	}
	return reveals
}

func (r Reveals) RecordSet() records.RecordSet {
	set := make(records.RecordSet, len(r))
	for character, name := range r {
		set[character] = name
	}
	return set
}

// Revealed returns the real person behind character once it is revealed.
func (r Reveals) Revealed(character string) (string, bool) {
	name, ok := r[character]
	if !ok || name == "" || name == NotRevealed {
		return "", false
	}
	return name, true
}

func (r Reveals) AnyRevealed() bool {
	for character := range r {
		if _, ok := r.Revealed(character); ok {
			return true
		}
	}
	return false
}

// Current returns the reveal for character, defaulting to NotRevealed.
func (r Reveals) Current(character string) string {
	if name, ok := r.Revealed(character); ok {
		return name
	}
	return NotRevealed
}

type Identity struct {
	Name  string
	Photo string
}

// Identities maps a character to the identity shown once it is guessed.
type Identities map[string]Identity

func IdentitiesFrom(set records.RecordSet) Identities {
	identities := make(Identities, len(set))

	for character, v := range set {
		info, ok := v.(map[string]any)
		if !ok {
			continue
		}
		identities[character] = Identity{
			Name:  stringValue(info["name"]),
			Photo: stringValue(info["photo"]),
		}
	}

	return identities
}

func (i Identities) RecordSet() records.RecordSet {
	set := make(records.RecordSet, len(i))
	for character, id := range i {
		info := map[string]any{}
		if id.Name != "" {
			info["name"] = id.Name
		}
		if id.Photo != "" {
			info["photo"] = id.Photo
		}
		set[character] = info
	}
	return set
}

// CodeLinks maps a player code to the name of the person who holds it.
type CodeLinks map[string]string

func CodeLinksFrom(set records.RecordSet) CodeLinks {
	links := make(CodeLinks, len(set))
	for code, name := range set {
		if s := stringValue(name); s != "" {
			links[code] = s
		}
	}
	return links
}

func (c CodeLinks) RecordSet() records.RecordSet {
	set := make(records.RecordSet, len(c))
	for code, name := range c {
		set[code] = name
	}
	return set
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func stringList(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			out = append(out, stringValue(e))
		}
		return out
	default:
		return nil
	}
}

func anyList(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
