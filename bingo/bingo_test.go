/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package bingo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/secretbingo/records"
)

func TestRank(t *testing.T) {
	t.Run("revealing one character scores the matching guess", func(t *testing.T) {
		reveals := Reveals{"Aragorn": NotRevealed, "Gandalf": NotRevealed}
		bets := Bets{"bettor1": {"Aragorn": "X", "Gandalf": "Y"}}

		assert.False(t, reveals.AnyRevealed())

		reveals["Aragorn"] = "X"
		standings := Rank(bets, reveals, []string{"Aragorn", "Gandalf"})

		require.Len(t, standings, 1)
		assert.Equal(t, Standing{Code: "bettor1", Points: 1, Matched: []string{"Aragorn"}}, standings[0])
		assert.True(t, reveals.AnyRevealed())
	})

	t.Run("standings are ordered by points then code", func(t *testing.T) {
		reveals := Reveals{"Aragorn": "X", "Gandalf": "Y", "Frodo": NotRevealed, "Sam": "Z"}
		bets := Bets{
			"b": {"Aragorn": "X"},
			"a": {"Gandalf": "Y"},
			"c": {"Aragorn": "X", "Gandalf": "Y", "Frodo": NotRevealed},
			"d": {"Sam": "Z", "Aragorn": "X"},
			"e": {},
		}

		standings := Rank(bets, reveals, []string{"Gandalf", "Aragorn", "Frodo"})

		codes := make([]string, len(standings))
		for i, s := range standings {
			codes[i] = s.Code
		}
		assert.Equal(t, []string{"c", "d", "a", "b", "e"}, codes)
		assert.Equal(t, []string{"Gandalf", "Aragorn"}, standings[0].Matched)
		assert.Equal(t, []string{"Aragorn", "Sam"}, standings[1].Matched)
		assert.Zero(t, standings[4].Points)
		assert.Empty(t, standings[4].Matched)
	})
}

func TestGrid(t *testing.T) {
	grid := Grid([]string{"a", "b", "c", "d"}, 3, 2)
	assert.Equal(t, [][]string{{"a", "b", "c"}, {"d", "", ""}}, grid)

	truncated := Grid([]string{"a", "b", "c", "d"}, 1, 2)
	assert.Equal(t, [][]string{{"a"}, {"b"}}, truncated)

	assert.Nil(t, Grid([]string{"a"}, 0, 5))

	assert.Equal(t, GridRows, CardRows(15))
	assert.Equal(t, 6, CardRows(16))
}

func TestNewCode(t *testing.T) {
	a, b := NewCode(), NewCode()

	assert.Len(t, a, 32)
	assert.Regexp(t, "^[0-9a-f]{32}$", a)
	assert.NotEqual(t, a, b)
}

func TestCollections(t *testing.T) {
	t.Run("typed views survive a trip through the record store", func(t *testing.T) {
		s := records.New(records.Config{
			Schema: Schema(),
			Local:  records.NewLocal(t.TempDir()),
			Remote: records.NewMemory(),
		})
		ctx := context.Background()

		participants := Participants{Characters: []string{"Aragorn", "Gandalf"}, RealNames: []string{"X", "Y", "Z"}}
		bets := Bets{"p1": {"Aragorn": "X", "Gandalf": "Y"}}
		reveals := Reveals{"Aragorn": "X", "Gandalf": NotRevealed}
		identities := Identities{"Aragorn": {Name: "X", Photo: "x.png"}, "Gandalf": {Name: "Y"}}
		links := CodeLinks{"p1": "Alice"}

		require.True(t, s.Save(ctx, CollectionParticipants, participants.RecordSet()).OK())
		require.True(t, s.Save(ctx, CollectionBets, bets.RecordSet()).OK())
		require.True(t, s.Save(ctx, CollectionReveals, reveals.RecordSet()).OK())
		require.True(t, s.Save(ctx, CollectionIdentities, identities.RecordSet()).OK())
		require.True(t, s.Save(ctx, CollectionCodeLinks, links.RecordSet()).OK())

		set, _ := s.Load(ctx, CollectionParticipants)
		assert.Equal(t, participants, ParticipantsFrom(set))
		set, _ = s.Load(ctx, CollectionBets)
		assert.Equal(t, bets, BetsFrom(set))
		set, _ = s.Load(ctx, CollectionReveals)
		assert.Equal(t, reveals, RevealsFrom(set))
		set, _ = s.Load(ctx, CollectionIdentities)
		assert.Equal(t, identities, IdentitiesFrom(set))
		set, _ = s.Load(ctx, CollectionCodeLinks)
		assert.Equal(t, links, CodeLinksFrom(set))
	})

	t.Run("reveals default to not revealed", func(t *testing.T) {
		r := Reveals{"Aragorn": "", "Gandalf": "Y"}

		assert.Equal(t, NotRevealed, r.Current("Aragorn"))
		assert.Equal(t, NotRevealed, r.Current("Frodo"))
		assert.Equal(t, "Y", r.Current("Gandalf"))
	})

	t.Run("malformed entries are skipped", func(t *testing.T) {
		bets := BetsFrom(records.RecordSet{"p1": "not a map", "p2": map[string]any{"Aragorn": "X"}})
		assert.Equal(t, Bets{"p2": {"Aragorn": "X"}}, bets)

		participants := ParticipantsFrom(records.RecordSet{"characters": "Aragorn"})
		assert.Empty(t, participants.Characters)
	})
}
