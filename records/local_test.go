/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package records

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_Load(t *testing.T) {
	t.Run("a missing file is an empty set", func(t *testing.T) {
		l := NewLocal(t.TempDir())

		set, err := l.Load("bets")

		require.NoError(t, err)
		assert.Equal(t, RecordSet{}, set)
		assert.False(t, l.Exists("bets"))
	})

	t.Run("an unparsable file is an empty set and an error", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "bets.json"), []byte("{nope"), 0o644))

		set, err := NewLocal(dir).Load("bets")

		assert.Error(t, err)
		assert.Equal(t, RecordSet{}, set)
	})

	t.Run("it rejects names that escape the directory", func(t *testing.T) {
		_, err := NewLocal(t.TempDir()).Load("../bets")

		assert.Error(t, err)
	})
}

func TestLocal_Save(t *testing.T) {
	dir := t.TempDir()
	l := NewLocal(dir)

	set := RecordSet{
		"characters": []any{"Aragorn", "Gandalf"},
		"real_names": []any{"Ana & João"},
	}

	require.NoError(t, l.Save("participants", set))
	assert.FileExists(t, filepath.Join(dir, "participants.json"))

	b, err := os.ReadFile(filepath.Join(dir, "participants.json"))
	require.NoError(t, err)
	assert.Equal(t, "{\n    \"characters\": [\n        \"Aragorn\",\n        \"Gandalf\"\n    ],\n    \"real_names\": [\n        \"Ana & João\"\n    ]\n}\n", string(b))

	loaded, err := l.Load("participants")
	require.NoError(t, err)
	assert.Equal(t, set, loaded)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
