/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package records

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSchema = Schema{
	"participants": LayoutColumnar,
	"bets":         LayoutBets,
	"code_links":   LayoutCodeLinks,
	"identities":   LayoutIdentities,
	"reveals":      LayoutReveals,
}

var errBoom = errors.New("boom")

func newTestStore(t *testing.T, remote Connector, ttl time.Duration) (*Store, *Local) {
	t.Helper()

	local := NewLocal(t.TempDir())
	s := New(Config{
		Schema:   testSchema,
		Local:    local,
		Remote:   remote,
		CacheTTL: ttl,
		Logf:     t.Logf,
	})

	return s, local
}

func layoutSamples() map[string]RecordSet {
	return map[string]RecordSet{
		"participants": {"characters": []any{"Aragorn", "Gandalf"}, "real_names": []any{"X", "Y"}},
		"bets":         {"p1": map[string]any{"Aragorn": "X", "Gandalf": "Y"}},
		"code_links":   {"p1": "Alice"},
		"identities":   {"Aragorn": map[string]any{"name": "X", "photo": "x.png"}},
		"reveals":      {"Aragorn": "X", "Gandalf": "not yet revealed"},
		"settings":     {"rounds": float64(3), "title": "Bingo"},
	}
}

func TestStore_LocalOnly(t *testing.T) {
	for _, remote := range []Connector{nil, NewSheets(SheetsConfig{})} {
		s, local := newTestStore(t, remote, 0)
		ctx := context.Background()

		assert.Nil(t, s.Connect(ctx))

		for name, set := range layoutSamples() {
			res := s.Save(ctx, name, set)
			require.True(t, res.OK(), name)
			assert.Equal(t, SourceLocal, res.Source)
			assert.False(t, res.Degraded)

			direct, err := local.Load(name)
			require.NoError(t, err)
			assert.Equal(t, set, direct, name)

			loaded, res := s.Load(ctx, name)
			assert.Equal(t, Result{Source: SourceLocal}, res)
			assert.Equal(t, set, loaded, name)
		}

		missing, res := s.Load(ctx, "nothing")
		assert.True(t, res.OK())
		assert.Equal(t, RecordSet{}, missing)
	}
}

func TestStore_Remote(t *testing.T) {
	t.Run("save then load returns what was saved for every layout", func(t *testing.T) {
		mem := NewMemory()
		s, local := newTestStore(t, mem, 0)
		ctx := context.Background()

		for name, set := range layoutSamples() {
			require.Equal(t, Result{Source: SourceRemote}, s.Save(ctx, name, set), name)

			loaded, res := s.Load(ctx, name)
			assert.Equal(t, Result{Source: SourceRemote}, res)
			assert.Equal(t, set, loaded, name)
			assert.False(t, local.Exists(name))
		}

		rows, ok := mem.Get("bets")
		require.True(t, ok)
		assert.Equal(t, [][]string{
			{"ID", "Character", "Person"},
			{"p1", "Aragorn", "X"},
			{"p1", "Gandalf", "Y"},
		}, rows)
	})

	t.Run("a missing sheet is created with the default header", func(t *testing.T) {
		mem := NewMemory()
		s, _ := newTestStore(t, mem, 0)

		set, res := s.Load(context.Background(), "reveals")

		assert.True(t, res.OK())
		assert.Equal(t, RecordSet{}, set)
		rows, ok := mem.Get("reveals")
		require.True(t, ok)
		assert.Equal(t, [][]string{{"key", "value"}}, rows)
	})

	t.Run("an empty sheet is seeded once from the local file", func(t *testing.T) {
		mem := NewMemory()
		s, local := newTestStore(t, mem, 0)
		ctx := context.Background()

		seed := RecordSet{"Aragorn": "not yet revealed", "Gandalf": "not yet revealed"}
		require.NoError(t, local.Save("reveals", seed))

		set, res := s.Load(ctx, "reveals")
		assert.Equal(t, Result{Source: SourceRemote}, res)
		assert.Equal(t, seed, set)

		rows, _ := mem.Get("reveals")
		assert.Len(t, rows, 3)

		require.NoError(t, os.Remove(local.Path("reveals")))

		again, res := s.Load(ctx, "reveals")
		assert.Equal(t, Result{Source: SourceRemote}, res)
		assert.Equal(t, seed, again)
	})

	t.Run("a declared layout reads a sheet written as key-value", func(t *testing.T) {
		mem := NewMemory()
		mem.Put("bets", [][]string{{"key", "value"}, {"p1", `{"Aragorn":"X"}`}})
		s, _ := newTestStore(t, mem, 0)

		set, _ := s.Load(context.Background(), "bets")

		assert.Equal(t, RecordSet{"p1": map[string]any{"Aragorn": "X"}}, set)
	})
}

func TestStore_Degraded(t *testing.T) {
	for _, op := range []string{OpOpen, OpRows} {
		t.Run("load falls back to the local file when "+op+" fails", func(t *testing.T) {
			mem := NewMemory()
			s, local := newTestStore(t, mem, time.Minute)
			ctx := context.Background()

			require.NoError(t, local.Save("bets", RecordSet{"p1": map[string]any{"Aragorn": "X"}}))
			mem.Fail(op, errBoom)

			set, res := s.Load(ctx, "bets")

			assert.True(t, res.OK())
			assert.True(t, res.Degraded)
			assert.Equal(t, SourceLocal, res.Source)
			assert.Equal(t, RecordSet{"p1": map[string]any{"Aragorn": "X"}}, set)

			mem.Fail(op, nil)
			mem.Put("bets", [][]string{{"ID", "Character", "Person"}, {"p2", "Gandalf", "Y"}})

			set, res = s.Load(ctx, "bets")
			assert.Equal(t, Result{Source: SourceRemote}, res)
			assert.Equal(t, RecordSet{"p2": map[string]any{"Gandalf": "Y"}}, set)
		})
	}

	for _, op := range []string{OpOpen, OpClear, OpWrite} {
		t.Run("save falls back to the local file when "+op+" fails", func(t *testing.T) {
			mem := NewMemory()
			s, local := newTestStore(t, mem, 0)
			mem.Fail(op, errBoom)

			set := RecordSet{"c1": "Alice"}
			res := s.Save(context.Background(), "code_links", set)

			assert.True(t, res.OK())
			assert.True(t, res.Degraded)
			assert.Equal(t, SourceLocal, res.Source)

			direct, err := local.Load("code_links")
			require.NoError(t, err)
			assert.Equal(t, set, direct)
		})
	}

	t.Run("the fallback's own failure is reported", func(t *testing.T) {
		mem := NewMemory()
		mem.Fail(OpWrite, errBoom)

		file, err := os.CreateTemp(t.TempDir(), "not-a-dir")
		require.NoError(t, err)
		require.NoError(t, file.Close())

		s := New(Config{Schema: testSchema, Local: NewLocal(file.Name()), Remote: mem})
		res := s.Save(context.Background(), "reveals", RecordSet{"Aragorn": "X"})

		assert.False(t, res.OK())
		assert.True(t, res.Degraded)
	})
}

func TestStore_Connect(t *testing.T) {
	mem := NewMemory()
	mem.Fail(OpConnect, errBoom)

	s, _ := newTestStore(t, mem, 0)
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	assert.Nil(t, s.Connect(ctx))

	mem.Fail(OpConnect, nil)
	assert.Nil(t, s.Connect(ctx), "a failed dial is not retried before the cooldown")

	now = now.Add(DefaultReconnectAfter)
	assert.NotNil(t, s.Connect(ctx))

	mem.Fail(OpConnect, errBoom)
	assert.NotNil(t, s.Connect(ctx), "a live handle is kept")
}

func TestStore_ConnectLogsOnce(t *testing.T) {
	var lines []string
	s := New(Config{
		Local:  NewLocal(t.TempDir()),
		Remote: NewMemory(),
		Logf: func(format string, args ...any) {
			lines = append(lines, fmt.Sprintf(format, args...))
		},
	})
	ctx := context.Background()

	require.NotNil(t, s.Connect(ctx))
	require.NotNil(t, s.Connect(ctx))
	s.Load(ctx, "bets")

	assert.Equal(t, []string{"STORE: Connected to remote store"}, lines)
}

func TestStore_Cache(t *testing.T) {
	mem := NewMemory()
	reg := prometheus.NewRegistry()
	s := New(Config{
		Schema:   testSchema,
		Local:    NewLocal(t.TempDir()),
		Remote:   mem,
		CacheTTL: time.Minute,
		Metrics:  NewMetrics("test", reg),
	})
	ctx := context.Background()

	mem.Put("code_links", [][]string{{"ID", "Responsible"}, {"c1", "Alice"}})

	first, _ := s.Load(ctx, "code_links")
	assert.Equal(t, RecordSet{"c1": "Alice"}, first)

	first["c1"] = "Mallory"
	mem.Put("code_links", [][]string{{"ID", "Responsible"}, {"c1", "Bob"}})

	cached, res := s.Load(ctx, "code_links")
	assert.Equal(t, SourceRemote, res.Source)
	assert.Equal(t, RecordSet{"c1": "Alice"}, cached, "cached sets are copies and survive remote edits until the TTL")

	require.True(t, s.Save(ctx, "code_links", RecordSet{"c1": "Carol"}).OK())

	fresh, _ := s.Load(ctx, "code_links")
	assert.Equal(t, RecordSet{"c1": "Carol"}, fresh, "a save invalidates the cached collection")

	assert.Equal(t, float64(1), testutil.ToFloat64(s.metrics.cache.WithLabelValues("hit")))
	assert.Equal(t, float64(2), testutil.ToFloat64(s.metrics.cache.WithLabelValues("miss")))
	assert.Equal(t, float64(1), testutil.ToFloat64(s.metrics.operations.WithLabelValues("save", "code_links", "remote", "ok")))
}

// pausedMemory stops inside the first Rows call, after the rows were read,
// until release is closed.
type pausedMemory struct {
	*Memory
	read    chan struct{}
	release chan struct{}
	once    sync.Once
}

func (m *pausedMemory) Connect(ctx context.Context) (Container, error) {
	if _, err := m.Memory.Connect(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *pausedMemory) Sheet(ctx context.Context, name string, create bool, header []string) (Sheet, bool, error) {
	sheet, created, err := m.Memory.Sheet(ctx, name, create, header)
	if err != nil {
		return nil, created, err
	}
	return &pausedSheet{Sheet: sheet, m: m}, created, nil
}

type pausedSheet struct {
	Sheet
	m *pausedMemory
}

func (s *pausedSheet) Rows(ctx context.Context) ([][]string, error) {
	rows, err := s.Sheet.Rows(ctx)
	s.m.once.Do(func() {
		close(s.m.read)
		<-s.m.release
	})
	return rows, err
}

func TestStore_CacheRacingSave(t *testing.T) {
	mem := &pausedMemory{
		Memory:  NewMemory(),
		read:    make(chan struct{}),
		release: make(chan struct{}),
	}
	mem.Put("reveals", [][]string{{"Character", "Person"}, {"Aragorn", "old"}})

	s, _ := newTestStore(t, mem, time.Minute)
	ctx := context.Background()

	loaded := make(chan RecordSet, 1)
	go func() {
		set, _ := s.Load(ctx, "reveals")
		loaded <- set
	}()

	<-mem.read

	res := s.Save(ctx, "reveals", RecordSet{"Aragorn": "new"})
	require.Equal(t, Result{Source: SourceRemote}, res)

	close(mem.release)
	assert.Equal(t, RecordSet{"Aragorn": "old"}, <-loaded)

	set, _ := s.Load(ctx, "reveals")
	assert.Equal(t, RecordSet{"Aragorn": "new"}, set, "a read that raced a save is not cached")
}

func TestStore_Update(t *testing.T) {
	t.Run("concurrent updates of one collection all land", func(t *testing.T) {
		s, _ := newTestStore(t, NewMemory(), time.Minute)
		ctx := context.Background()

		var wg sync.WaitGroup
		for i := range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res := s.Update(ctx, "code_links", func(set RecordSet) error {
					set[fmt.Sprintf("c%02d", i)] = fmt.Sprintf("player %d", i)
					return nil
				})
				assert.True(t, res.OK())
			}()
		}
		wg.Wait()

		set, _ := s.Load(ctx, "code_links")
		assert.Len(t, set, 20)
	})

	t.Run("nothing is saved when fn fails", func(t *testing.T) {
		s, local := newTestStore(t, nil, 0)
		ctx := context.Background()
		require.NoError(t, local.Save("reveals", RecordSet{"Aragorn": "X"}))

		res := s.Update(ctx, "reveals", func(set RecordSet) error {
			set["Aragorn"] = "Y"
			return errBoom
		})

		assert.ErrorIs(t, res.Err, errBoom)
		set, _ := s.Load(ctx, "reveals")
		assert.Equal(t, RecordSet{"Aragorn": "X"}, set)
	})

	t.Run("a fallback read is never written to the remote", func(t *testing.T) {
		mem := NewMemory()
		s, local := newTestStore(t, mem, time.Minute)
		ctx := context.Background()

		remoteRows := [][]string{
			{"ID", "Character", "Person"},
			{"p1", "Aragorn", "X"},
			{"p2", "Gandalf", "Y"},
		}
		mem.Put("bets", remoteRows)
		mem.Fail(OpRows, errBoom)

		res := s.Update(ctx, "bets", func(set RecordSet) error {
			set["p3"] = map[string]any{"Frodo": "Z"}
			return nil
		})

		assert.Equal(t, Result{Source: SourceLocal, Degraded: true}, res)

		rows, ok := mem.Get("bets")
		require.True(t, ok)
		assert.Equal(t, remoteRows, rows)

		direct, err := local.Load("bets")
		require.NoError(t, err)
		assert.Equal(t, RecordSet{"p3": map[string]any{"Frodo": "Z"}}, direct)
	})

	t.Run("an unreadable local file is not overwritten", func(t *testing.T) {
		s, local := newTestStore(t, nil, 0)
		require.NoError(t, os.WriteFile(local.Path("bets"), []byte("[oops"), 0o644))

		called := false
		res := s.Update(context.Background(), "bets", func(RecordSet) error {
			called = true
			return nil
		})

		assert.False(t, res.OK())
		assert.False(t, called)
	})
}

func TestStore_Preview(t *testing.T) {
	t.Run("without a remote store", func(t *testing.T) {
		s, _ := newTestStore(t, nil, 0)

		_, err := s.Preview(context.Background(), "bets", 5)

		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("it describes the raw sheet", func(t *testing.T) {
		mem := NewMemory()
		mem.Put("bets", [][]string{
			{"ID", "Character", "Person"},
			{"p1", "Aragorn", "X"},
			{"p1", "Gandalf", "Y"},
			{"p2", "Aragorn", "Y"},
		})
		mem.Put("empty", nil)
		s, _ := newTestStore(t, mem, 0)
		ctx := context.Background()

		p, err := s.Preview(ctx, "bets", 2)
		require.NoError(t, err)
		assert.Equal(t, &Preview{
			Collection: "bets",
			Headers:    []string{"ID", "Character", "Person"},
			Columns:    3,
			Rows:       3,
			Sample:     [][]string{{"p1", "Aragorn", "X"}, {"p1", "Gandalf", "Y"}},
			Declared:   "bets",
			Detected:   "bets",
		}, p)

		_, err = s.Preview(ctx, "missing", 2)
		assert.ErrorIs(t, err, ErrSheetNotFound)

		_, err = s.Preview(ctx, "empty", 2)
		assert.ErrorIs(t, err, ErrEmptySheet)
	})
}
