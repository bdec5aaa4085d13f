/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package records

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrUnavailable is returned by Preview when no remote handle exists.
	ErrUnavailable = errors.New("remote store unavailable")
	// ErrEmptySheet is returned by Preview for a sheet without rows.
	ErrEmptySheet = errors.New("sheet is empty")
)

// DefaultReconnectAfter is how long a failed connection attempt is
// remembered before the remote resource is dialed again.
const DefaultReconnectAfter = time.Minute

type Config struct {
	// Schema declares the layout of each collection.
	Schema Schema
	// Local is the fallback backend. Defaults to the working directory.
	Local *Local
	// Remote dials the spreadsheet. Nil means local files only.
	Remote Connector
	// CacheTTL enables the read cache when positive.
	CacheTTL time.Duration
	// ReconnectAfter defaults to DefaultReconnectAfter.
	ReconnectAfter time.Duration
	// Logf receives non-fatal notices.
	Logf func(format string, args ...any)
	// Metrics may be nil.
	Metrics *Metrics
}

// Store presents Load and Save over the remote spreadsheet and the local
// files, choosing the backend per call. It is safe for concurrent use.
type Store struct {
	schema         Schema
	local          *Local
	remote         Connector
	cache          *cache
	reconnectAfter time.Duration
	logf           func(format string, args ...any)
	metrics        *Metrics
	now            func() time.Time

	mu        sync.Mutex
	container Container
	failedAt  time.Time
	disabled  bool

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(cfg Config) *Store {
	s := &Store{
		schema:         cfg.Schema,
		local:          cfg.Local,
		remote:         cfg.Remote,
		cache:          newCache(cfg.CacheTTL),
		reconnectAfter: cfg.ReconnectAfter,
		logf:           cfg.Logf,
		metrics:        cfg.Metrics,
		now:            time.Now,
		locks:          make(map[string]*sync.Mutex),
	}

	if s.schema == nil {
		s.schema = Schema{}
	}
	if s.local == nil {
		s.local = NewLocal(".")
	}
	if s.reconnectAfter <= 0 {
		s.reconnectAfter = DefaultReconnectAfter
	}
	if s.logf == nil {
		s.logf = func(string, ...any) {}
	}

	return s
}

// Connect returns the remote handle, dialing it on first use. It returns nil
// when the remote resource is unconfigured or unreachable.
func (s *Store) Connect(ctx context.Context) Container {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.container != nil {
		return s.container
	}
	if s.remote == nil || s.disabled {
		return nil
	}
	if !s.failedAt.IsZero() && s.now().Sub(s.failedAt) < s.reconnectAfter {
		return nil
	}

	c, err := s.remote.Connect(ctx)
	switch {
	case errors.Is(err, ErrNotConfigured):
		s.disabled = true
		return nil
	case err != nil:
		s.failedAt = s.now()
		s.logf("STORE: Remote store unavailable, using local files: %v", err)
		return nil
	}

	s.container = c
	s.failedAt = time.Time{}
	s.logf("STORE: Connected to remote store")

	return c
}

// Load returns the named collection. It never fails outright: on any error
// the set is empty or comes from the local file, and the Result says which.
func (s *Store) Load(ctx context.Context, name string) (RecordSet, Result) {
	if s.cache != nil {
		set, source, ok := s.cache.get(name)
		s.metrics.cacheLookup(ok)
		if ok {
			return set, Result{Source: source}
		}
	}

	gen := s.cache.generation(name)

	set, res := s.load(ctx, name)
	s.metrics.observe("load", name, res)

	if res.OK() && !res.Degraded {
		s.cache.add(name, gen, set, res.Source)
	}

	return set, res
}

// Save replaces the named collection. Remote failures are absorbed by
// writing the local file; the Result reports the local outcome.
func (s *Store) Save(ctx context.Context, name string, set RecordSet) Result {
	res := s.save(ctx, name, set)
	s.cache.remove(name)
	s.metrics.observe("save", name, res)

	return res
}

// Update loads the named collection bypassing the cache, applies fn and
// saves the result. Updates of one collection through the same Store run one
// at a time. If the load fails or fn returns an error nothing is saved. A
// set read from the local fallback is only written back to the local file.
func (s *Store) Update(ctx context.Context, name string, fn func(RecordSet) error) Result {
	lock := s.lock(name)
	lock.Lock()
	defer lock.Unlock()

	set, res := s.load(ctx, name)
	s.metrics.observe("load", name, res)
	if !res.OK() {
		return res
	}

	if err := fn(set); err != nil {
		return Result{Source: res.Source, Degraded: res.Degraded, Err: err}
	}

	if res.Degraded {
		saved := s.saveLocal(name, set, true)
		s.cache.remove(name)
		s.metrics.observe("save", name, saved)

		return saved
	}

	return s.Save(ctx, name, set)
}

func (s *Store) lock(name string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	l, ok := s.locks[name]
	if !ok {
		l = &sync.Mutex{}
		s.locks[name] = l
	}

	return l
}

func (s *Store) load(ctx context.Context, name string) (RecordSet, Result) {
	c := s.Connect(ctx)
	if c == nil {
		return s.loadLocal(name, false)
	}

	set, err := s.loadRemote(ctx, c, name)
	if err != nil {
		s.logf("STORE: Loading %q from remote failed, using local file: %v", name, err)
		return s.loadLocal(name, true)
	}

	return set, Result{Source: SourceRemote}
}

func (s *Store) loadLocal(name string, degraded bool) (RecordSet, Result) {
	set, err := s.local.Load(name)
	if err != nil {
		s.logf("STORE: %v", err)
	}

	return set, Result{Source: SourceLocal, Degraded: degraded, Err: err}
}

func (s *Store) loadRemote(ctx context.Context, c Container, name string) (RecordSet, error) {
	sheet, _, err := c.Sheet(ctx, name, true, DefaultHeader)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open sheet %q", name)
	}

	rows, err := sheet.Rows(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read sheet %q", name)
	}

	if len(rows) > 1 {
		return Decode(s.schema.Layout(name), rows), nil
	}

	seed, err := s.local.Load(name)
	if err != nil || len(seed) == 0 {
		return RecordSet{}, nil
	}

	if err := s.writeRemote(ctx, sheet, name, seed); err != nil {
		return nil, err
	}
	s.logf("STORE: Seeded sheet %q from %s", name, s.local.Path(name))

	return seed, nil
}

func (s *Store) save(ctx context.Context, name string, set RecordSet) Result {
	c := s.Connect(ctx)
	if c == nil {
		return s.saveLocal(name, set, false)
	}

	sheet, _, err := c.Sheet(ctx, name, true, DefaultHeader)
	if err == nil {
		err = s.writeRemote(ctx, sheet, name, set)
	} else {
		err = errors.Wrapf(err, "could not open sheet %q", name)
	}
	if err != nil {
		s.logf("STORE: Saving %q to remote failed, using local file: %v", name, err)
		return s.saveLocal(name, set, true)
	}

	return Result{Source: SourceRemote}
}

func (s *Store) saveLocal(name string, set RecordSet, degraded bool) Result {
	err := s.local.Save(name, set)
	if err != nil {
		s.logf("STORE: %v", err)
	}

	return Result{Source: SourceLocal, Degraded: degraded, Err: err}
}

func (s *Store) writeRemote(ctx context.Context, sheet Sheet, name string, set RecordSet) error {
	if err := sheet.Clear(ctx); err != nil {
		return errors.Wrapf(err, "could not clear sheet %q", name)
	}

	if err := sheet.Write(ctx, Encode(s.schema.Layout(name), set)); err != nil {
		return errors.Wrapf(err, "could not write sheet %q", name)
	}

	return nil
}

// Preview describes the raw contents of a remote sheet, for debugging.
type Preview struct {
	Collection string     `json:"collection"`
	Headers    []string   `json:"headers"`
	Columns    int        `json:"num_columns"`
	Rows       int        `json:"num_rows"`
	Sample     [][]string `json:"sample_data"`
	Declared   string     `json:"declared_layout"`
	Detected   string     `json:"format_detected"`
}

// Preview returns the header and up to maxRows data rows of the named sheet
// without creating it.
func (s *Store) Preview(ctx context.Context, name string, maxRows int) (*Preview, error) {
	c := s.Connect(ctx)
	if c == nil {
		return nil, ErrUnavailable
	}

	sheet, _, err := c.Sheet(ctx, name, false, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open sheet %q", name)
	}

	rows, err := sheet.Rows(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read sheet %q", name)
	}
	if len(rows) == 0 {
		return nil, ErrEmptySheet
	}

	header, data := rows[0], rows[1:]
	if maxRows < 0 {
		maxRows = 0
	}

	declared := s.schema.Layout(name)

	return &Preview{
		Collection: name,
		Headers:    header,
		Columns:    len(header),
		Rows:       len(data),
		Sample:     data[:min(maxRows, len(data))],
		Declared:   declared.String(),
		Detected:   declared.resolve(header).String(),
	}, nil
}
