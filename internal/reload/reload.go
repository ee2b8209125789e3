// Package reload rebuilds the knowledge base from its source and installs
// the new snapshot in the shared holder.
package reload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/askwiki/internal/apperr"
	"github.com/starford/askwiki/internal/catalog"
	"github.com/starford/askwiki/internal/docparse"
	"github.com/starford/askwiki/internal/kb"
	"github.com/starford/askwiki/internal/source"
)

// EventKind names the outcome of a reload attempt.
type EventKind string

const (
	KindReloaded  EventKind = "kb.reloaded"
	KindUnchanged EventKind = "kb.unchanged"
	KindFailed    EventKind = "kb.reload_failed"
)

// Event describes one reload attempt.
type Event struct {
	Kind       EventKind          `json:"kind"`
	Generation int64              `json:"generation"`
	Checksum   string             `json:"checksum,omitempty"`
	Entries    int                `json:"entries"`
	Dropped    int                `json:"dropped"`
	Warnings   []docparse.Warning `json:"warnings,omitempty"`
	Error      string             `json:"error,omitempty"`
	At         time.Time          `json:"at"`

	Err error `json:"-"`
}

// Listener is called after every reload attempt, successful or not.
type Listener func(Event)

// Recorder persists build generations. *catalog.DB implements it.
type Recorder interface {
	Latest(ctx context.Context) (*catalog.Generation, error)
	RecordSnapshot(ctx context.Context, source string, k *kb.KnowledgeBase) (int64, error)
	Prune(ctx context.Context, keep int) (int64, error)
}

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 200 * time.Millisecond

// Reloader serializes rebuilds of a single source into a Holder.
type Reloader struct {
	src       source.Source
	holder    *kb.Holder
	opts      kb.BuildOptions
	recorder  Recorder
	keep      int
	logger    *slog.Logger
	listeners []Listener
	debounce  time.Duration

	mu         sync.Mutex // serializes Reload
	stateMu    sync.RWMutex
	generation int64
	last       Event
}

// Option configures a Reloader.
type Option func(*Reloader)

// WithRecorder stores every installed snapshot in rec and keeps only the
// newest keep generations. keep <= 0 disables pruning.
func WithRecorder(rec Recorder, keep int) Option {
	return func(r *Reloader) {
		r.recorder = rec
		r.keep = keep
	}
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reloader) { r.logger = l }
}

// WithListener registers fn to be called after each reload attempt.
func WithListener(fn Listener) Option {
	return func(r *Reloader) { r.listeners = append(r.listeners, fn) }
}

// WithDebounce sets the watcher debounce interval.
func WithDebounce(d time.Duration) Option {
	return func(r *Reloader) {
		if d > 0 {
			r.debounce = d
		}
	}
}

// WithBuildOptions sets the options used when no snapshot is installed yet.
func WithBuildOptions(o kb.BuildOptions) Option {
	return func(r *Reloader) { r.opts = o }
}

// New creates a Reloader for src that installs snapshots into holder.
func New(src source.Source, holder *kb.Holder, opts ...Option) *Reloader {
	r := &Reloader{
		src:      src,
		holder:   holder,
		logger:   slog.Default(),
		debounce: DefaultDebounce,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Generation returns the generation id of the installed snapshot, 0 if none.
func (r *Reloader) Generation() int64 {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	return r.generation
}

// Last returns the most recent reload event.
func (r *Reloader) Last() Event {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	return r.last
}

// Reload reads the source and, when its content changed or force is set,
// builds and installs a new snapshot. A failed read or build leaves the
// installed snapshot in place; the returned error then wraps the cause.
func (r *Reloader) Reload(ctx context.Context, force bool) (Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := r.src.Read(ctx)
	if err != nil {
		err = fmt.Errorf("reload: %w", err)
		return r.fail(err), err
	}

	cur := r.holder.Load()
	sum := kb.Checksum(data)
	if cur != nil && !force && cur.Checksum() == sum {
		ev := r.finish(Event{
			Kind:       KindUnchanged,
			Generation: r.Generation(),
			Checksum:   sum,
			Entries:    cur.Len(),
			Dropped:    cur.Dropped(),
		})
		r.logger.Debug("reload: unchanged", slog.String("checksum", sum))
		return ev, nil
	}

	var (
		next     *kb.KnowledgeBase
		warnings []docparse.Warning
	)
	if cur != nil {
		next, warnings, err = cur.Reload(data)
	} else {
		next, warnings, err = kb.Build(data, r.opts)
	}
	if err != nil {
		return r.fail(err), err
	}

	// Stamp before installing so readers always see a matching checksum and generation.
	gen := r.record(ctx, next, cur == nil)
	next = next.WithGeneration(gen)
	r.holder.Swap(next)

	r.stateMu.Lock()
	r.generation = gen
	r.stateMu.Unlock()

	for _, w := range warnings {
		r.logger.Warn("reload: parse warning", slog.Int("line", w.Line), slog.String("message", w.Message))
	}
	r.logger.Info("reload: installed",
		slog.Int64("generation", gen),
		slog.String("checksum", sum),
		slog.Int("entries", next.Len()),
		slog.Int("dropped", next.Dropped()),
		slog.Int("warnings", len(warnings)))

	return r.finish(Event{
		Kind:       KindReloaded,
		Generation: gen,
		Checksum:   sum,
		Entries:    next.Len(),
		Dropped:    next.Dropped(),
		Warnings:   warnings,
	}), nil
}

// record stores k in the catalog and returns its generation id. Without a
// recorder, or when the catalog fails, generations are counted locally.
// On the first build a catalog generation with the same checksum is reused.
func (r *Reloader) record(ctx context.Context, k *kb.KnowledgeBase, first bool) int64 {
	local := r.Generation() + 1
	if r.recorder == nil {
		return local
	}

	if first {
		latest, err := r.recorder.Latest(ctx)
		switch {
		case err == nil && latest.Checksum == k.Checksum():
			r.logger.Debug("reload: reusing generation", slog.Int64("generation", latest.ID))
			return latest.ID
		case err != nil && !errors.Is(err, apperr.ErrNotFound):
			r.logger.Warn("reload: catalog latest failed", slog.String("error", err.Error()))
		}
	}

	id, err := r.recorder.RecordSnapshot(ctx, r.src.Name(), k)
	if err != nil {
		r.logger.Warn("reload: catalog record failed", slog.String("error", err.Error()))
		return local
	}
	if r.keep > 0 {
		if n, err := r.recorder.Prune(ctx, r.keep); err != nil {
			r.logger.Warn("reload: catalog prune failed", slog.String("error", err.Error()))
		} else if n > 0 {
			r.logger.Debug("reload: pruned generations", slog.Int64("removed", n))
		}
	}
	return id
}

func (r *Reloader) fail(err error) Event {
	r.logger.Error("reload failed", slog.String("source", r.src.Name()), slog.String("error", err.Error()))
	ev := Event{Kind: KindFailed, Generation: r.Generation(), Error: err.Error(), Err: err}
	if cur := r.holder.Load(); cur != nil {
		ev.Checksum = cur.Checksum()
		ev.Entries = cur.Len()
		ev.Dropped = cur.Dropped()
	}
	return r.finish(ev)
}

func (r *Reloader) finish(ev Event) Event {
	ev.At = time.Now().UTC()
	r.stateMu.Lock()
	r.last = ev
	r.stateMu.Unlock()
	for _, fn := range r.listeners {
		fn(ev)
	}
	return ev
}
