// Package kbservice answers questions against the active knowledge base and
// exposes its contents and build history to the transports.
package kbservice

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/starford/askwiki/internal/apperr"
	"github.com/starford/askwiki/internal/catalog"
	"github.com/starford/askwiki/internal/docparse"
	"github.com/starford/askwiki/internal/kb"
	"github.com/starford/askwiki/internal/reload"
	"github.com/starford/askwiki/internal/source"
)

// Defaults used when Config leaves a field zero.
const (
	DefaultThreshold      = 0.2
	DefaultMaxAnswerChars = 1000
	DefaultMaxBatch       = 100
	searchExcerptChars    = 200
)

// Config holds the answering knobs. Zero sizes fall back to the defaults;
// Threshold is used as given, including 0.
type Config struct {
	Threshold      float64
	MaxAnswerChars int
	MaxBatch       int
	Workers        int
}

func (c Config) withDefaults() Config {
	if c.MaxAnswerChars <= 0 {
		c.MaxAnswerChars = DefaultMaxAnswerChars
	}
	if c.MaxBatch <= 0 {
		c.MaxBatch = DefaultMaxBatch
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	return c
}

// Reloader rebuilds the knowledge base. *reload.Reloader implements it.
type Reloader interface {
	Reload(ctx context.Context, force bool) (reload.Event, error)
	Last() reload.Event
}

// Catalog reads recorded generations. *catalog.DB implements it.
type Catalog interface {
	List(ctx context.Context, limit int) ([]catalog.Generation, error)
	Get(ctx context.Context, id int64) (*catalog.Generation, error)
	Entries(ctx context.Context, generationID int64) ([]catalog.EntrySummary, error)
	Warnings(ctx context.Context, generationID int64) ([]docparse.Warning, error)
}

// Service is the single entry point the HTTP, MCP, TUI and CLI surfaces use.
type Service struct {
	holder    *kb.Holder
	reloader  Reloader
	catalog   Catalog
	src       source.Replacer
	buildOpts kb.BuildOptions
	cfg       Config
	pool      *ants.Pool
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithConfig sets answering options.
func WithConfig(c Config) Option {
	return func(s *Service) { s.cfg = c }
}

// WithReloader enables Reload and reports its generation in answers.
func WithReloader(r Reloader) Option {
	return func(s *Service) { s.reloader = r }
}

// WithCatalog enables the generation history queries.
func WithCatalog(c Catalog) Option {
	return func(s *Service) { s.catalog = c }
}

// WithSource enables ReplaceSource. opts are used to validate uploads
// before they overwrite the source.
func WithSource(src source.Replacer, opts kb.BuildOptions) Option {
	return func(s *Service) {
		s.src = src
		s.buildOpts = opts
	}
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Service over holder. Call Release when done.
func New(holder *kb.Holder, opts ...Option) (*Service, error) {
	s := &Service{
		holder: holder,
		cfg:    Config{Threshold: DefaultThreshold},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	s.cfg = s.cfg.withDefaults()

	pool, err := ants.NewPool(s.cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("kbservice: worker pool: %w", err)
	}
	s.pool = pool
	return s, nil
}

// Release stops the batch worker pool.
func (s *Service) Release() {
	s.pool.Release()
}

// SourceFormat is the format uploads are validated against.
func (s *Service) SourceFormat() docparse.Format {
	if s.buildOpts.Format == "" {
		return docparse.FormatHTML
	}
	return s.buildOpts.Format
}

// Threshold returns the configured default threshold.
func (s *Service) Threshold() float64 { return s.cfg.Threshold }

func (s *Service) snapshot() (*kb.KnowledgeBase, error) {
	k := s.holder.Load()
	if k == nil {
		return nil, apperr.ErrUnavailable
	}
	return k, nil
}

func (s *Service) threshold(override *float64) (float64, error) {
	if override == nil {
		return s.cfg.Threshold, nil
	}
	// NaN compares false against both bounds and would accept every match.
	if v := *override; math.IsNaN(v) || v < 0 || v > 1 {
		return 0, fmt.Errorf("%w: threshold must be within [0, 1]", apperr.ErrInvalidArgument)
	}
	return *override, nil
}

// Ask matches question against the active snapshot. A nil threshold uses
// the configured default.
func (s *Service) Ask(ctx context.Context, question string, threshold *float64) (*Answer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	th, err := s.threshold(threshold)
	if err != nil {
		return nil, err
	}
	k, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	a := s.answer(k, question, th)
	s.logger.Info("ask",
		slog.Bool("found", a.Found),
		slog.Int("entry_id", a.EntryID),
		slog.Float64("score", a.Score))
	return a, nil
}

// AskBatch answers every question against one snapshot using the worker
// pool. Answers are returned in question order.
func (s *Service) AskBatch(ctx context.Context, questions []string, threshold *float64) ([]Answer, error) {
	if len(questions) > s.cfg.MaxBatch {
		return nil, fmt.Errorf("%w: at most %d questions per batch", apperr.ErrInvalidArgument, s.cfg.MaxBatch)
	}
	th, err := s.threshold(threshold)
	if err != nil {
		return nil, err
	}
	k, err := s.snapshot()
	if err != nil {
		return nil, err
	}

	out := make([]Answer, len(questions))
	var wg sync.WaitGroup
	for i, q := range questions {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return nil, err
		}
		wg.Add(1)
		if err := s.pool.Submit(func() {
			defer wg.Done()
			out[i] = *s.answer(k, q, th)
		}); err != nil {
			wg.Done()
			wg.Wait()
			return nil, fmt.Errorf("kbservice: submit: %w", err)
		}
	}
	wg.Wait()

	found := 0
	for _, a := range out {
		if a.Found {
			found++
		}
	}
	s.logger.Info("ask batch", slog.Int("questions", len(questions)), slog.Int("found", found))
	return out, nil
}

func (s *Service) answer(k *kb.KnowledgeBase, question string, threshold float64) *Answer {
	question = strings.TrimSpace(question)
	res := k.Match(question, threshold)
	a := &Answer{
		Question:   question,
		Found:      res.Found,
		Score:      res.Score,
		Checksum:   k.Checksum(),
		Generation: k.Generation(),
	}
	if res.Found {
		e, _ := k.Entry(res.EntryID)
		a.EntryID = e.ID
		a.Title = e.Title
		a.Excerpt, a.Truncated = Excerpt(e.Body, s.cfg.MaxAnswerChars)
		a.Terms = sharedTerms(k, question, e)
	}
	a.Reply = FormatAnswer(a)
	return a
}

// sharedTerms lists the distinct query tokens that occur in e, in query order.
func sharedTerms(k *kb.KnowledgeBase, question string, e kb.Entry) []string {
	var out []string
	seen := map[string]bool{}
	for _, tok := range k.Options().Normalizer.Normalize(question) {
		if seen[tok] {
			continue
		}
		seen[tok] = true
		if _, ok := e.TermWeights[tok]; ok {
			out = append(out, tok)
		}
	}
	return out
}

// Search ranks the entries sharing at least one token with query.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is required", apperr.ErrInvalidArgument)
	}
	k, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}
	ranked := k.Rank(query, limit)
	hits := make([]SearchHit, 0, len(ranked))
	for _, c := range ranked {
		e, _ := k.Entry(c.EntryID)
		excerpt, _ := Excerpt(e.Body, searchExcerptChars)
		hits = append(hits, SearchHit{
			EntryID: c.EntryID,
			Title:   e.Title,
			Score:   c.Score,
			Overlap: c.Overlap,
			Excerpt: excerpt,
		})
	}
	return hits, nil
}

// ListEntries returns every indexed entry in document order.
func (s *Service) ListEntries(ctx context.Context) ([]EntryItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	k, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	entries := k.Entries()
	out := make([]EntryItem, len(entries))
	for i, e := range entries {
		out[i] = EntryItem{ID: e.ID, Title: e.Title, Tokens: len(e.Tokens)}
	}
	return out, nil
}

// GetEntry returns one entry with its strongest terms.
func (s *Service) GetEntry(ctx context.Context, id int) (*EntryDetail, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	k, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	e, ok := k.Entry(id)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &EntryDetail{
		ID:       e.ID,
		Title:    e.Title,
		Body:     e.Body,
		Tokens:   len(e.Tokens),
		TopTerms: topTerms(e.TermWeights, 10),
	}, nil
}

// Status describes the active snapshot. It never fails; Ready is false
// when no snapshot is installed.
func (s *Service) Status(_ context.Context) Status {
	st := Status{Threshold: s.cfg.Threshold}
	if s.src != nil {
		st.Source = s.src.Name()
	}
	if s.reloader != nil {
		if last := s.reloader.Last(); last.Kind != "" {
			st.LastReload = &last
		}
	}
	k := s.holder.Load()
	if k == nil {
		return st
	}
	opts := k.Options()
	st.Ready = true
	st.Format = string(opts.Format)
	st.HeadingLevel = opts.HeadingLevel
	st.Title = k.Title()
	st.Encoding = k.Encoding()
	st.Checksum = k.Checksum()
	st.Generation = k.Generation()
	st.Entries = k.Len()
	st.Dropped = k.Dropped()
	st.Vocabulary = k.VocabularySize()
	st.Warnings = k.Warnings()
	st.BuiltAt = k.BuiltAt()
	return st
}

// Reload rebuilds the knowledge base from its source. Without force an
// unchanged document is not rebuilt.
func (s *Service) Reload(ctx context.Context, force bool) (reload.Event, error) {
	if s.reloader == nil {
		return reload.Event{}, apperr.ErrUnavailable
	}
	return s.reloader.Reload(ctx, force)
}

// ReplaceSource validates content, writes it over the source document and
// reloads. A document that cannot be built is rejected before anything is
// written.
func (s *Service) ReplaceSource(ctx context.Context, content []byte) (reload.Event, error) {
	if s.src == nil || s.reloader == nil {
		return reload.Event{}, apperr.ErrUnavailable
	}
	if _, _, err := kb.Build(content, s.buildOpts); err != nil {
		return reload.Event{}, fmt.Errorf("%w: %w", apperr.ErrInvalidArgument, err)
	}
	if err := s.src.Replace(ctx, content); err != nil {
		return reload.Event{}, err
	}
	s.logger.Info("source replaced", slog.String("source", s.src.Name()), slog.Int("bytes", len(content)))
	return s.reloader.Reload(ctx, false)
}

// Generations lists recorded builds, newest first.
func (s *Service) Generations(ctx context.Context, limit int) ([]catalog.Generation, error) {
	if s.catalog == nil {
		return nil, apperr.ErrCatalogDisabled
	}
	return s.catalog.List(ctx, limit)
}

// Generation returns one recorded build with its entries and warnings.
func (s *Service) Generation(ctx context.Context, id int64) (*GenerationDetail, error) {
	if s.catalog == nil {
		return nil, apperr.ErrCatalogDisabled
	}
	g, err := s.catalog.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	entries, err := s.catalog.Entries(ctx, id)
	if err != nil {
		return nil, err
	}
	warnings, err := s.catalog.Warnings(ctx, id)
	if err != nil {
		return nil, err
	}
	return &GenerationDetail{Generation: *g, EntryList: entries, WarningList: warnings}, nil
}
