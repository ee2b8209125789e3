package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/starford/askwiki/internal/catalog"
	"github.com/starford/askwiki/internal/kb"
	"github.com/starford/askwiki/internal/kbservice"
	"github.com/starford/askwiki/internal/reload"
	"github.com/starford/askwiki/internal/source"
	"github.com/starford/askwiki/internal/textnorm"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{output: os.Stdout, version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// loggerTo returns the injected logger or a JSON logger writing to w.
func (a *application) loggerTo(w io.Writer) *slog.Logger {
	if a.logger != nil {
		return a.logger
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
}

// runtime is the wired knowledge base shared by every command.
type runtime struct {
	src      *source.File
	holder   *kb.Holder
	reloader *reload.Reloader
	svc      *kbservice.Service
	db       *catalog.DB
}

func (rt *runtime) Close() {
	rt.svc.Release()
	if rt.db != nil {
		_ = rt.db.Close()
	}
}

type bootstrapOptions struct {
	recordGenerations bool
	listeners         []reload.Listener
}

// bootstrap wires source, build options, catalog, reloader and service, then
// performs the initial build. A failed initial build is logged and leaves the
// service without a snapshot; later reloads may still succeed.
func bootstrap(ctx context.Context, cfg *Config, logger *slog.Logger, bo bootstrapOptions) (*runtime, error) {
	kbCfg := cfg.KnowledgeBase

	src, err := source.NewFile(kbCfg.Source)
	if err != nil {
		return nil, fmt.Errorf("init source: %w", err)
	}
	format, err := kbCfg.ResolveFormat()
	if err != nil {
		return nil, err
	}
	buildOpts := kb.BuildOptions{
		Format:       format,
		HeadingLevel: kbCfg.HeadingLevel,
		Normalizer: textnorm.New(
			textnorm.WithMinLength(kbCfg.MinTokenLength),
			textnorm.WithStopwords(kbCfg.ExtraStopwords...),
		),
	}

	rt := &runtime{src: src, holder: kb.NewHolder(nil)}

	reloadOpts := []reload.Option{
		reload.WithLogger(logger),
		reload.WithBuildOptions(buildOpts),
		reload.WithDebounce(kbCfg.Debounce),
	}
	if bo.recordGenerations && cfg.Catalog.Enabled() {
		db, err := catalog.Open(ctx, cfg.Catalog.Path)
		if err != nil {
			return nil, fmt.Errorf("init catalog: %w", err)
		}
		rt.db = db
		reloadOpts = append(reloadOpts, reload.WithRecorder(db, cfg.Catalog.History))
	}
	for _, l := range bo.listeners {
		reloadOpts = append(reloadOpts, reload.WithListener(l))
	}
	rt.reloader = reload.New(src, rt.holder, reloadOpts...)

	svcOpts := []kbservice.Option{
		kbservice.WithConfig(kbservice.Config{
			Threshold:      kbCfg.Threshold,
			MaxAnswerChars: kbCfg.MaxAnswerChars,
			MaxBatch:       cfg.Batch.MaxQuestions,
			Workers:        cfg.Batch.Workers,
		}),
		kbservice.WithReloader(rt.reloader),
		kbservice.WithSource(src, buildOpts),
		kbservice.WithLogger(logger),
	}
	if rt.db != nil {
		svcOpts = append(svcOpts, kbservice.WithCatalog(rt.db))
	}
	svc, err := kbservice.New(rt.holder, svcOpts...)
	if err != nil {
		if rt.db != nil {
			_ = rt.db.Close()
		}
		return nil, err
	}
	rt.svc = svc

	if _, err := rt.reloader.Reload(ctx, false); err != nil {
		logger.Error("initial build failed, serving without a knowledge base",
			slog.String("source", src.Path()),
			slog.String("error", err.Error()))
	}
	return rt, nil
}
