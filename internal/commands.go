package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/starford/askwiki/internal/apperr"
	"github.com/starford/askwiki/internal/kbservice"
	"github.com/starford/askwiki/internal/mcpserver"
	"github.com/starford/askwiki/internal/tui"
)

// RunMCP serves the knowledge base over MCP on stdin/stdout. Logs go to
// stderr so they never mix with the protocol stream.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.loggerTo(os.Stderr)
	slog.SetDefault(logger)

	rt, err := bootstrap(ctx, app.config, logger, bootstrapOptions{recordGenerations: true})
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)
	if app.config.KnowledgeBase.Watch {
		g.Go(func() error {
			if err := rt.reloader.Watch(gCtx, rt.src.Path()); err != nil {
				logger.Warn("watcher: disabled", slog.String("error", err.Error()))
			}
			return nil
		})
	}
	g.Go(func() error {
		defer cancel()
		if err := mcpserver.New(rt.svc, app.version).ServeStdio(); err != nil {
			return fmt.Errorf("mcp server: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// RunAsk opens the interactive terminal client. Logging is discarded because
// the terminal belongs to the UI.
func RunAsk(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	if app.logger == nil {
		app.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	rt, err := bootstrap(ctx, app.config, app.logger, bootstrapOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	if _, err := tea.NewProgram(tui.New(rt.svc, summarize(rt)), tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

// Query answers one question and prints the reply, or the full answer as
// JSON when asJSON is set. The catalog is never opened.
func Query(ctx context.Context, question string, threshold *float64, asJSON bool, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.loggerTo(os.Stderr)

	rt, err := bootstrap(ctx, app.config, logger, bootstrapOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	answer, err := rt.svc.Ask(ctx, question, threshold)
	if errors.Is(err, apperr.ErrUnavailable) {
		_, _ = fmt.Fprintln(app.output, kbservice.ReplyUnavailable)
	}
	if err != nil {
		return err
	}
	if asJSON {
		enc := json.NewEncoder(app.output)
		enc.SetIndent("", "  ")
		return enc.Encode(answer)
	}
	_, err = fmt.Fprintln(app.output, answer.Reply)
	return err
}

func summarize(rt *runtime) string {
	st := rt.svc.Status(context.Background())
	if !st.Ready {
		return fmt.Sprintf("%s: no knowledge base loaded", rt.src.Name())
	}
	title := st.Title
	if title == "" {
		title = rt.src.Name()
	}
	return fmt.Sprintf("%s · %d entries · threshold %.2f", title, st.Entries, st.Threshold)
}
