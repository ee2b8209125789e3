package reload

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/askwiki/internal/kb"
	"github.com/starford/askwiki/internal/source"
	"github.com/starford/askwiki/internal/testutil"
)

const (
	docV1 = `<h2>Reset password</h2><p>Use the forgot password link</p><h2>Billing cycle</h2><p>Invoices are monthly</p>`
	docV2 = `<h2>Reset password</h2><p>Use the forgot password link</p><h2>Billing cycle</h2><p>Invoices are monthly</p><h2>VPN access</h2><p>Error 809</p>`
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func writeDoc(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func testEnv(t *testing.T, content string) (string, *source.File) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wiki.html")
	writeDoc(t, path, content)
	src, err := source.NewFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return path, src
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) add(ev Event) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) kinds() []EventKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]EventKind, len(l.events))
	for i, ev := range l.events {
		out[i] = ev.Kind
	}
	return out
}

func TestReload_InitialBuild(t *testing.T) {
	_, src := testEnv(t, docV1)
	holder := kb.NewHolder(nil)
	var log eventLog
	r := New(src, holder, WithLogger(quietLogger()), WithListener(log.add))

	ev, err := r.Reload(context.Background(), false)
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if ev.Kind != KindReloaded || ev.Entries != 2 || ev.Generation != 1 {
		t.Errorf("event = %+v", ev)
	}
	if holder.Load() == nil {
		t.Fatal("snapshot not installed")
	}
	if got := holder.Match("reset password", 0.1); !got.Found || got.EntryID != 1 {
		t.Errorf("match = %s", got)
	}
	if kinds := log.kinds(); len(kinds) != 1 || kinds[0] != KindReloaded {
		t.Errorf("listener events = %v", kinds)
	}
}

func TestReload_UnchangedAndForce(t *testing.T) {
	_, src := testEnv(t, docV1)
	holder := kb.NewHolder(nil)
	r := New(src, holder, WithLogger(quietLogger()))
	ctx := context.Background()

	if _, err := r.Reload(ctx, false); err != nil {
		t.Fatal(err)
	}
	first := holder.Load()

	ev, err := r.Reload(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if ev.Kind != KindUnchanged || holder.Load() != first {
		t.Errorf("unchanged content rebuilt: %+v", ev)
	}

	ev, err = r.Reload(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	if ev.Kind != KindReloaded || holder.Load() == first {
		t.Errorf("forced reload did not rebuild: %+v", ev)
	}
	if ev.Generation != 2 || r.Generation() != 2 {
		t.Errorf("generation = %d/%d, want 2", ev.Generation, r.Generation())
	}
	if got := holder.Load().Generation(); got != 2 {
		t.Errorf("installed snapshot generation = %d, want 2", got)
	}
	if first.Generation() != 1 {
		t.Errorf("previous snapshot restamped: generation = %d, want 1", first.Generation())
	}
}

func TestReload_FailureKeepsSnapshot(t *testing.T) {
	path, src := testEnv(t, docV1)
	holder := kb.NewHolder(nil)
	r := New(src, holder, WithLogger(quietLogger()))
	ctx := context.Background()

	if _, err := r.Reload(ctx, false); err != nil {
		t.Fatal(err)
	}
	before := holder.Load()

	writeDoc(t, path, "\x00\x01\x02binary")
	ev, err := r.Reload(ctx, false)
	if !errors.Is(err, kb.ErrBuildFailure) {
		t.Fatalf("err = %v, want ErrBuildFailure", err)
	}
	if ev.Kind != KindFailed || ev.Error == "" {
		t.Errorf("event = %+v", ev)
	}
	if holder.Load() != before {
		t.Error("failed build replaced the snapshot")
	}
	if ev.Entries != 2 || r.Last().Kind != KindFailed {
		t.Errorf("failure event does not describe the kept snapshot: %+v", ev)
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Reload(ctx, false); err == nil {
		t.Error("expected error for missing source")
	}
	if holder.Load() != before {
		t.Error("read failure replaced the snapshot")
	}
}

func TestReload_BuildOptions(t *testing.T) {
	_, src := testEnv(t, `<h3>Reset password</h3><p>link</p><h2>Ignored</h2>`)
	holder := kb.NewHolder(nil)
	r := New(src, holder, WithLogger(quietLogger()), WithBuildOptions(kb.BuildOptions{HeadingLevel: 3}))

	if _, err := r.Reload(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	if n := holder.Load().Len(); n != 1 {
		t.Errorf("entries = %d, want 1", n)
	}
}

func TestReload_RecordsGenerations(t *testing.T) {
	path, src := testEnv(t, docV1)
	db := testutil.TestCatalog(t)
	holder := kb.NewHolder(nil)
	r := New(src, holder, WithLogger(quietLogger()), WithRecorder(db, 1))
	ctx := context.Background()

	ev1, err := r.Reload(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	writeDoc(t, path, docV2)
	ev2, err := r.Reload(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if ev2.Generation <= ev1.Generation {
		t.Errorf("generation did not advance: %d -> %d", ev1.Generation, ev2.Generation)
	}

	list, err := db.List(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != ev2.Generation || list[0].Entries != 3 {
		t.Errorf("catalog = %+v, want only the newest generation", list)
	}
}

func TestReload_ReusesCatalogGenerationOnStartup(t *testing.T) {
	_, src := testEnv(t, docV1)
	db := testutil.TestCatalog(t)
	ctx := context.Background()

	first := New(src, kb.NewHolder(nil), WithLogger(quietLogger()), WithRecorder(db, 0))
	ev1, err := first.Reload(ctx, false)
	if err != nil {
		t.Fatal(err)
	}

	// A restarted process sees the same document.
	second := New(src, kb.NewHolder(nil), WithLogger(quietLogger()), WithRecorder(db, 0))
	ev2, err := second.Reload(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if ev2.Generation != ev1.Generation {
		t.Errorf("generation = %d, want reused %d", ev2.Generation, ev1.Generation)
	}
	list, _ := db.List(ctx, 10)
	if len(list) != 1 {
		t.Errorf("catalog has %d generations, want 1", len(list))
	}
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	path, src := testEnv(t, docV1)
	holder := kb.NewHolder(nil)
	var log eventLog
	r := New(src, holder, WithLogger(quietLogger()), WithListener(log.add), WithDebounce(50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := r.Reload(ctx, false); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- r.Watch(ctx, path) }()
	time.Sleep(100 * time.Millisecond)

	// Unrelated files in the directory are ignored.
	writeDoc(t, filepath.Join(filepath.Dir(path), "notes.txt"), "scratch")
	writeDoc(t, path, docV2)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		k := holder.Load()
		return k != nil && k.Len() == 3
	}, "watcher did not install the changed document")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("watcher did not stop")
	}
}

func TestWatch_AtomicReplace(t *testing.T) {
	path, src := testEnv(t, docV1)
	holder := kb.NewHolder(nil)
	r := New(src, holder, WithLogger(quietLogger()), WithDebounce(50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if _, err := r.Reload(ctx, false); err != nil {
		t.Fatal(err)
	}
	go r.Watch(ctx, path) //nolint:errcheck
	time.Sleep(100 * time.Millisecond)

	if err := src.Replace(ctx, []byte(docV2)); err != nil {
		t.Fatal(err)
	}
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return holder.Load().Len() == 3
	}, "watcher missed a rename-based replace")
}
