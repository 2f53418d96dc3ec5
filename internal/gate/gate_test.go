package gate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// fakeWatcher отдаёт события из канала, заполняемого тестом.
type fakeWatcher struct {
	events chan Event
	dirs   []string
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{events: make(chan Event, 16)}
}

func (f *fakeWatcher) Watch(ctx context.Context, dir string) (<-chan Event, error) {
	f.dirs = append(f.dirs, dir)
	out := make(chan Event)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-f.events:
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func intPtr(n int) *int { return &n }

func TestStatic_AllOK(t *testing.T) {
	g := NewStatic("load", []string{"load.A", "load.B"})

	if err := g.Report(Outcome{ID: "load.B", OK: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := g.Report(Outcome{ID: "load.A", OK: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := g.Await(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != AllOK {
		t.Errorf("expected AllOK, got %s", result.Status)
	}
	if len(result.Failed) != 0 {
		t.Errorf("expected no failures, got %v", result.Failed)
	}
	// Порядок отчётов — порядок набора
	if result.Outcomes[0].ID != "load.A" {
		t.Errorf("outcomes should follow set order, got %s first", result.Outcomes[0].ID)
	}
}

func TestStatic_PartialFailure(t *testing.T) {
	g := NewStatic("load", []string{"A", "B", "C"})

	g.Report(Outcome{ID: "A", OK: true, Outputs: map[string]any{"output": "/a"}})
	g.Report(Outcome{ID: "B", OK: false, Error: "exit status 1"})
	g.Report(Outcome{ID: "C", OK: true, Outputs: map[string]any{"output": "/c"}})

	result, err := g.Await(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Status != PartialFailure {
		t.Errorf("expected PartialFailure, got %s", result.Status)
	}
	if len(result.Failed) != 1 || result.Failed[0] != "B" {
		t.Errorf("expected failed [B], got %v", result.Failed)
	}

	for _, id := range []string{"A", "C"} {
		o, ok := result.Outcome(id)
		if !ok || !o.OK {
			t.Errorf("outcome %s should be retrievable and OK", id)
		}
	}
	if o, _ := result.Outcome("A"); o.Outputs["output"] != "/a" {
		t.Error("outputs of successful ids should be kept")
	}
}

func TestStatic_UnknownAndDuplicate(t *testing.T) {
	g := NewStatic("load", []string{"A"})

	if err := g.Report(Outcome{ID: "Z", OK: true}); !errors.Is(err, ErrUnknownID) {
		t.Errorf("expected ErrUnknownID, got %v", err)
	}

	g.Report(Outcome{ID: "A", OK: false, Error: "first"})
	g.Report(Outcome{ID: "A", OK: true})

	result, err := g.Await(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != PartialFailure {
		t.Error("first report should win")
	}
}

func TestStatic_AwaitCancelled(t *testing.T) {
	g := NewStatic("load", []string{"A", "B"})
	g.Report(Outcome{ID: "A", OK: true})

	if pending := g.Pending(); len(pending) != 1 || pending[0] != "B" {
		t.Errorf("expected pending [B], got %v", pending)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := g.Await(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}

func TestStatic_ConcurrentReports(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e", "f"}
	g := NewStatic("load", ids)

	for _, id := range ids {
		go g.Report(Outcome{ID: id, OK: true})
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	result, err := g.Await(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != AllOK || len(result.Outcomes) != len(ids) {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestNewGate_ExpectedCountUnknown(t *testing.T) {
	for _, expected := range []*int{nil, intPtr(0), intPtr(-1)} {
		_, err := AwaitCount(context.Background(), newFakeWatcher(), "/pub", "*.csi", expected, time.Now(), 0)
		if !errors.Is(err, ErrExpectedCountUnknown) {
			t.Errorf("expected ErrExpectedCountUnknown, got %v", err)
		}
	}
}

func TestGate_PreExistingFilesIgnored(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	before := start.Add(-time.Hour)
	after := start.Add(time.Minute)

	g, err := NewGate("public", "*.csi", intPtr(3), start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Два файла существовали до начала наблюдения
	g.Observe(Event{Path: "/pub/old1.vcf.gz.csi", ModTime: before})
	g.Observe(Event{Path: "/pub/old2.vcf.gz.csi", ModTime: before})
	if g.Count() != 0 {
		t.Errorf("pre-existing files must be ignored, count %d", g.Count())
	}

	g.Observe(Event{Path: "/pub/new1.vcf.gz.csi", ModTime: after})
	g.Observe(Event{Path: "/pub/new2.vcf.gz.csi", ModTime: after})
	if g.Complete() {
		t.Error("gate must not complete at 2 of 3")
	}

	// Повторное событие и файл другого типа не учитываются
	g.Observe(Event{Path: "/pub/new2.vcf.gz.csi", ModTime: after})
	g.Observe(Event{Path: "/pub/new2.vcf.gz.tbi", ModTime: after})
	if g.Count() != 2 {
		t.Errorf("expected count 2, got %d", g.Count())
	}

	if !g.Observe(Event{Path: "/pub/new3.vcf.gz.csi", ModTime: after}) {
		t.Error("gate should complete at 3 of 3")
	}

	// После завершения новые файлы не учитываются
	g.Observe(Event{Path: "/pub/new4.vcf.gz.csi", ModTime: after})
	if g.Count() != 3 {
		t.Errorf("expected count to stay 3, got %d", g.Count())
	}
}

func TestAwaitCount_TwoPreExistingThreeNew(t *testing.T) {
	start := time.Now()
	w := newFakeWatcher()

	w.events <- Event{Path: "/pub/a.csi", ModTime: start.Add(-time.Hour)}
	w.events <- Event{Path: "/pub/b.csi", ModTime: start.Add(-time.Hour)}
	w.events <- Event{Path: "/pub/c.csi", ModTime: start.Add(time.Second)}
	w.events <- Event{Path: "/pub/d.csi", ModTime: start.Add(time.Second)}
	w.events <- Event{Path: "/pub/c.csi", ModTime: start.Add(2 * time.Second)}
	w.events <- Event{Path: "/pub/e.csi", ModTime: start.Add(time.Second)}
	w.events <- Event{Path: "/pub/f.csi", ModTime: start.Add(time.Second)}

	got, err := AwaitCount(context.Background(), w, "/pub", "*.csi", intPtr(3), start, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"/pub/c.csi", "/pub/d.csi", "/pub/e.csi"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], got[i])
		}
	}
	if len(w.dirs) != 1 || w.dirs[0] != "/pub" {
		t.Errorf("watcher should be subscribed to /pub, got %v", w.dirs)
	}
}

func TestAwaitCount_Timeout(t *testing.T) {
	start := time.Now()
	w := newFakeWatcher()
	w.events <- Event{Path: "/pub/a.csi", ModTime: start.Add(time.Second)}
	w.events <- Event{Path: "/pub/b.csi", ModTime: start.Add(time.Second)}

	_, err := AwaitCount(context.Background(), w, "/pub", "*.csi", intPtr(3), start, 50*time.Millisecond)

	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TimeoutError, got %v", err)
	}
	if te.Observed != 2 || te.Expected != 3 {
		t.Errorf("expected observed 2 of 3, got %d of %d", te.Observed, te.Expected)
	}
	if !errors.Is(err, ErrGateTimeout) {
		t.Error("error should wrap ErrGateTimeout")
	}
}

func TestGate_CancelDiscardsState(t *testing.T) {
	start := time.Now()
	w := newFakeWatcher()
	w.events <- Event{Path: "/pub/a.csi", ModTime: start.Add(time.Second)}

	g, err := NewGate("public", "*.csi", intPtr(2), start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for g.Count() == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	_, err = g.Await(ctx, w, "/pub", time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if g.Count() != 0 {
		t.Errorf("cancelled gate should discard matches, count %d", g.Count())
	}
	if g.Complete() {
		t.Error("cancelled gate must not be complete")
	}
}

func TestGate_UpstreamExhausted(t *testing.T) {
	start := time.Now()
	w := newFakeWatcher()
	w.events <- Event{Path: "/pub/a.csi", ModTime: start.Add(time.Second)}

	g, err := NewGate("public", "*.csi", intPtr(2), start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	go func() {
		for g.Count() == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel(ErrUpstreamExhausted)
	}()

	_, err = g.Await(ctx, w, "/pub", time.Hour)

	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TimeoutError, got %v", err)
	}
	if te.Observed != 1 || te.Expected != 2 {
		t.Errorf("expected observed 1 of 2, got %d of %d", te.Observed, te.Expected)
	}
	if !errors.Is(err, ErrGateTimeout) || !errors.Is(err, ErrUpstreamExhausted) {
		t.Errorf("error should wrap both ErrGateTimeout and ErrUpstreamExhausted: %v", err)
	}
	if g.Complete() {
		t.Error("exhausted gate must not be complete")
	}
}

func TestAwaitCount_WatcherError(t *testing.T) {
	w := newFakeWatcher()
	w.events <- Event{Err: errors.New("inotify overflow")}

	_, err := AwaitCount(context.Background(), w, "/pub", "*.csi", intPtr(1), time.Now(), time.Second)
	if !errors.Is(err, ErrWatch) {
		t.Errorf("expected ErrWatch, got %v", err)
	}
}

func TestFSWatcher_InitialScanAndEvents(t *testing.T) {
	dir := t.TempDir()
	start := time.Now().Add(-time.Minute)

	// Старый файл: mtime до начала наблюдения
	old := filepath.Join(dir, "old.vcf.gz.csi")
	if err := os.WriteFile(old, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatal(err)
	}

	// Новый файл до подписки: найдётся начальным обходом
	early := filepath.Join(dir, "early.vcf.gz.csi")
	if err := os.WriteFile(early, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type result struct {
		paths []string
		err   error
	}
	done := make(chan result, 1)
	go func() {
		paths, err := AwaitCount(ctx, NewFSWatcher(nil), dir, "*.csi", intPtr(2), start, 0)
		done <- result{paths, err}
	}()

	late := filepath.Join(dir, "late.vcf.gz.csi")
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(late, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := <-done
	if r.err != nil {
		t.Fatalf("unexpected error: %v", r.err)
	}
	got := map[string]bool{}
	for _, p := range r.paths {
		got[p] = true
	}
	if !got[early] || !got[late] || got[old] {
		t.Errorf("expected early and late, got %v", r.paths)
	}
}
