package gate

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"
)

// Event — появление или изменение файла в наблюдаемом каталоге.
type Event struct {
	Path    string
	ModTime time.Time

	// Err — ошибка наблюдателя. Path при этом пустой.
	Err error
}

// Watcher — источник событий файловой системы.
//
// Watcher только сообщает о файлах: фильтрация по шаблону и времени,
// а также подсчёт выполняются в Gate. Канал закрывается при отмене ctx.
type Watcher interface {
	Watch(ctx context.Context, dir string) (<-chan Event, error)
}

// Gate — динамический gate: ждёт expected различных файлов по шаблону.
//
// Состояния: ожидание → завершён, обратного перехода нет.
// Файлы с mtime раньше start игнорируются, повторные пути
// считаются один раз, после завершения новые файлы не учитываются.
type Gate struct {
	name     string
	pattern  string
	expected int
	start    time.Time

	mu       sync.RWMutex
	seen     map[string]bool
	matched  []string
	complete bool
}

// NewGate создаёт gate. expected nil или меньше 1 — ErrExpectedCountUnknown.
func NewGate(name, pattern string, expected *int, start time.Time) (*Gate, error) {
	if expected == nil || *expected < 1 {
		return nil, fmt.Errorf("gate %s: %w", name, ErrExpectedCountUnknown)
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("gate %s: pattern %q: %w", name, pattern, err)
	}

	return &Gate{
		name:     name,
		pattern:  pattern,
		expected: *expected,
		start:    start,
		seen:     make(map[string]bool),
	}, nil
}

// Observe учитывает событие. Возвращает true, если gate завершён.
func (g *Gate) Observe(ev Event) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.complete {
		return true
	}
	if ev.ModTime.Before(g.start) {
		return false
	}
	if ok, _ := filepath.Match(g.pattern, filepath.Base(ev.Path)); !ok {
		return false
	}
	if g.seen[ev.Path] {
		return false
	}

	g.seen[ev.Path] = true
	g.matched = append(g.matched, ev.Path)
	if len(g.matched) == g.expected {
		g.complete = true
	}
	return g.complete
}

// Complete возвращает true, если набрано ожидаемое количество.
func (g *Gate) Complete() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.complete
}

// Count возвращает количество учтённых файлов.
func (g *Gate) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.matched)
}

// Matched возвращает учтённые пути в порядке наблюдения.
func (g *Gate) Matched() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.matched...)
}

// reset сбрасывает накопленный набор (при отмене).
func (g *Gate) reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.complete {
		g.seen = make(map[string]bool)
		g.matched = nil
	}
}

// Await подписывается на dir и ждёт завершения.
// timeout > 0 ограничивает ожидание; по истечении возвращается *TimeoutError.
// При отмене ctx накопленный набор сбрасывается.
func (g *Gate) Await(ctx context.Context, w Watcher, dir string, timeout time.Duration) ([]string, error) {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		waitCtx, cancelTimeout = context.WithTimeoutCause(waitCtx, timeout, errDeadline)
		defer cancelTimeout()
	}

	if waitCtx.Err() != nil {
		return nil, g.stopped(waitCtx)
	}

	events, err := w.Watch(waitCtx, dir)
	if err != nil {
		return nil, fmt.Errorf("gate %s: %w: %v", g.name, ErrWatch, err)
	}

	for {
		select {
		case <-waitCtx.Done():
			return nil, g.stopped(waitCtx)

		case ev, ok := <-events:
			if !ok {
				if waitCtx.Err() != nil {
					return nil, g.stopped(waitCtx)
				}
				g.reset()
				return nil, fmt.Errorf("gate %s: %w", g.name, ErrWatcherClosed)
			}
			if ev.Err != nil {
				g.reset()
				return nil, fmt.Errorf("gate %s: %w: %v", g.name, ErrWatch, ev.Err)
			}
			if g.Observe(ev) {
				return g.Matched(), nil
			}
		}
	}
}

// stopped формирует ошибку остановки: таймаут gate, исчерпание
// производителей или отмена извне.
func (g *Gate) stopped(ctx context.Context) error {
	cause := context.Cause(ctx)
	if errors.Is(cause, errDeadline) || errors.Is(cause, ErrUpstreamExhausted) {
		observed := g.Count()
		g.reset()
		err := &TimeoutError{Gate: g.name, Observed: observed, Expected: g.expected}
		if errors.Is(cause, ErrUpstreamExhausted) {
			err.Cause = ErrUpstreamExhausted
		}
		return err
	}
	g.reset()
	return ctx.Err()
}

// AwaitCount ждёт expected файлов, совпадающих с pattern, в каталоге dir.
// Имя gate в ошибках — dir/pattern.
func AwaitCount(ctx context.Context, w Watcher, dir, pattern string, expected *int, start time.Time, timeout time.Duration) ([]string, error) {
	g, err := NewGate(filepath.Join(dir, pattern), pattern, expected, start)
	if err != nil {
		return nil, err
	}
	return g.Await(ctx, w, dir, timeout)
}
