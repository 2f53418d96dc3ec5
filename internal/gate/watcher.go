package gate

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// FSWatcher — Watcher на fsnotify.
//
// После подписки выполняется начальный обход каталога, чтобы не потерять
// файлы, созданные до первого события. Фильтр по mtime применяется
// и к ним (в Gate).
type FSWatcher struct {
	Logger *slog.Logger
}

// NewFSWatcher создаёт FSWatcher.
func NewFSWatcher(logger *slog.Logger) *FSWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSWatcher{Logger: logger}
}

// Watch реализует Watcher.
func (w *FSWatcher) Watch(ctx context.Context, dir string) (<-chan Event, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	out := make(chan Event)
	go func() {
		defer close(out)
		defer fw.Close()

		entries, err := os.ReadDir(dir)
		if err != nil {
			w.send(ctx, out, Event{Err: fmt.Errorf("scan %s: %w", dir, err)})
			return
		}
		for _, entry := range entries {
			if !entry.Type().IsRegular() {
				continue
			}
			if ev, ok := w.stat(filepath.Join(dir, entry.Name())); ok {
				if !w.send(ctx, out, ev) {
					return
				}
			}
		}

		for {
			select {
			case <-ctx.Done():
				return

			case fe, ok := <-fw.Events:
				if !ok {
					return
				}
				if !fe.Has(fsnotify.Create) && !fe.Has(fsnotify.Write) {
					continue
				}
				ev, ok := w.stat(fe.Name)
				if !ok {
					continue
				}
				if !w.send(ctx, out, ev) {
					return
				}

			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				w.send(ctx, out, Event{Err: err})
				return
			}
		}
	}()

	return out, nil
}

// stat возвращает событие для обычного файла.
// Файл мог быть удалён между событием и stat, это не ошибка.
func (w *FSWatcher) stat(path string) (Event, bool) {
	info, err := os.Stat(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			w.Logger.Warn("stat watched file failed", "path", path, "error", err)
		}
		return Event{}, false
	}
	if !info.Mode().IsRegular() {
		return Event{}, false
	}
	return Event{Path: path, ModTime: info.ModTime()}, true
}

func (w *FSWatcher) send(ctx context.Context, out chan<- Event, ev Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
