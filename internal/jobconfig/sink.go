package jobconfig

import (
	"fmt"
	"os"
	"path/filepath"
)

// Sink записывает конфигурации в два места: рабочую копию,
// которую читает инструмент, и отладочную копию в каталоге логов.
type Sink struct {
	// WorkDir — каталог рабочих копий.
	WorkDir string

	// LogsDir — каталог отладочных копий. Пустой отключает копию.
	LogsDir string
}

// Written — пути записанных файлов.
type Written struct {
	Path      string `json:"path"`
	DebugPath string `json:"debug_path,omitempty"`
}

// Write сериализует cfg и атомарно записывает под именем name.
// Оба файла содержат одинаковые байты.
func (s Sink) Write(name string, cfg TaskConfig) (Written, error) {
	data, err := Encode(cfg)
	if err != nil {
		return Written{}, err
	}

	out := Written{Path: filepath.Join(s.WorkDir, name)}
	if err := writeFileAtomic(out.Path, data); err != nil {
		return Written{}, err
	}

	if s.LogsDir != "" {
		out.DebugPath = filepath.Join(s.LogsDir, name)
		if err := writeFileAtomic(out.DebugPath, data); err != nil {
			return Written{}, err
		}
	}

	return out, nil
}

// Read читает и разбирает ранее записанную конфигурацию.
func Read(path string) (TaskConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return TaskConfig{}, fmt.Errorf("read config: %w", err)
	}
	return Decode(data)
}

// writeFileAtomic пишет во временный файл в том же каталоге и переименовывает.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op после успешного rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close config: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod config: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}
