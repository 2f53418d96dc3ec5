package worker

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/varflow/internal/domain"
	"github.com/shaiso/varflow/internal/jobconfig"
)

// SymlinkExecutor — executor для узла "symlink".
//
// Группа из одного файла не сливается: link указывает на исходный файл.
// Тот же узел размещает исходные файлы в 30_eva_valid.
//
// Payload:
//   - target (string): путь исходного файла
//   - link (string): путь создаваемой ссылки
//   - indexes (bool): также связать существующие <target>.tbi и .csi
type SymlinkExecutor struct{}

// indexSuffixes — индексы, размещаемые рядом с VCF.
var indexSuffixes = []string{".tbi", ".csi"}

// Execute создаёт ссылку. Существующая ссылка по тому же пути заменяется.
func (e *SymlinkExecutor) Execute(ctx context.Context, task *domain.Task) (*ExecutionResult, error) {
	target, err := requireString(task.Payload, "target")
	if err != nil {
		return nil, err
	}
	link, err := requireString(task.Payload, "link")
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(link), 0o755); err != nil {
		return nil, fmt.Errorf("create link dir: %w", err)
	}
	if err := replaceLink(target, link); err != nil {
		return nil, err
	}

	outputs := map[string]any{"output": link, "target": target}
	if GetConfigBool(task.Payload, "indexes", false) {
		var indexes []string
		for _, suffix := range indexSuffixes {
			if _, err := os.Stat(target + suffix); err != nil {
				continue
			}
			if err := replaceLink(target+suffix, link+suffix); err != nil {
				return nil, err
			}
			indexes = append(indexes, link+suffix)
		}
		outputs["indexes"] = indexes
	}

	return &ExecutionResult{Outputs: outputs}, nil
}

// replaceLink создаёт ссылку link → target, заменяя прежнюю ссылку.
// Обычный файл по пути link не трогается.
func replaceLink(target, link string) error {
	if fi, err := os.Lstat(link); err == nil {
		if fi.Mode()&os.ModeSymlink == 0 {
			return fmt.Errorf("%w: %s exists and is not a symlink", ErrInvalidPayload, link)
		}
		if err := os.Remove(link); err != nil {
			return fmt.Errorf("remove stale link: %w", err)
		}
	}

	if err := os.Symlink(target, link); err != nil {
		return fmt.Errorf("create symlink: %w", err)
	}
	return nil
}

// WriteConfigExecutor — executor для узла "write-config".
//
// Конфигурация синтезируется при планировании; узел только
// сохраняет её через jobconfig.Sink.
//
// Payload:
//   - name (string): имя файла
//   - work_dir (string): каталог рабочей копии
//   - logs_dir (string): каталог отладочной копии (опционально)
//   - properties (map): ключи и значения конфигурации
type WriteConfigExecutor struct{}

// Execute записывает конфигурацию задания.
func (e *WriteConfigExecutor) Execute(ctx context.Context, task *domain.Task) (*ExecutionResult, error) {
	name, err := requireString(task.Payload, "name")
	if err != nil {
		return nil, err
	}
	workDir, err := requireString(task.Payload, "work_dir")
	if err != nil {
		return nil, err
	}
	props := GetConfigMapString(task.Payload, "properties")
	if len(props) == 0 {
		return nil, missingArg("properties")
	}

	sink := jobconfig.Sink{
		WorkDir: workDir,
		LogsDir: GetConfigString(task.Payload, "logs_dir"),
	}
	written, err := sink.Write(name, jobconfig.NewBuilder(props).Build())
	if err != nil {
		return nil, fmt.Errorf("write job config: %w", err)
	}

	outputs := map[string]any{"config": written.Path}
	if written.DebugPath != "" {
		outputs["debug"] = written.DebugPath
	}
	return &ExecutionResult{Outputs: outputs}, nil
}

// summaryReport — отчёт финального шага run.
type summaryReport struct {
	RunID       string         `yaml:"run_id"`
	NodeID      string         `yaml:"node_id"`
	Label       string         `yaml:"label,omitempty"`
	GeneratedAt time.Time      `yaml:"generated_at"`
	Args        map[string]any `yaml:"args,omitempty"`
	Inputs      map[string]any `yaml:"inputs,omitempty"`
}

// SummaryExecutor — executor для узла "summary".
//
// Пишет YAML-отчёт с аргументами узла и outputs всех зависимостей.
//
// Payload:
//   - path (string): путь отчёта
type SummaryExecutor struct{}

// Execute записывает отчёт.
func (e *SummaryExecutor) Execute(ctx context.Context, task *domain.Task) (*ExecutionResult, error) {
	path, err := requireString(task.Payload, "path")
	if err != nil {
		return nil, err
	}

	args := maps.Clone(task.Payload)
	delete(args, "inputs")
	delete(args, "path")

	report := summaryReport{
		RunID:       task.RunID.String(),
		NodeID:      task.NodeID,
		Label:       task.Label,
		GeneratedAt: time.Now().UTC(),
		Args:        args,
		Inputs:      GetConfigMap(task.Payload, "inputs"),
	}

	data, err := yaml.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("marshal summary: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create summary dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write summary: %w", err)
	}

	return &ExecutionResult{Outputs: map[string]any{"report": path}}, nil
}
