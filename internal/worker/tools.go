package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/shaiso/varflow/internal/domain"
	"github.com/shaiso/varflow/internal/engine"
	"github.com/shaiso/varflow/internal/jobconfig"
	"github.com/shaiso/varflow/internal/telemetry"
)

// Tools — команды внешних инструментов.
//
// Каждая команда — argv, элементы которого рендерятся как шаблоны
// (engine.RenderArgs). Интерпретируется только код возврата.
type Tools struct {
	// Merge — слияние файлов группы: {{.file_list}}, {{.output}}, {{.threads}}.
	Merge []string `yaml:"merge"`

	// Load — загрузка/аннотация: {{.config}}.
	Load []string `yaml:"load"`

	// Accession — присвоение accession: {{.config}}.
	Accession []string `yaml:"accession"`

	// Compress — сжатие: {{.input}}, {{.output}}.
	Compress []string `yaml:"compress"`

	// TabixIndex — индекс .tbi: {{.input}}.
	TabixIndex []string `yaml:"tabix_index"`

	// CSIIndex — индекс .csi: {{.input}}.
	CSIIndex []string `yaml:"csi_index"`

	// Publish — публикация: {{.accession}}. По умолчанию не задана.
	Publish []string `yaml:"publish"`
}

// DefaultTools возвращает команды по умолчанию.
func DefaultTools() Tools {
	return Tools{
		Merge: []string{
			"bcftools", "merge", "--merge", "all",
			"--file-list", "{{.file_list}}",
			"--threads", "{{.threads}}",
			"-O", "z", "-o", "{{.output}}",
		},
		Load:       []string{"java", "-jar", "eva-pipeline.jar", "--spring.config.location=file:{{.config}}"},
		Accession:  []string{"java", "-jar", "eva-accession-pipeline.jar", "--spring.config.location=file:{{.config}}"},
		Compress:   []string{"bgzip", "--force", "--keep", "{{.input}}"},
		TabixIndex: []string{"tabix", "-p", "vcf", "{{.input}}"},
		CSIIndex:   []string{"bcftools", "index", "--csi", "{{.input}}"},
	}
}

// WithDefaults заполняет незаданные команды значениями по умолчанию.
// Publish остаётся как есть.
func (t Tools) WithDefaults() Tools {
	d := DefaultTools()
	fill := func(dst *[]string, def []string) {
		if len(*dst) == 0 {
			*dst = def
		}
	}
	fill(&t.Merge, d.Merge)
	fill(&t.Load, d.Load)
	fill(&t.Accession, d.Accession)
	fill(&t.Compress, d.Compress)
	fill(&t.TabixIndex, d.TabixIndex)
	fill(&t.CSIIndex, d.CSIIndex)
	return t
}

// PrepareFunc строит переменные шаблона команды и outputs узла из payload.
type PrepareFunc func(task *domain.Task) (engine.Vars, map[string]any, error)

// ToolExecutor — executor для узлов, вызывающих внешний инструмент.
//
// stdout и stderr пишутся в <logs_dir>/<node_id>.out.log и .err.log.
// Без logs_dir вывод отбрасывается.
type ToolExecutor struct {
	Tool    string
	Argv    []string
	Prepare PrepareFunc
	Logger  *slog.Logger
}

// Execute запускает инструмент и ждёт его завершения.
func (e *ToolExecutor) Execute(ctx context.Context, task *domain.Task) (*ExecutionResult, error) {
	if len(e.Argv) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrToolNotConfigured, e.Tool)
	}

	vars, outputs, err := e.Prepare(task)
	if err != nil {
		return nil, err
	}

	argv, err := engine.RenderArgs(e.Argv, vars)
	if err != nil {
		return nil, fmt.Errorf("%w: render %s command: %w", ErrInvalidPayload, e.Tool, err)
	}

	stdout, stderr, closeLogs, err := openLogs(GetConfigString(task.Payload, "logs_dir"), task.NodeID)
	if err != nil {
		return nil, err
	}
	defer closeLogs()

	logger := telemetry.WithNodeID(telemetry.FromContextOr(ctx, e.Logger), task.NodeID).With("tool", e.Tool)
	logger.Debug("running tool", "argv", strings.Join(argv, " "), "attempt", task.Attempt)

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &ToolError{Tool: e.Tool, NodeID: task.NodeID, ExitCode: exitErr.ExitCode()}
		}
		return nil, &ToolError{Tool: e.Tool, NodeID: task.NodeID, ExitCode: -1, Err: err}
	}

	return &ExecutionResult{Outputs: outputs}, nil
}

// openLogs открывает файлы для stdout и stderr инструмента.
// Файлы дописываются, чтобы сохранить вывод всех попыток.
func openLogs(logsDir, nodeID string) (io.Writer, io.Writer, func(), error) {
	if logsDir == "" {
		return io.Discard, io.Discard, func() {}, nil
	}
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return nil, nil, nil, fmt.Errorf("create logs dir: %w", err)
	}

	base := filepath.Join(logsDir, logFileName(nodeID))
	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND

	out, err := os.OpenFile(base+".out.log", flags, 0o644)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open stdout log: %w", err)
	}
	errf, err := os.OpenFile(base+".err.log", flags, 0o644)
	if err != nil {
		out.Close()
		return nil, nil, nil, fmt.Errorf("open stderr log: %w", err)
	}

	return out, errf, func() {
		out.Close()
		errf.Close()
	}, nil
}

// logFileName делает из ID узла имя файла.
func logFileName(nodeID string) string {
	return strings.ReplaceAll(nodeID, string(os.PathSeparator), "_")
}

// prepareMerge записывает список файлов группы и готовит слияние.
func prepareMerge(task *domain.Task) (engine.Vars, map[string]any, error) {
	files := GetConfigStrings(task.Payload, "files")
	if len(files) == 0 {
		return nil, nil, missingArg("files")
	}
	output, err := requireString(task.Payload, "output")
	if err != nil {
		return nil, nil, err
	}
	threads := GetConfigInt(task.Payload, "threads")
	if threads <= 0 {
		threads = engine.DefaultMergeThreads
	}

	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create output dir: %w", err)
	}

	listDir := GetConfigString(task.Payload, "logs_dir")
	if listDir == "" {
		listDir = filepath.Dir(output)
	}
	if err := os.MkdirAll(listDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create file list dir: %w", err)
	}
	fileList := filepath.Join(listDir, logFileName(task.NodeID)+".filelist")
	if err := os.WriteFile(fileList, []byte(strings.Join(files, "\n")+"\n"), 0o644); err != nil {
		return nil, nil, fmt.Errorf("write file list: %w", err)
	}

	vars := engine.Vars{"file_list": fileList, "output": output, "threads": threads}
	return vars, map[string]any{"output": output, "file_list": fileList}, nil
}

// prepareConfigTool — для инструментов, читающих конфигурацию задания.
// Нечитаемая конфигурация — ошибка payload: инструмент не запускается.
func prepareConfigTool(task *domain.Task) (engine.Vars, map[string]any, error) {
	config, err := requireString(task.Payload, "config")
	if err != nil {
		return nil, nil, err
	}
	cfg, err := jobconfig.Read(config)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	outputs := map[string]any{"config": config, "job": cfg.Value(jobconfig.KeyJobNames)}
	if output := GetConfigString(task.Payload, "output"); output != "" {
		outputs["output"] = output
	}
	return engine.Vars{"config": config}, outputs, nil
}

// prepareCompress — bgzip пишет <input>.gz рядом с исходным файлом.
func prepareCompress(task *domain.Task) (engine.Vars, map[string]any, error) {
	input, err := requireString(task.Payload, "input")
	if err != nil {
		return nil, nil, err
	}
	output := input + ".gz"
	return engine.Vars{"input": input, "output": output}, map[string]any{"output": output}, nil
}

// prepareIndex — индекс пишется в <input><suffix>.
func prepareIndex(suffix string) PrepareFunc {
	return func(task *domain.Task) (engine.Vars, map[string]any, error) {
		input, err := requireString(task.Payload, "input")
		if err != nil {
			return nil, nil, err
		}
		return engine.Vars{"input": input}, map[string]any{"input": input, "output": input + suffix}, nil
	}
}

func preparePublish(task *domain.Task) (engine.Vars, map[string]any, error) {
	accession, err := requireString(task.Payload, "accession")
	if err != nil {
		return nil, nil, err
	}
	return engine.Vars{"accession": accession}, map[string]any{"accession": accession}, nil
}

// IndexExecutor выбирает инструмент индексации по аргументу format.
type IndexExecutor struct {
	TBI *ToolExecutor
	CSI *ToolExecutor
}

// Execute строит .tbi (format "tbi", по умолчанию) или .csi.
func (e *IndexExecutor) Execute(ctx context.Context, task *domain.Task) (*ExecutionResult, error) {
	switch format := GetConfigString(task.Payload, "format"); format {
	case "", "tbi":
		return e.TBI.Execute(ctx, task)
	case "csi":
		return e.CSI.Execute(ctx, task)
	default:
		return nil, fmt.Errorf("%w: unknown index format %q", ErrInvalidPayload, format)
	}
}
