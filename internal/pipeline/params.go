package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/varflow/internal/domain"
	"github.com/shaiso/varflow/internal/validate"
	"github.com/shaiso/varflow/internal/worker"
)

// GateMode — способ ожидания результатов accession.
type GateMode string

const (
	// GateStatic — ждать фиксированный набор узлов графа.
	GateStatic GateMode = "static"

	// GateWatch — ждать появления expected файлов в публичном каталоге.
	GateWatch GateMode = "watch"
)

// DefaultWatchTimeoutSec — предел ожидания watch-gate, если timeout_sec не задан.
const DefaultWatchTimeoutSec = 6 * 60 * 60

// GateParams — настройки fan-in gate.
type GateParams struct {
	Mode       GateMode `yaml:"mode" validate:"omitempty,oneof=static watch"`
	Expected   *int     `yaml:"expected,omitempty" validate:"omitempty,min=1"`
	TimeoutSec int      `yaml:"timeout_sec,omitempty" validate:"min=0"`
}

// Params — файл параметров запуска конвейера.
//
//	project_accession: PRJEB12345
//	instance_id: 1
//	sheet: metadata.csv
//	project_dir: /data/PRJEB12345
//	vep_root: /opt/vep
//	properties:
//	  spring.data.mongodb.host: mongo
//	tools:
//	  load: [java, -jar, /opt/eva-pipeline.jar, "--spring.config.location=file:{{.config}}"]
//	gate:
//	  mode: watch
//	  expected: 3
type Params struct {
	// ProjectAccession — accession проекта (PRJEB...).
	ProjectAccession string `yaml:"project_accession" validate:"required"`

	// InstanceID — идентификатор экземпляра accessioning.
	InstanceID int `yaml:"instance_id,omitempty" validate:"min=0"`

	// Sheet — путь к таблице метаданных.
	Sheet string `yaml:"sheet" validate:"required"`

	// ProjectDir — корень каталога проекта.
	ProjectDir string `yaml:"project_dir" validate:"required"`

	// Properties — базовые свойства задания загрузки.
	Properties map[string]string `yaml:"properties,omitempty"`

	// AccessionProperties — базовые свойства задания accession.
	AccessionProperties map[string]string `yaml:"accession_properties,omitempty"`

	// VEPRoot — каталог установок VEP.
	VEPRoot string `yaml:"vep_root,omitempty"`

	// AnnotateOnly — только аннотация уже загруженных вариантов.
	AnnotateOnly bool `yaml:"annotate_only,omitempty"`

	// Tools — команды внешних инструментов; пустые берутся по умолчанию.
	Tools worker.Tools `yaml:"tools,omitempty"`

	// Gate — ожидание результатов accession.
	Gate GateParams `yaml:"gate,omitempty"`

	// Retry — повторы вызовов инструментов.
	Retry *domain.RetryPolicy `yaml:"retry,omitempty"`

	// Parallel — максимум одновременно работающих инструментов.
	Parallel int `yaml:"parallel,omitempty" validate:"min=0"`
}

// LoadParams читает и проверяет файл параметров.
// Относительные sheet и project_dir разрешаются от каталога файла.
func LoadParams(path string) (*Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read params: %w", err)
	}

	var p Params
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", ErrInvalidParams, path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve params path: %w", err)
	}
	p.resolve(filepath.Dir(abs))

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// resolve делает пути абсолютными и заполняет значения по умолчанию.
func (p *Params) resolve(baseDir string) {
	if p.Sheet != "" && !filepath.IsAbs(p.Sheet) {
		p.Sheet = filepath.Join(baseDir, p.Sheet)
	}
	if p.ProjectDir != "" && !filepath.IsAbs(p.ProjectDir) {
		p.ProjectDir = filepath.Join(baseDir, p.ProjectDir)
	}
	if p.Gate.Mode == "" {
		p.Gate.Mode = GateStatic
	}
	if p.Gate.Mode == GateWatch && p.Gate.TimeoutSec == 0 {
		p.Gate.TimeoutSec = DefaultWatchTimeoutSec
	}
	p.Tools = p.Tools.WithDefaults()
}

// Validate проверяет параметры.
func (p *Params) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	if p.Gate.Mode == GateWatch && p.Gate.Expected == nil {
		return fmt.Errorf("%w: %w", ErrInvalidParams, ErrExpectedCountRequired)
	}
	if p.Gate.Mode == GateWatch && p.Gate.TimeoutSec < 1 {
		return fmt.Errorf("%w: %w", ErrInvalidParams, ErrWatchTimeoutRequired)
	}
	return nil
}
