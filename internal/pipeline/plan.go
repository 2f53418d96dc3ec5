package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/shaiso/varflow/internal/domain"
	"github.com/shaiso/varflow/internal/engine"
	"github.com/shaiso/varflow/internal/jobconfig"
	"github.com/shaiso/varflow/internal/sheet"
)

// Plan — граф конвейера и элементы, отброшенные при его построении.
type Plan struct {
	Pipeline domain.PipelineKind  `json:"pipeline"`
	Layout   Layout               `json:"layout"`
	Spec     *domain.PipelineSpec `json:"spec"`

	// Classes — количество принятых строк по классам маршрутизации.
	Classes map[string]int `json:"classes,omitempty"`

	// Groups — группы, получившие узлы (variant-load).
	Groups []domain.Group `json:"groups,omitempty"`

	// Items — файлы, получившие узлы (accession).
	Items []domain.WorkItem `json:"items,omitempty"`

	// Rejected — отброшенные элементы с причиной.
	Rejected []Rejection `json:"rejected,omitempty"`
}

// Empty возвращает true, если в графе нет узлов.
func (p *Plan) Empty() bool {
	return p.Spec == nil || len(p.Spec.Tasks) == 0
}

// Err объединяет все отклонения. nil, если отклонений нет.
func (p *Plan) Err() error {
	errs := make([]error, len(p.Rejected))
	for i, r := range p.Rejected {
		errs[i] = r
	}
	return errors.Join(errs...)
}

func (p *Plan) reject(stage string, err error) {
	r := Rejection{Stage: stage, Err: err}
	p.Rejected = append(p.Rejected, r)
	p.Spec.Rejected = append(p.Spec.Rejected, r.Error())
}

func (p *Plan) add(task domain.TaskDef) {
	p.Spec.Tasks = append(p.Spec.Tasks, task)
}

// Planner строит графы конвейеров из таблицы метаданных.
type Planner struct {
	Params  *Params
	Layout  Layout
	Classes engine.Classes
	Synth   *jobconfig.Synthesizer
	Logger  *slog.Logger
}

// NewPlanner создаёт Planner по параметрам запуска.
func NewPlanner(params *Params, logger *slog.Logger) (*Planner, error) {
	if logger == nil {
		logger = slog.Default()
	}
	layout, err := NewLayout(params.ProjectDir)
	if err != nil {
		return nil, err
	}
	return &Planner{
		Params:  params,
		Layout:  layout,
		Classes: engine.DefaultClasses(),
		Synth:   jobconfig.New(params.VEPRoot, params.AnnotateOnly),
		Logger:  logger,
	}, nil
}

// Plan читает таблицу и строит граф конвейера kind.
//
// Ошибки отдельных строк, групп и файлов не прерывают планирование:
// элемент попадает в Plan.Rejected и не получает узлов.
// Ошибка возвращается, если таблицу нельзя прочитать или в ней
// нет ни одной валидной строки.
func (p *Planner) Plan(kind domain.PipelineKind) (*Plan, error) {
	items, err := sheet.ReadFile(p.Params.Sheet)
	if len(items) == 0 && err != nil {
		return nil, err
	}

	return p.build(kind, items, err)
}

// build строит граф. sheetErr — ошибки строк, отброшенных при чтении.
func (p *Planner) build(kind domain.PipelineKind, items []domain.WorkItem, sheetErr error) (*Plan, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPipeline, kind)
	}

	plan := &Plan{
		Pipeline: kind,
		Layout:   p.Layout,
		Spec: &domain.PipelineSpec{
			Name:  string(kind) + ":" + p.Params.ProjectAccession,
			Retry: p.Params.Retry,
		},
	}

	for _, err := range splitJoined(sheetErr) {
		p.Logger.Warn("sheet row rejected", "error", err)
		plan.reject(StageSheet, err)
	}

	accepted := p.classify(plan, items)

	if kind == domain.PipelineLoad {
		p.planLoad(plan, accepted)
	} else {
		p.planAccession(plan, accepted)
	}

	p.Logger.Info("pipeline planned",
		"pipeline", kind,
		"items", len(items),
		"nodes", len(plan.Spec.Tasks),
		"rejected", len(plan.Rejected),
	)
	return plan, nil
}

// classify отбрасывает строки с неизвестным режимом агрегации.
// Принятые строки возвращаются в исходном порядке.
func (p *Planner) classify(plan *Plan, items []domain.WorkItem) []domain.WorkItem {
	partition, errs := engine.Classify(items, p.Classes)

	rejected := make(map[int]bool, len(errs))
	for _, err := range errs {
		var cerr *engine.ClassificationError
		if errors.As(err, &cerr) {
			rejected[cerr.Index] = true
		}
		p.Logger.Warn("row rejected", "error", err)
		plan.reject(StageClassify, err)
	}

	plan.Classes = make(map[string]int, len(partition))
	for class, rows := range partition {
		plan.Classes[class] = len(rows)
	}

	accepted := make([]domain.WorkItem, 0, partition.Count())
	for i, item := range items {
		if !rejected[i] {
			accepted = append(accepted, item)
		}
	}
	return accepted
}

// stageFile возвращает путь исходного файла в 30_eva_valid и узел,
// который помещает туда ссылку на файл и его индексы .tbi/.csi.
// seen — уже занятые имена в каталоге.
func (p *Planner) stageFile(item domain.WorkItem, seen map[string]bool) (string, domain.TaskDef) {
	base := filepath.Base(item.SourceFile)
	stem := fileStem(base)
	key := uniqueKey(nodeKey(stem), item.Row, seen)
	path := filepath.Join(p.Layout.Valid(), key+base[len(stem):])

	return path, domain.TaskDef{
		ID:    key + ".stage",
		Kind:  domain.KindSymlink,
		Label: item.SourceFile,
		Args: map[string]any{
			"target":  item.SourceFile,
			"link":    path,
			"indexes": true,
		},
	}
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// nodeKey делает из ключа группы или имени файла часть ID узла.
func nodeKey(s string) string {
	key := unsafeChars.ReplaceAllString(s, "_")
	if key == "" {
		return "_"
	}
	return key
}

// uniqueKey добавляет номер строки к повторяющемуся ключу, а если
// занят и он — порядковый суффикс.
func uniqueKey(key string, row int, seen map[string]bool) string {
	unique := key
	for n := 1; seen[unique]; n++ {
		unique = key + "-" + strconv.Itoa(row)
		if n > 1 {
			unique += "-" + strconv.Itoa(n)
		}
	}
	seen[unique] = true
	return unique
}
