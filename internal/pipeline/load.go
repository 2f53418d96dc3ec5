package pipeline

import (
	"fmt"
	"path/filepath"

	"github.com/shaiso/varflow/internal/domain"
	"github.com/shaiso/varflow/internal/engine"
	"github.com/shaiso/varflow/internal/jobconfig"
	"github.com/shaiso/varflow/internal/telemetry"
)

// Свойства загрузки, общие для всех групп проекта.
const (
	keyStudyID       = "input.study.id"
	keyVCFID         = "input.vcf.id"
	keyOutputDir     = "output.dir"
	keyAnnotationDir = "output.dir.annotation"
	keyStatsDir      = "output.dir.statistics"
)

// ID узлов variant-load.
const (
	loadGateID    = "load.gate"
	loadSummaryID = "load.summary"
)

// planLoad строит граф variant-load.
//
// На файл: stage в 30_eva_valid. На группу: symlink или merge →
// write-config → load. Все load ждёт static gate, после него — summary.
func (p *Planner) planLoad(plan *Plan, items []domain.WorkItem) {
	groups, err := engine.GroupBy(items, engine.ByGroupKey)
	for _, e := range splitJoined(err) {
		p.Logger.Warn("group rejected", "error", e)
		plan.reject(StageGroup, e)
	}

	var loads []string
	keys := make(map[string]bool)
	staged := make(map[string]bool)
	for _, g := range groups {
		loadID, err := p.addLoadGroup(plan, g, keys, staged)
		if err != nil {
			telemetry.WithGroup(p.Logger, g.GroupKey).Warn("group rejected", "error", err)
			plan.reject(StageSynthesize, err)
			continue
		}
		telemetry.ObserveGroup(g.MemberCount)
		plan.Groups = append(plan.Groups, g)
		loads = append(loads, loadID)
	}

	if len(loads) == 0 {
		return
	}

	plan.add(domain.TaskDef{
		ID:        loadGateID,
		Kind:      domain.KindStaticGate,
		DependsOn: loads,
		Label:     string(domain.PipelineLoad),
	})
	plan.add(domain.TaskDef{
		ID:        loadSummaryID,
		Kind:      domain.KindSummary,
		DependsOn: []string{loadGateID},
		Label:     string(domain.PipelineLoad),
		Args: map[string]any{
			"path":      filepath.Join(p.Layout.Logs(), "variant_load_summary.yaml"),
			"project":   p.Params.ProjectAccession,
			"groups":    len(plan.Groups),
			"annotated": p.Params.AnnotateOnly,
		},
	})
}

// addLoadGroup добавляет узлы одной группы и возвращает ID узла load.
// keys и staged — уже занятые ключи групп и размещённых файлов.
// При ошибке синтеза граф не меняется.
func (p *Planner) addLoadGroup(plan *Plan, g domain.Group, keys, staged map[string]bool) (string, error) {
	key := uniqueKey(nodeKey(g.GroupKey), g.First().Row, keys)
	logs := p.Layout.Logs()
	workDir := p.Layout.Transformed()

	// Слияние и ссылка читают файлы из 30_eva_valid
	valid := g
	valid.Members = make([]domain.WorkItem, len(g.Members))
	stages := make([]domain.TaskDef, len(g.Members))
	stageIDs := make([]string, len(g.Members))
	for i, m := range g.Members {
		path, stage := p.stageFile(m, staged)
		valid.Members[i] = m.WithSourceFile(path)
		stages[i] = stage
		stageIDs[i] = stage.ID
	}

	strategy, err := engine.DecideMergeStrategy(valid, filepath.Join(workDir, key+".vcf.gz"))
	if err != nil {
		return "", err
	}

	// Конфигурация описывает файл группы, а не исходные файлы участников
	item := g.First().WithSourceFile(strategy.OutputPath())
	base := jobconfig.NewBuilder(p.Params.Properties).WithLayer(map[string]string{
		keyStudyID:       p.Params.ProjectAccession,
		keyVCFID:         g.GroupKey,
		keyOutputDir:     workDir,
		keyAnnotationDir: p.Layout.Annotation(),
		keyStatsDir:      p.Layout.Stats(),
	}).Build()

	cfg, err := p.Synth.Synthesize(base.Map(), item, item.AggregationMode)
	if err != nil {
		return "", fmt.Errorf("group %s: %w", g.GroupKey, err)
	}

	prepID := key + "." + string(strategy.Kind())
	var prepArgs map[string]any
	switch s := strategy.(type) {
	case engine.Symlink:
		prepArgs = map[string]any{"target": s.Target, "link": s.Link}
	case engine.MergeCommand:
		prepArgs = map[string]any{"files": s.Files, "output": s.Output, "threads": s.Threads, "logs_dir": logs}
	}

	configName := "load_" + key + ".properties"
	configID := key + ".config"
	loadID := key + ".load"

	for _, stage := range stages {
		plan.add(stage)
	}
	plan.add(domain.TaskDef{ID: prepID, Kind: strategy.Kind(), DependsOn: stageIDs, Label: g.GroupKey, Args: prepArgs})
	plan.add(domain.TaskDef{
		ID:        configID,
		Kind:      domain.KindWriteConfig,
		DependsOn: []string{prepID},
		Label:     g.GroupKey,
		Args: map[string]any{
			"name":       configName,
			"work_dir":   workDir,
			"logs_dir":   logs,
			"properties": cfg.Map(),
			"class":      p.Classes[item.AggregationMode],
		},
	})
	plan.add(domain.TaskDef{
		ID:        loadID,
		Kind:      domain.KindLoad,
		DependsOn: []string{configID},
		Label:     g.GroupKey,
		Args: map[string]any{
			"config":   filepath.Join(workDir, configName),
			"logs_dir": logs,
		},
	})

	return loadID, nil
}
