package pipeline

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shaiso/varflow/internal/domain"
	"github.com/shaiso/varflow/internal/jobconfig"
)

// Суффиксы результатов accession в публичном каталоге.
const (
	accessionedSuffix = ".accessioned.vcf"

	// WatchPattern — шаблон файлов, появление которых ждёт watch-gate.
	// .csi строится последним шагом цепочки файла.
	WatchPattern = "*" + accessionedSuffix + ".gz.csi"
)

// ID узлов accession.
const (
	accessionGateID    = "accession.gate"
	accessionPublishID = "accession.publish"
	accessionSummaryID = "accession.summary"
)

// planAccession строит граф accession.
//
// На файл: stage в 30_eva_valid → write-config → accession → compress →
// index (tbi, csi).
// Затем gate: static по всем индексам или watch на .csi в публичном
// каталоге. После gate — publish (если задан) и summary.
func (p *Planner) planAccession(plan *Plan, items []domain.WorkItem) {
	public := p.Layout.Public()
	logs := p.Layout.Logs()
	workDir := p.Layout.Accessions()

	base := jobconfig.NewBuilder(p.Params.AccessionProperties).WithLayer(map[string]string{
		jobconfig.KeyAccessionProject:  p.Params.ProjectAccession,
		jobconfig.KeyAccessionInstance: strconv.Itoa(p.Params.InstanceID),
	}).Build().Map()

	var indexes, csi []string
	seen := make(map[string]bool)
	staged := make(map[string]bool)
	for _, item := range items {
		key := uniqueKey(nodeKey(fileStem(item.SourceFile)), item.Row, seen)
		outputVCF := filepath.Join(public, key+accessionedSuffix)

		validPath, stage := p.stageFile(item, staged)
		cfg, err := p.Synth.SynthesizeAccession(base, item.WithSourceFile(validPath), outputVCF)
		if err != nil {
			p.Logger.Warn("file rejected", "row", item.Row, "error", err)
			plan.reject(StageSynthesize, err)
			continue
		}
		plan.Items = append(plan.Items, item)

		label := item.SourceFile
		configName := "accession_" + key + ".properties"
		configID := key + ".config"
		accessionID := key + ".accession"
		compressID := key + ".compress"
		compressed := outputVCF + ".gz"

		plan.add(stage)
		plan.add(domain.TaskDef{
			ID:        configID,
			Kind:      domain.KindWriteConfig,
			DependsOn: []string{stage.ID},
			Label:     label,
			Args: map[string]any{
				"name":       configName,
				"work_dir":   workDir,
				"logs_dir":   logs,
				"properties": cfg.Map(),
			},
		})
		plan.add(domain.TaskDef{
			ID:        accessionID,
			Kind:      domain.KindAccession,
			DependsOn: []string{configID},
			Label:     label,
			Args: map[string]any{
				"config":   filepath.Join(workDir, configName),
				"output":   outputVCF,
				"logs_dir": logs,
			},
		})
		plan.add(domain.TaskDef{
			ID:        compressID,
			Kind:      domain.KindCompress,
			DependsOn: []string{accessionID},
			Label:     label,
			Args:      map[string]any{"input": outputVCF, "logs_dir": logs},
		})
		for _, format := range []string{"tbi", "csi"} {
			id := key + "." + format
			plan.add(domain.TaskDef{
				ID:        id,
				Kind:      domain.KindIndex,
				DependsOn: []string{compressID},
				Label:     label,
				Args:      map[string]any{"input": compressed, "format": format, "logs_dir": logs},
			})
			indexes = append(indexes, id)
			if format == "csi" {
				csi = append(csi, id)
			}
		}
	}

	if len(plan.Items) == 0 {
		return
	}

	plan.add(p.accessionGate(indexes, csi))
	last := accessionGateID

	if len(p.Params.Tools.Publish) > 0 {
		plan.add(domain.TaskDef{
			ID:        accessionPublishID,
			Kind:      domain.KindPublish,
			DependsOn: []string{last},
			Label:     p.Params.ProjectAccession,
			Args:      map[string]any{"accession": p.Params.ProjectAccession, "logs_dir": logs},
		})
		last = accessionPublishID
	}

	plan.add(domain.TaskDef{
		ID:        accessionSummaryID,
		Kind:      domain.KindSummary,
		DependsOn: []string{last},
		Label:     string(domain.PipelineAccession),
		Args: map[string]any{
			"path":       filepath.Join(logs, "accession_summary.yaml"),
			"project":    p.Params.ProjectAccession,
			"files":      len(plan.Items),
			"public_dir": public,
			"gate_mode":  string(p.Params.Gate.Mode),
		},
	})
}

// accessionGate строит gate-узел по режиму из параметров.
//
// watch-gate не зависит от узлов графа: он стартует вместе с run,
// чтобы файлы, появившиеся раньше него, не были пропущены. Узлы .csi
// передаются как Producers: по ним оркестратор прерывает ожидание,
// когда успешных csi-индексов заведомо меньше expected.
func (p *Planner) accessionGate(indexes, csi []string) domain.TaskDef {
	if p.Params.Gate.Mode == GateWatch {
		args := map[string]any{
			"dir":         p.Layout.Public(),
			"pattern":     WatchPattern,
			"timeout_sec": p.Params.Gate.TimeoutSec,
		}
		if p.Params.Gate.Expected != nil {
			args["expected"] = *p.Params.Gate.Expected
		}
		return domain.TaskDef{
			ID:        accessionGateID,
			Kind:      domain.KindWatchGate,
			Label:     string(domain.PipelineAccession),
			Args:      args,
			Producers: csi,
		}
	}

	return domain.TaskDef{
		ID:        accessionGateID,
		Kind:      domain.KindStaticGate,
		DependsOn: indexes,
		Label:     string(domain.PipelineAccession),
	}
}

// fileStem — имя файла без .vcf.gz / .vcf.
func fileStem(path string) string {
	name := filepath.Base(path)
	for _, ext := range []string{".gz", ".bgz", ".vcf"} {
		name = strings.TrimSuffix(name, ext)
	}
	return name
}
