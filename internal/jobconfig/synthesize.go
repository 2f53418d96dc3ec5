package jobconfig

import (
	"maps"
	"path"
	"path/filepath"
	"strings"

	"github.com/shaiso/varflow/internal/domain"
)

// Ключи свойств eva-pipeline.
const (
	KeyJobNames          = "spring.batch.job.names"
	KeyAggregation       = "input.vcf.aggregation"
	KeyDatabase          = "spring.data.mongodb.database"
	KeyFasta             = "input.fasta"
	KeyVCF               = "input.vcf"
	KeyAnnotationSkip    = "annotation.skip"
	KeyVEPVersion        = "app.vep.version"
	KeyVEPPath           = "app.vep.path"
	KeyVEPCacheVersion   = "app.vep.cache.version"
	KeyVEPCacheSpecies   = "app.vep.cache.species"
	KeyAccessionVCF      = "parameters.vcf"
	KeyAccessionOutput   = "parameters.outputVcf"
	KeyAccessionAggr     = "parameters.vcfAggregation"
	KeyAccessionFasta    = "parameters.fasta"
	KeyAccessionProject  = "parameters.projectAccession"
	KeyAccessionInstance = "accessioning.instanceId"
)

// vepPrefix — пространство свойств аннотации VEP.
const vepPrefix = "app.vep."

// JobNames — имена Spring Batch заданий.
type JobNames struct {
	AnnotateOnly string
	Genotyped    string
	Aggregated   string
	Accession    string
}

// DefaultJobNames возвращает стандартные имена заданий.
func DefaultJobNames() JobNames {
	return JobNames{
		AnnotateOnly: "annotate-variants-job",
		Genotyped:    "genotyped-vcf-job",
		Aggregated:   "aggregated-vcf-job",
		Accession:    "create-subsnp-accession-job",
	}
}

// Synthesizer вычисляет конфигурацию задания для одного файла.
//
// Результат зависит только от аргументов и полей Synthesizer:
// одинаковый вход даёт одинаковый TaskConfig.
type Synthesizer struct {
	// VEPRoot — каталог с установками VEP (ensembl-vep-release-<version>).
	VEPRoot string

	// AnnotateOnly — только аннотация уже загруженных вариантов.
	AnnotateOnly bool

	// JobNames — имена заданий. Пустые поля заменяются значениями по умолчанию.
	JobNames JobNames
}

// New создаёт Synthesizer с заполненными значениями по умолчанию.
func New(vepRoot string, annotateOnly bool) *Synthesizer {
	return &Synthesizer{
		VEPRoot:      vepRoot,
		AnnotateOnly: annotateOnly,
		JobNames:     DefaultJobNames(),
	}
}

// JobName выбирает задание: annotate-only, затем по режиму агрегации.
func (s *Synthesizer) JobName(mode domain.AggregationMode) string {
	names := s.names()
	switch {
	case s.AnnotateOnly:
		return names.AnnotateOnly
	case mode == domain.AggregationNone:
		return names.Genotyped
	default:
		return names.Aggregated
	}
}

// Synthesize строит конфигурацию загрузки: базовые свойства, затем
// фиксированные производные поля, затем ровно одна ветка аннотации.
// Без аннотации свойства app.vep.* из базы отбрасываются.
func (s *Synthesizer) Synthesize(base map[string]string, item domain.WorkItem, mode domain.AggregationMode) (TaskConfig, error) {
	if err := requireAbsolute(item.SourceFile, KeyVCF, item.SourceFile); err != nil {
		return TaskConfig{}, err
	}
	if err := requireAbsolute(item.SourceFile, KeyFasta, item.ReferenceFile); err != nil {
		return TaskConfig{}, err
	}

	if !item.AnnotationEnabled() {
		base = withoutPrefix(base, vepPrefix)
	}

	b := NewBuilder(base).WithLayer(map[string]string{
		KeyJobNames:    s.JobName(mode),
		KeyAggregation: mode.Upper(),
		KeyDatabase:    item.DatabaseName,
		KeyFasta:       item.ReferenceFile,
		KeyVCF:         item.SourceFile,
	})

	if !item.AnnotationEnabled() {
		return b.With(KeyAnnotationSkip, "true").Build(), nil
	}

	if s.VEPRoot == "" {
		return TaskConfig{}, &SynthesisError{SourceFile: item.SourceFile, Key: KeyVEPPath, Err: ErrMissingProperty}
	}

	return b.WithLayer(map[string]string{
		KeyAnnotationSkip:  "false",
		KeyVEPVersion:      item.AnnotationVersion,
		KeyVEPPath:         VEPPath(s.VEPRoot, item.AnnotationVersion),
		KeyVEPCacheVersion: item.AnnotationCacheVersion,
		KeyVEPCacheSpecies: item.AnnotationSpecies,
	}).Build(), nil
}

// SynthesizeAccession строит конфигурацию accession для одного файла.
// outputVCF — путь результата в публичном каталоге.
func (s *Synthesizer) SynthesizeAccession(base map[string]string, item domain.WorkItem, outputVCF string) (TaskConfig, error) {
	if err := requireAbsolute(item.SourceFile, KeyAccessionVCF, item.SourceFile); err != nil {
		return TaskConfig{}, err
	}
	if err := requireAbsolute(item.SourceFile, KeyAccessionFasta, item.ReferenceFile); err != nil {
		return TaskConfig{}, err
	}
	if err := requireAbsolute(item.SourceFile, KeyAccessionOutput, outputVCF); err != nil {
		return TaskConfig{}, err
	}

	return NewBuilder(base).WithLayer(map[string]string{
		KeyJobNames:        s.names().Accession,
		KeyAccessionVCF:    item.SourceFile,
		KeyAccessionOutput: outputVCF,
		KeyAccessionAggr:   item.AggregationMode.Upper(),
		KeyAccessionFasta:  item.ReferenceFile,
	}).Build(), nil
}

// withoutPrefix возвращает копию props без ключей с префиксом prefix.
func withoutPrefix(props map[string]string, prefix string) map[string]string {
	out := maps.Clone(props)
	maps.DeleteFunc(out, func(key, _ string) bool {
		return strings.HasPrefix(key, prefix)
	})
	return out
}

// VEPPath возвращает путь исполняемого файла VEP заданной версии.
func VEPPath(root, version string) string {
	return path.Join(root, "ensembl-vep-release-"+version, "vep")
}

func (s *Synthesizer) names() JobNames {
	names := s.JobNames
	def := DefaultJobNames()
	if names.AnnotateOnly == "" {
		names.AnnotateOnly = def.AnnotateOnly
	}
	if names.Genotyped == "" {
		names.Genotyped = def.Genotyped
	}
	if names.Aggregated == "" {
		names.Aggregated = def.Aggregated
	}
	if names.Accession == "" {
		names.Accession = def.Accession
	}
	return names
}

func requireAbsolute(sourceFile, key, p string) error {
	if p == "" {
		return &SynthesisError{SourceFile: sourceFile, Key: key, Err: ErrMissingProperty}
	}
	if !filepath.IsAbs(p) {
		return &SynthesisError{SourceFile: sourceFile, Key: key, Err: ErrRelativePath}
	}
	return nil
}
