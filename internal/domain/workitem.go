package domain

import "strings"

// AggregationMode — режим агрегации VCF-файла (значение колонки aggregation).
//
// Определяет маршрутизацию: genotyped-job для "none",
// aggregated-job для всех остальных режимов.
type AggregationMode string

const (
	// AggregationNone — генотипированные данные (сэмплы в колонках).
	AggregationNone AggregationMode = "none"

	// AggregationBasic — агрегированные частоты без сэмплов.
	AggregationBasic AggregationMode = "basic"
)

// Upper возвращает режим в верхнем регистре (формат input.vcf.aggregation).
func (m AggregationMode) Upper() string {
	return strings.ToUpper(string(m))
}

// WorkItem — одна строка входной таблицы: файл и его метаданные.
//
// WorkItem передаётся по значению и после чтения не изменяется.
// Производные элементы (например, смерженный файл группы) создаются
// через WithSourceFile, исходный элемент при этом не трогается.
type WorkItem struct {
	// Row — номер строки в таблице (с 1, без заголовка). Для атрибуции ошибок.
	Row int `json:"row" yaml:"row"`

	// SourceFile — абсолютный путь к VCF.
	SourceFile string `json:"source_file" yaml:"source_file" validate:"required"`

	// ReferenceFile — абсолютный путь к FASTA референса.
	ReferenceFile string `json:"reference_file" yaml:"reference_file" validate:"required"`

	// GroupKey — ключ группировки (accession анализа).
	GroupKey string `json:"group_key" yaml:"group_key" validate:"required"`

	// DatabaseName — имя базы variant warehouse.
	DatabaseName string `json:"database_name" yaml:"database_name" validate:"required"`

	// AnnotationVersion — версия VEP. Пустая строка отключает аннотацию.
	AnnotationVersion string `json:"annotation_version,omitempty" yaml:"annotation_version,omitempty"`

	// AnnotationCacheVersion — версия кэша VEP.
	AnnotationCacheVersion string `json:"annotation_cache_version,omitempty" yaml:"annotation_cache_version,omitempty"`

	// AnnotationSpecies — вид для кэша VEP (например, "homo_sapiens").
	AnnotationSpecies string `json:"annotation_species,omitempty" yaml:"annotation_species,omitempty"`

	// AggregationMode — режим агрегации. Проверяется классификатором.
	AggregationMode AggregationMode `json:"aggregation_mode" yaml:"aggregation_mode"`
}

// WithSourceFile возвращает копию элемента с другим SourceFile.
func (w WorkItem) WithSourceFile(path string) WorkItem {
	w.SourceFile = path
	return w
}

// AnnotationEnabled возвращает true, если заданы и версия, и версия кэша.
func (w WorkItem) AnnotationEnabled() bool {
	return w.AnnotationVersion != "" && w.AnnotationCacheVersion != ""
}

// Group — набор WorkItem с общим GroupKey.
//
// Создаётся агрегатором групп, после создания не изменяется.
// MemberCount всегда равен len(Members).
type Group struct {
	GroupKey    string     `json:"group_key"`
	Members     []WorkItem `json:"members"`
	MemberCount int        `json:"member_count"`
}

// First возвращает первого участника группы.
// Его вспомогательные поля (референс, база, аннотация) представляют всю группу.
func (g Group) First() WorkItem {
	return g.Members[0]
}

// Files возвращает пути участников в исходном порядке.
func (g Group) Files() []string {
	files := make([]string, len(g.Members))
	for i, m := range g.Members {
		files[i] = m.SourceFile
	}
	return files
}
