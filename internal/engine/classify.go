package engine

import "github.com/shaiso/varflow/internal/domain"

// Имена классов маршрутизации.
const (
	// ClassGenotyped — файлы с генотипами сэмплов.
	ClassGenotyped = "genotyped"

	// ClassAggregated — файлы с агрегированными частотами.
	ClassAggregated = "aggregated"
)

// Classes — таблица режим агрегации → класс.
type Classes map[domain.AggregationMode]string

// DefaultClasses возвращает стандартную таблицу: none → genotyped, basic → aggregated.
// Возвращается новая копия, её можно расширять.
func DefaultClasses() Classes {
	return Classes{
		domain.AggregationNone:  ClassGenotyped,
		domain.AggregationBasic: ClassAggregated,
	}
}

// Partition — результат классификации: класс → строки в исходном порядке.
type Partition map[string][]domain.WorkItem

// Count возвращает общее количество классифицированных строк.
func (p Partition) Count() int {
	n := 0
	for _, items := range p {
		n += len(items)
	}
	return n
}

// Classify разбивает строки на классы по точному совпадению AggregationMode.
//
// Строка с пустым или неизвестным режимом исключается и возвращается
// как *ClassificationError; остальные строки классифицируются.
// nil classes означает DefaultClasses().
func Classify(rows []domain.WorkItem, classes Classes) (Partition, []error) {
	if classes == nil {
		classes = DefaultClasses()
	}

	partition := make(Partition)
	var errs []error

	for i, row := range rows {
		if row.AggregationMode == "" {
			errs = append(errs, &ClassificationError{
				SourceFile: row.SourceFile,
				Row:        row.Row,
				Index:      i,
				Err:        ErrMissingAggregationMode,
			})
			continue
		}

		class, ok := classes[row.AggregationMode]
		if !ok {
			errs = append(errs, &ClassificationError{
				SourceFile: row.SourceFile,
				Row:        row.Row,
				Index:      i,
				Mode:       row.AggregationMode,
				Err:        ErrUnknownAggregationMode,
			})
			continue
		}

		partition[class] = append(partition[class], row)
	}

	return partition, errs
}
