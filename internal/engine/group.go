package engine

import (
	"errors"

	"github.com/shaiso/varflow/internal/domain"
)

// KeyFunc извлекает ключ группировки из строки.
type KeyFunc func(domain.WorkItem) string

// ByGroupKey — группировка по accession анализа.
func ByGroupKey(item domain.WorkItem) string {
	return item.GroupKey
}

// ancillaryFields — поля, которые должны совпадать у всех участников группы.
// Порядок определяет, какое расхождение будет названо в ошибке.
var ancillaryFields = []struct {
	name string
	get  func(domain.WorkItem) string
}{
	{"ReferenceFile", func(w domain.WorkItem) string { return w.ReferenceFile }},
	{"DatabaseName", func(w domain.WorkItem) string { return w.DatabaseName }},
	{"AnnotationVersion", func(w domain.WorkItem) string { return w.AnnotationVersion }},
	{"AnnotationCacheVersion", func(w domain.WorkItem) string { return w.AnnotationCacheVersion }},
	{"AnnotationSpecies", func(w domain.WorkItem) string { return w.AnnotationSpecies }},
	{"AggregationMode", func(w domain.WorkItem) string { return string(w.AggregationMode) }},
}

// GroupBy группирует строки по ключу.
//
// Порядок групп — порядок первого появления ключа, порядок участников —
// исходный. Группа с расходящимися вспомогательными полями не
// возвращается; вместо неё в ошибку (errors.Join) попадает *GroupError.
// Остальные группы возвращаются в любом случае.
func GroupBy(rows []domain.WorkItem, keyFn KeyFunc) ([]domain.Group, error) {
	if keyFn == nil {
		keyFn = ByGroupKey
	}

	index := make(map[string]int)
	groups := make([]domain.Group, 0)

	for _, row := range rows {
		key := keyFn(row)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, domain.Group{GroupKey: key})
		}
		groups[i].Members = append(groups[i].Members, row)
		groups[i].MemberCount++
	}

	result := make([]domain.Group, 0, len(groups))
	var errs []error
	for _, g := range groups {
		if field := divergentField(g); field != "" {
			errs = append(errs, &GroupError{GroupKey: g.GroupKey, Field: field})
			continue
		}
		result = append(result, g)
	}

	return result, errors.Join(errs...)
}

// divergentField возвращает имя первого расходящегося поля или "".
func divergentField(g domain.Group) string {
	first := g.First()
	for _, f := range ancillaryFields {
		want := f.get(first)
		for _, m := range g.Members[1:] {
			if f.get(m) != want {
				return f.name
			}
		}
	}
	return ""
}
