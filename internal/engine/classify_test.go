package engine

import (
	"errors"
	"testing"

	"github.com/shaiso/varflow/internal/domain"
)

func item(row int, file, key string, mode domain.AggregationMode) domain.WorkItem {
	return domain.WorkItem{
		Row:             row,
		SourceFile:      file,
		ReferenceFile:   "/ref/genome.fa",
		GroupKey:        key,
		DatabaseName:    "eva_hsapiens_grch38",
		AggregationMode: mode,
	}
}

func TestClassify_DefaultClasses(t *testing.T) {
	rows := []domain.WorkItem{
		item(1, "/in/a.vcf.gz", "ERZ1", domain.AggregationNone),
		item(2, "/in/b.vcf.gz", "ERZ1", domain.AggregationBasic),
		item(3, "/in/c.vcf.gz", "ERZ2", domain.AggregationNone),
	}

	partition, errs := Classify(rows, nil)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	genotyped := partition[ClassGenotyped]
	if len(genotyped) != 2 || genotyped[0].Row != 1 || genotyped[1].Row != 3 {
		t.Errorf("genotyped should be rows [1 3] in order, got %v", genotyped)
	}
	if len(partition[ClassAggregated]) != 1 {
		t.Errorf("expected 1 aggregated row, got %d", len(partition[ClassAggregated]))
	}
	if partition.Count() != 3 {
		t.Errorf("expected count 3, got %d", partition.Count())
	}
}

func TestClassify_InvalidRowsReported(t *testing.T) {
	rows := []domain.WorkItem{
		item(1, "/in/a.vcf.gz", "ERZ1", domain.AggregationNone),
		item(2, "/in/b.vcf.gz", "ERZ1", "frequencies"),
		item(3, "/in/c.vcf.gz", "ERZ1", ""),
		item(4, "/in/d.vcf.gz", "ERZ1", "NONE"),
	}

	partition, errs := Classify(rows, nil)

	if partition.Count() != 1 {
		t.Errorf("only row 1 should be classified, got %d", partition.Count())
	}
	if len(errs) != 3 {
		t.Fatalf("expected 3 errors, got %d: %v", len(errs), errs)
	}

	var ce *ClassificationError
	if !errors.As(errs[0], &ce) {
		t.Fatalf("expected *ClassificationError, got %T", errs[0])
	}
	if ce.Row != 2 || ce.Index != 1 || ce.SourceFile != "/in/b.vcf.gz" || ce.Mode != "frequencies" {
		t.Errorf("unexpected error fields: %+v", ce)
	}
	if !errors.Is(errs[0], ErrUnknownAggregationMode) {
		t.Error("row 2 should wrap ErrUnknownAggregationMode")
	}
	if !errors.Is(errs[1], ErrMissingAggregationMode) {
		t.Error("row 3 should wrap ErrMissingAggregationMode")
	}
	// Сравнение точное: регистр имеет значение
	if !errors.Is(errs[2], ErrUnknownAggregationMode) {
		t.Error("row 4 should wrap ErrUnknownAggregationMode")
	}
}

func TestClassify_ExtendedClasses(t *testing.T) {
	classes := DefaultClasses()
	classes["frequencies"] = ClassAggregated

	rows := []domain.WorkItem{
		item(1, "/in/a.vcf.gz", "ERZ1", "frequencies"),
	}

	partition, errs := Classify(rows, classes)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(partition[ClassAggregated]) != 1 {
		t.Error("extended mode should be routed to aggregated")
	}

	// Расширение копии не меняет таблицу по умолчанию
	if _, ok := DefaultClasses()["frequencies"]; ok {
		t.Error("DefaultClasses should return a fresh table")
	}
}
