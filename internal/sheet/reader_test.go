package sheet

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shaiso/varflow/internal/domain"
	"github.com/shaiso/varflow/internal/validate"
)

const header = "vcf_file,fasta,analysis_accession,db_name,vep_version,vep_cache_version,vep_species,aggregation\n"

func TestRead_CSV(t *testing.T) {
	input := header +
		"/data/a.vcf.gz,/ref/g.fa,ERZ1,eva_db,104,104,Homo sapiens,None\n" +
		"b.vcf.gz,ref/g.fa,ERZ1,eva_db,,,,basic\n"

	items, err := Read(strings.NewReader(input), "/project/30_eva_valid")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	a := items[0]
	if a.Row != 1 || a.SourceFile != "/data/a.vcf.gz" || a.GroupKey != "ERZ1" {
		t.Errorf("unexpected first item: %+v", a)
	}
	if a.AggregationMode != domain.AggregationNone {
		t.Errorf("aggregation should be lowercased, got %q", a.AggregationMode)
	}
	if a.AnnotationSpecies != "homo_sapiens" {
		t.Errorf("species should be normalized, got %q", a.AnnotationSpecies)
	}
	if !a.AnnotationEnabled() {
		t.Error("annotation should be enabled for row 1")
	}

	b := items[1]
	if b.SourceFile != "/project/30_eva_valid/b.vcf.gz" {
		t.Errorf("relative vcf should be resolved, got %s", b.SourceFile)
	}
	if b.ReferenceFile != "/project/30_eva_valid/ref/g.fa" {
		t.Errorf("relative fasta should be resolved, got %s", b.ReferenceFile)
	}
	if b.AnnotationEnabled() {
		t.Error("annotation should be disabled for row 2")
	}
}

func TestRead_TSVDetected(t *testing.T) {
	input := strings.ReplaceAll(header, ",", "\t") +
		"/data/a,b.vcf.gz\t/ref/g.fa\tERZ1\teva_db\t\t\t\tnone\n"

	items, err := Read(strings.NewReader(input), "/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].SourceFile != "/data/a,b.vcf.gz" {
		t.Errorf("tab delimiter should be detected, got %+v", items)
	}
}

func TestRead_MissingColumns(t *testing.T) {
	_, err := Read(strings.NewReader("vcf_file,fasta\n/a,/b\n"), "/")
	if !errors.Is(err, ErrMissingColumns) {
		t.Fatalf("expected ErrMissingColumns, got %v", err)
	}
	if !strings.Contains(err.Error(), "analysis_accession") || !strings.Contains(err.Error(), "aggregation") {
		t.Errorf("error should name missing columns: %v", err)
	}
}

func TestRead_Empty(t *testing.T) {
	if _, err := Read(strings.NewReader(""), "/"); !errors.Is(err, ErrEmptySheet) {
		t.Errorf("expected ErrEmptySheet, got %v", err)
	}
}

func TestRead_InvalidRowsExcluded(t *testing.T) {
	input := header +
		"/data/a.vcf.gz,/ref/g.fa,ERZ1,eva_db,,,,none\n" +
		"/data/b.vcf.gz,,ERZ1,eva_db,,,,none\n" +
		"/data/c.vcf.gz,/ref/g.fa,ERZ2,eva_db,,,,\n"

	items, err := Read(strings.NewReader(input), "/")

	// Строка без режима агрегации остаётся: её отклонит классификатор
	if len(items) != 2 {
		t.Fatalf("expected 2 valid items, got %d", len(items))
	}
	if items[1].AggregationMode != "" {
		t.Error("missing mode should be passed through empty")
	}

	var rowErr *RowError
	if !errors.As(err, &rowErr) {
		t.Fatalf("expected *RowError, got %v", err)
	}
	if rowErr.Row != 2 {
		t.Errorf("expected row 2, got %d", rowErr.Row)
	}
	if !errors.Is(err, ErrInvalidRow) {
		t.Error("error should wrap ErrInvalidRow")
	}

	var verr *validate.Error
	if !errors.As(err, &verr) || verr.Fields[0].Field != "fasta" {
		t.Errorf("expected fasta validation error, got %v", err)
	}
}

func TestReadFile_ResolvesAgainstSheetDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sheet.csv")
	content := header + "../in/x.vcf.gz,/ref/g.fa,ERZ1,eva_db,,,,none\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	items, err := ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := filepath.Join(filepath.Dir(dir), "in", "x.vcf.gz")
	if items[0].SourceFile != want {
		t.Errorf("expected %s, got %s", want, items[0].SourceFile)
	}
}

func TestNormalizeSpecies(t *testing.T) {
	tests := map[string]string{
		"Homo sapiens":           "homo_sapiens",
		"  Bos   taurus ":        "bos_taurus",
		"homo_sapiens":           "homo_sapiens",
		"":                       "",
		"Canis lupus familiaris": "canis_lupus_familiaris",
	}
	for in, want := range tests {
		if got := NormalizeSpecies(in); got != want {
			t.Errorf("NormalizeSpecies(%q) = %q, want %q", in, got, want)
		}
	}
}
