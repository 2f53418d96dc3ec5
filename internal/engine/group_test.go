package engine

import (
	"errors"
	"testing"

	"github.com/shaiso/varflow/internal/domain"
)

func TestGroupBy_StableOrder(t *testing.T) {
	rows := []domain.WorkItem{
		item(1, "/in/1.vcf.gz", "A", domain.AggregationNone),
		item(2, "/in/2.vcf.gz", "B", domain.AggregationNone),
		item(3, "/in/3.vcf.gz", "A", domain.AggregationNone),
	}

	groups, err := GroupBy(rows, ByGroupKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].GroupKey != "A" || groups[1].GroupKey != "B" {
		t.Errorf("expected group order [A B], got [%s %s]", groups[0].GroupKey, groups[1].GroupKey)
	}

	files := groups[0].Files()
	if len(files) != 2 || files[0] != "/in/1.vcf.gz" || files[1] != "/in/3.vcf.gz" {
		t.Errorf("group A should contain [1 3] in input order, got %v", files)
	}
	for _, g := range groups {
		if g.MemberCount != len(g.Members) {
			t.Errorf("group %s: MemberCount %d != len(Members) %d", g.GroupKey, g.MemberCount, len(g.Members))
		}
	}
}

func TestGroupBy_NotHomogeneous(t *testing.T) {
	diverging := item(3, "/in/3.vcf.gz", "A", domain.AggregationNone)
	diverging.ReferenceFile = "/ref/other.fa"

	rows := []domain.WorkItem{
		item(1, "/in/1.vcf.gz", "A", domain.AggregationNone),
		item(2, "/in/2.vcf.gz", "B", domain.AggregationNone),
		diverging,
	}

	groups, err := GroupBy(rows, nil)

	if len(groups) != 1 || groups[0].GroupKey != "B" {
		t.Errorf("only group B should be returned, got %v", groups)
	}

	var ge *GroupError
	if !errors.As(err, &ge) {
		t.Fatalf("expected *GroupError, got %v", err)
	}
	if ge.GroupKey != "A" || ge.Field != "ReferenceFile" {
		t.Errorf("unexpected error fields: %+v", ge)
	}
	if !errors.Is(err, ErrGroupNotHomogeneous) {
		t.Error("error should wrap ErrGroupNotHomogeneous")
	}
}

func TestGroupBy_AnnotationDivergence(t *testing.T) {
	a := item(1, "/in/1.vcf.gz", "A", domain.AggregationNone)
	a.AnnotationVersion = "104"
	a.AnnotationCacheVersion = "104"
	b := a
	b.SourceFile = "/in/2.vcf.gz"
	b.AnnotationCacheVersion = "103"

	_, err := GroupBy([]domain.WorkItem{a, b}, nil)

	var ge *GroupError
	if !errors.As(err, &ge) || ge.Field != "AnnotationCacheVersion" {
		t.Errorf("expected AnnotationCacheVersion divergence, got %v", err)
	}
}

func TestGroupBy_Empty(t *testing.T) {
	groups, err := GroupBy(nil, nil)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if len(groups) != 0 {
		t.Errorf("expected no groups, got %d", len(groups))
	}
}
