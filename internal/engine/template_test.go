package engine

import (
	"errors"
	"strings"
	"testing"
)

func TestRender(t *testing.T) {
	vars := Vars{
		"output":  "/work/40_transformed/PRJEB1_merged.vcf.gz",
		"threads": 3,
		"empty":   "",
	}

	tests := []struct {
		name     string
		template string
		expected string
	}{
		{"plain", "bcftools", "bcftools"},
		{"variable", "{{ .output }}", "/work/40_transformed/PRJEB1_merged.vcf.gz"},
		{"int", "--threads={{ .threads }}", "--threads=3"},
		{"base", "{{ base .output }}", "PRJEB1_merged.vcf.gz"},
		{"dir", "{{ dir .output }}", "/work/40_transformed"},
		{"trimSuffix", `{{ trimSuffix ".gz" .output }}`, "/work/40_transformed/PRJEB1_merged.vcf"},
		{"default", `{{ default "x" .empty }}`, "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.template, vars)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestRender_MissingKey(t *testing.T) {
	_, err := Render("{{ .nope }}", Vars{})
	if !errors.Is(err, ErrTemplateRender) {
		t.Errorf("expected ErrTemplateRender, got %v", err)
	}
}

func TestRender_InvalidTemplate(t *testing.T) {
	_, err := Render("{{ .output", Vars{})
	if !errors.Is(err, ErrTemplateParse) {
		t.Errorf("expected ErrTemplateParse, got %v", err)
	}
}

func TestRenderArgs(t *testing.T) {
	argv := []string{
		"bcftools", "merge",
		"--file-list", "{{ .file_list }}",
		"--threads", "{{ .threads }}",
		"{{ .extra }}",
		"-o", "{{ .output }}",
	}

	got, err := RenderArgs(argv, Vars{
		"file_list": "/logs/with space/list.txt",
		"threads":   3,
		"extra":     "",
		"output":    "/out/merged.vcf.gz",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "bcftools|merge|--file-list|/logs/with space/list.txt|--threads|3|-o|/out/merged.vcf.gz"
	if strings.Join(got, "|") != want {
		t.Errorf("expected %s, got %s", want, strings.Join(got, "|"))
	}
}

func TestRenderArgs_Empty(t *testing.T) {
	if _, err := RenderArgs(nil, Vars{}); !errors.Is(err, ErrTemplateRender) {
		t.Errorf("expected ErrTemplateRender for empty argv, got %v", err)
	}
	if _, err := RenderArgs([]string{"{{ .x }}"}, Vars{"x": ""}); !errors.Is(err, ErrTemplateRender) {
		t.Errorf("expected ErrTemplateRender for argv rendered empty, got %v", err)
	}
}

func TestMustRender(t *testing.T) {
	if got := MustRender("{{ upper .x }}", Vars{"x": "none"}); got != "NONE" {
		t.Errorf("expected NONE, got %s", got)
	}

	defer func() {
		if recover() == nil {
			t.Error("MustRender should panic on error")
		}
	}()
	MustRender("{{ .missing }}", Vars{})
}
