package validate

import (
	"errors"
	"strings"
	"testing"
)

type sample struct {
	Name  string `yaml:"name" validate:"required"`
	Sheet string `csv:"vcf_file" validate:"required"`
	Mode  string `yaml:"mode" validate:"omitempty,oneof=static watch"`
}

func TestStruct_Valid(t *testing.T) {
	if err := Struct(sample{Name: "x", Sheet: "a.vcf"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestStruct_FieldNamesFromTags(t *testing.T) {
	err := Struct(sample{Mode: "both"})

	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if len(verr.Fields) != 3 {
		t.Fatalf("expected 3 field errors, got %d: %v", len(verr.Fields), verr)
	}

	fields := map[string]bool{}
	for _, f := range verr.Fields {
		fields[f.Field] = true
	}
	for _, want := range []string{"name", "vcf_file", "mode"} {
		if !fields[want] {
			t.Errorf("expected field %s in %v", want, verr.Fields)
		}
	}
	if !strings.Contains(err.Error(), "vcf_file is a required field") {
		t.Errorf("expected translated message, got %q", err.Error())
	}
}
