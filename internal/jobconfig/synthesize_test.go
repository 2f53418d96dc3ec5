package jobconfig

import (
	"errors"
	"strings"
	"testing"

	"github.com/shaiso/varflow/internal/domain"
)

func testItem() domain.WorkItem {
	return domain.WorkItem{
		Row:             1,
		SourceFile:      "/data/40_transformed/ERZ1_merged.vcf.gz",
		ReferenceFile:   "/ref/GCA_000001405.15.fa",
		GroupKey:        "ERZ1",
		DatabaseName:    "eva_hsapiens_grch38",
		AggregationMode: domain.AggregationNone,
	}
}

func annotated(item domain.WorkItem) domain.WorkItem {
	item.AnnotationVersion = "104"
	item.AnnotationCacheVersion = "104"
	item.AnnotationSpecies = "homo_sapiens"
	return item
}

func TestSynthesize_FixedFields(t *testing.T) {
	s := New("/opt/vep", false)
	base := map[string]string{
		"app.opencga.path":   "/opt/opencga",
		"input.vcf":          "overridden",
		"db.hosts-with-port": "mongo:27017",
	}

	cfg, err := s.Synthesize(base, testItem(), domain.AggregationNone)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[string]string{
		KeyJobNames:          "genotyped-vcf-job",
		KeyAggregation:       "NONE",
		KeyDatabase:          "eva_hsapiens_grch38",
		KeyFasta:             "/ref/GCA_000001405.15.fa",
		KeyVCF:               "/data/40_transformed/ERZ1_merged.vcf.gz",
		KeyAnnotationSkip:    "true",
		"app.opencga.path":   "/opt/opencga",
		"db.hosts-with-port": "mongo:27017",
	}
	for key, value := range want {
		if got := cfg.Value(key); got != value {
			t.Errorf("%s: expected %q, got %q", key, value, got)
		}
	}
	if cfg.Len() != len(want) {
		t.Errorf("expected %d properties, got %d: %v", len(want), cfg.Len(), cfg.Keys())
	}

	// База не изменилась
	if base["input.vcf"] != "overridden" {
		t.Error("base properties must not be mutated")
	}
}

func TestSynthesize_Deterministic(t *testing.T) {
	s := New("/opt/vep", false)
	base := map[string]string{"a": "1", "b": "2"}
	item := annotated(testItem())

	first, err := s.Synthesize(base, item, domain.AggregationNone)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := s.Synthesize(base, item, domain.AggregationNone)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !first.Equal(second) {
		t.Error("same input should produce equal configs")
	}

	a, _ := Encode(first)
	b, _ := Encode(second)
	if string(a) != string(b) {
		t.Error("same input should produce identical bytes")
	}
}

func TestSynthesize_AnnotationGating(t *testing.T) {
	s := New("/opt/vep", false)
	vepKeys := []string{KeyVEPVersion, KeyVEPPath, KeyVEPCacheVersion, KeyVEPCacheSpecies}

	tests := []struct {
		name         string
		version      string
		cacheVersion string
		enabled      bool
	}{
		{"both set", "104", "104", true},
		{"only version", "104", "", false},
		{"only cache", "", "104", false},
		{"neither", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := testItem()
			item.AnnotationVersion = tt.version
			item.AnnotationCacheVersion = tt.cacheVersion
			item.AnnotationSpecies = "homo_sapiens"

			cfg, err := s.Synthesize(nil, item, domain.AggregationNone)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			present := 0
			for _, key := range vepKeys {
				if cfg.Has(key) {
					present++
				}
			}

			if tt.enabled {
				if present != len(vepKeys) {
					t.Errorf("expected all %d app.vep keys, got %d", len(vepKeys), present)
				}
				if cfg.Value(KeyAnnotationSkip) != "false" {
					t.Errorf("annotation.skip should be false, got %q", cfg.Value(KeyAnnotationSkip))
				}
				if cfg.Value(KeyVEPPath) != "/opt/vep/ensembl-vep-release-104/vep" {
					t.Errorf("unexpected vep path %q", cfg.Value(KeyVEPPath))
				}
				return
			}

			if present != 0 {
				t.Errorf("expected no app.vep keys, got %d", present)
			}
			if cfg.Value(KeyAnnotationSkip) != "true" {
				t.Errorf("annotation.skip should be true, got %q", cfg.Value(KeyAnnotationSkip))
			}
		})
	}
}

func TestSynthesize_SkipDropsBaseVEPKeys(t *testing.T) {
	s := New("/opt/vep", false)
	base := map[string]string{
		KeyVEPVersion:              "100",
		"app.vep.num-forks":        "4",
		"spring.data.mongodb.host": "mongo",
	}

	item := testItem()
	item.AnnotationVersion = ""
	item.AnnotationCacheVersion = "v1"

	cfg, err := s.Synthesize(base, item, domain.AggregationNone)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Value(KeyAnnotationSkip) != "true" {
		t.Errorf("annotation.skip should be true, got %q", cfg.Value(KeyAnnotationSkip))
	}
	for _, key := range cfg.Keys() {
		if strings.HasPrefix(key, "app.vep.") {
			t.Errorf("skipped annotation should carry no app.vep keys, found %s", key)
		}
	}
	if cfg.Value("spring.data.mongodb.host") != "mongo" {
		t.Error("unrelated base properties should survive")
	}
	if base[KeyVEPVersion] != "100" {
		t.Error("base map must not be modified")
	}
}

func TestSynthesize_EnabledKeepsBaseVEPSettings(t *testing.T) {
	s := New("/opt/vep", false)
	base := map[string]string{KeyVEPVersion: "100", "app.vep.num-forks": "4"}

	item := testItem()
	item.AnnotationVersion = "104"
	item.AnnotationCacheVersion = "104"

	cfg, err := s.Synthesize(base, item, domain.AggregationNone)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Value(KeyVEPVersion) != "104" {
		t.Errorf("item version should override the base, got %s", cfg.Value(KeyVEPVersion))
	}
	if cfg.Value("app.vep.num-forks") != "4" {
		t.Error("extra VEP settings from the base should be kept")
	}
}

func TestSynthesize_JobNameSelection(t *testing.T) {
	tests := []struct {
		annotateOnly bool
		mode         domain.AggregationMode
		want         string
	}{
		{true, domain.AggregationNone, "annotate-variants-job"},
		{true, domain.AggregationBasic, "annotate-variants-job"},
		{false, domain.AggregationNone, "genotyped-vcf-job"},
		{false, domain.AggregationBasic, "aggregated-vcf-job"},
	}

	for _, tt := range tests {
		s := New("/opt/vep", tt.annotateOnly)
		item := testItem()
		item.AggregationMode = tt.mode

		cfg, err := s.Synthesize(nil, item, tt.mode)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := cfg.Value(KeyJobNames); got != tt.want {
			t.Errorf("annotateOnly=%v mode=%s: expected %s, got %s", tt.annotateOnly, tt.mode, tt.want, got)
		}
	}
}

func TestSynthesize_Errors(t *testing.T) {
	relative := testItem()
	relative.SourceFile = "40_transformed/ERZ1.vcf.gz"

	relativeFasta := testItem()
	relativeFasta.ReferenceFile = "ref.fa"

	tests := []struct {
		name    string
		s       *Synthesizer
		item    domain.WorkItem
		wantKey string
		wantErr error
	}{
		{"relative vcf", New("/opt/vep", false), relative, KeyVCF, ErrRelativePath},
		{"relative fasta", New("/opt/vep", false), relativeFasta, KeyFasta, ErrRelativePath},
		{"missing vep root", New("", false), annotated(testItem()), KeyVEPPath, ErrMissingProperty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.s.Synthesize(nil, tt.item, tt.item.AggregationMode)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			var se *SynthesisError
			if !errors.As(err, &se) {
				t.Fatalf("expected *SynthesisError, got %T", err)
			}
			if se.Key != tt.wantKey {
				t.Errorf("expected key %s, got %s", tt.wantKey, se.Key)
			}
		})
	}
}

func TestSynthesize_EmptyVEPRootWithoutAnnotation(t *testing.T) {
	// Без аннотации VEPRoot не нужен
	if _, err := New("", false).Synthesize(nil, testItem(), domain.AggregationNone); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSynthesizeAccession(t *testing.T) {
	s := New("", false)
	item := testItem()
	item.AggregationMode = domain.AggregationBasic

	cfg, err := s.SynthesizeAccession(map[string]string{KeyAccessionProject: "PRJEB1"}, item, "/data/60_eva_public/ERZ1.accessioned.vcf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Value(KeyJobNames) != "create-subsnp-accession-job" {
		t.Errorf("unexpected job name %q", cfg.Value(KeyJobNames))
	}
	if cfg.Value(KeyAccessionAggr) != "BASIC" {
		t.Errorf("unexpected aggregation %q", cfg.Value(KeyAccessionAggr))
	}
	if cfg.Value(KeyAccessionOutput) != "/data/60_eva_public/ERZ1.accessioned.vcf" {
		t.Errorf("unexpected output %q", cfg.Value(KeyAccessionOutput))
	}
	if cfg.Value(KeyAccessionProject) != "PRJEB1" {
		t.Error("base properties should be kept")
	}

	if _, err := s.SynthesizeAccession(nil, item, "out.vcf"); !errors.Is(err, ErrRelativePath) {
		t.Errorf("expected ErrRelativePath for relative output, got %v", err)
	}
}
