package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/varflow/internal/domain"
	"github.com/shaiso/varflow/internal/engine"
	"github.com/shaiso/varflow/internal/mq"
	"github.com/shaiso/varflow/internal/orchestrator"
	"github.com/shaiso/varflow/internal/pipeline"
	"github.com/shaiso/varflow/internal/repo"
)

const sheetHeader = "vcf_file,fasta,analysis_accession,db_name,vep_version,vep_cache_version,vep_species,aggregation\n"

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// setupProject создаёт входной VCF, таблицу и файл параметров.
func setupProject(t *testing.T, rows string) string {
	t.Helper()
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "in", "a.vcf.gz"), "vcf")
	writeFile(t, filepath.Join(dir, "sheet.csv"), sheetHeader+rows)

	params := filepath.Join(dir, "params.yaml")
	writeFile(t, params, `
project_accession: PRJEB1
sheet: sheet.csv
project_dir: project
tools:
  load: ["true"]
`)
	return params
}

type harness struct {
	stdout, stderr bytes.Buffer
	jsonMode       bool
}

func (h *harness) output() *Output {
	return NewOutputTo(h.jsonMode, &h.stdout, &h.stderr)
}

func (h *harness) service() *pipeline.Service {
	return pipeline.New(pipeline.Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) error {
	t.Helper()
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	return cmd.ExecuteContext(context.Background())
}

func TestLoadCmd(t *testing.T) {
	params := setupProject(t, "in/a.vcf.gz,/ref/g.fa,ERZ1,eva_db,,,,none\n")
	h := &harness{}

	if err := execute(t, NewLoadCmd(h.service, h.output), params); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := h.stdout.String()
	for _, node := range []string{"a.stage", "ERZ1.symlink", "ERZ1.config", "ERZ1.load", "load.gate", "load.summary"} {
		if !strings.Contains(out, node) {
			t.Errorf("output should list %s:\n%s", node, out)
		}
	}
	if !strings.Contains(h.stderr.String(), "Run succeeded") {
		t.Errorf("expected success message, got %q", h.stderr.String())
	}
}

func TestLoadCmd_RejectedRowsFail(t *testing.T) {
	params := setupProject(t,
		"in/a.vcf.gz,/ref/g.fa,ERZ1,eva_db,,,,none\n"+
			"in/b.vcf.gz,/ref/g.fa,ERZ2,eva_db,,,,weird\n")
	h := &harness{}

	err := execute(t, NewLoadCmd(h.service, h.output), params)

	var runErr *orchestrator.RunFailedError
	if !errors.As(err, &runErr) {
		t.Fatalf("expected *RunFailedError, got %v", err)
	}
	if !strings.Contains(h.stderr.String(), "Rejected:") || !strings.Contains(h.stderr.String(), "weird") {
		t.Errorf("rejection should be reported on stderr, got %q", h.stderr.String())
	}
	// Принятая группа всё равно выполнена
	if !strings.Contains(h.stdout.String(), "ERZ1.load") {
		t.Errorf("accepted group should have run:\n%s", h.stdout.String())
	}
}

func TestPlanCmd_JSON(t *testing.T) {
	params := setupProject(t,
		"in/a.vcf.gz,/ref/g.fa,ERZ1,eva_db,,,,none\n"+
			"in/b.vcf.gz,/ref/g.fa,ERZ1,eva_db,,,,none\n")
	h := &harness{jsonMode: true}

	if err := execute(t, NewPlanCmd(h.service, h.output), "variant-load", params); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var plan struct {
		Pipeline string `json:"pipeline"`
		Spec     struct {
			Tasks []domain.TaskDef `json:"tasks"`
		} `json:"spec"`
	}
	if err := json.Unmarshal(h.stdout.Bytes(), &plan); err != nil {
		t.Fatalf("output is not json: %v\n%s", err, h.stdout.String())
	}
	if plan.Pipeline != "variant-load" {
		t.Errorf("unexpected pipeline %q", plan.Pipeline)
	}
	if len(plan.Spec.Tasks) < 3 || plan.Spec.Tasks[2].Kind != domain.KindMerge {
		t.Fatalf("two-member group should merge after staging both files: %+v", plan.Spec.Tasks)
	}
	if deps := plan.Spec.Tasks[2].DependsOn; len(deps) != 2 || deps[0] != "a.stage" || deps[1] != "b.stage" {
		t.Errorf("merge should depend on the staged files, got %v", deps)
	}

	// plan ничего не выполняет
	if _, err := os.Stat(filepath.Join(filepath.Dir(params), "project")); !os.IsNotExist(err) {
		t.Error("plan should not create the project layout")
	}
}

func TestPlanCmd_UnknownPipeline(t *testing.T) {
	params := setupProject(t, "in/a.vcf.gz,/ref/g.fa,ERZ1,eva_db,,,,none\n")
	h := &harness{}

	err := execute(t, NewPlanCmd(h.service, h.output), "bake", params)
	if !errors.Is(err, pipeline.ErrUnknownPipeline) {
		t.Errorf("expected ErrUnknownPipeline, got %v", err)
	}
}

func TestClassifyCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sheet.csv")
	writeFile(t, path, sheetHeader+
		"/d/a.vcf.gz,/ref/g.fa,ERZ1,eva_db,,,,none\n"+
		"/d/b.vcf.gz,/ref/g.fa,ERZ2,eva_db,,,,basic\n"+
		"/d/c.vcf.gz,/ref/g.fa,ERZ1,eva_db,,,,bogus\n")
	h := &harness{jsonMode: true}

	if err := execute(t, NewClassifyCmd(h.output), path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var res classifyResult
	if err := json.Unmarshal(h.stdout.Bytes(), &res); err != nil {
		t.Fatalf("output is not json: %v", err)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("expected 2 classified rows, got %+v", res.Rows)
	}
	if res.Rows[0].Class != engine.ClassGenotyped || res.Rows[1].Class != engine.ClassAggregated {
		t.Errorf("unexpected classes: %+v", res.Rows)
	}
	if !strings.Contains(h.stderr.String(), "bogus") {
		t.Errorf("unknown mode should be reported, got %q", h.stderr.String())
	}
}

func TestClassifySheet_Groups(t *testing.T) {
	items := []domain.WorkItem{
		{Row: 1, SourceFile: "/d/a.vcf.gz", ReferenceFile: "/r", GroupKey: "A", DatabaseName: "db", AggregationMode: domain.AggregationNone},
		{Row: 2, SourceFile: "/d/b.vcf.gz", ReferenceFile: "/r", GroupKey: "B", DatabaseName: "db", AggregationMode: domain.AggregationNone},
		{Row: 3, SourceFile: "/d/c.vcf.gz", ReferenceFile: "/r", GroupKey: "A", DatabaseName: "db", AggregationMode: domain.AggregationNone},
	}

	res := classifySheet(items, nil, true)
	if len(res.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	if len(res.Groups) != 2 {
		t.Fatalf("expected 2 groups, got %+v", res.Groups)
	}
	if res.Groups[0].Group != "A" || res.Groups[0].Strategy != string(domain.KindMerge) || res.Groups[0].Members != 2 {
		t.Errorf("group A should merge 2 members: %+v", res.Groups[0])
	}
	if res.Groups[1].Strategy != string(domain.KindSymlink) {
		t.Errorf("group B should be linked: %+v", res.Groups[1])
	}
	if joinBase(res.Groups[0].Files) != "a.vcf.gz,c.vcf.gz" {
		t.Errorf("members should keep sheet order, got %v", res.Groups[0].Files)
	}
}

type fakeRequester struct {
	got []mq.RunRequestedPayload
}

func (f *fakeRequester) PublishRunRequested(_ context.Context, p mq.RunRequestedPayload) error {
	f.got = append(f.got, p)
	return nil
}

func TestSubmitCmd(t *testing.T) {
	fake := &fakeRequester{}
	closed := false
	requesterFn := func(context.Context) (RunRequester, func(), error) {
		return fake, func() { closed = true }, nil
	}
	h := &harness{}

	err := execute(t, NewSubmitCmd(requesterFn, h.output), "accession", "params.yaml", "--idempotency-key", "k1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fake.got) != 1 {
		t.Fatalf("expected one message, got %d", len(fake.got))
	}
	p := fake.got[0]
	if p.Pipeline != "accession" || p.IdempotencyKey != "k1" || !filepath.IsAbs(p.ParamsFile) {
		t.Errorf("unexpected payload: %+v", p)
	}
	if !closed {
		t.Error("connection should be closed")
	}
}

func TestSubmitCmd_UnknownPipeline(t *testing.T) {
	requesterFn := func(context.Context) (RunRequester, func(), error) {
		t.Fatal("broker should not be contacted")
		return nil, nil, nil
	}
	h := &harness{}

	if err := execute(t, NewSubmitCmd(requesterFn, h.output), "bake", "p.yaml"); err == nil {
		t.Error("expected error for unknown pipeline")
	}
}

type fakeHistory struct {
	runs   []domain.Run
	tasks  []domain.Task
	filter repo.RunFilter
}

func (f *fakeHistory) ListRuns(_ context.Context, filter repo.RunFilter) ([]domain.Run, error) {
	f.filter = filter
	return f.runs, nil
}

func (f *fakeHistory) ListTasks(_ context.Context, runID uuid.UUID) ([]domain.Task, error) {
	return f.tasks, nil
}

func TestRunsCmd(t *testing.T) {
	run := domain.NewRun(domain.PipelineLoad, "/p.yaml")
	run.MarkRunning()
	run.MarkFailed("boom")
	fake := &fakeHistory{
		runs:  []domain.Run{*run},
		tasks: []domain.Task{{NodeID: "ERZ1.load", Kind: domain.KindLoad, Status: domain.TaskStatusFailed, Attempt: 2, Error: "exit 1"}},
	}
	historyFn := func(context.Context) (RunHistory, func(), error) { return fake, func() {}, nil }

	h := &harness{}
	if err := execute(t, NewRunsCmd(historyFn, h.output), "list", "--status", "FAILED", "--pipeline", "variant-load"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.filter.Status != domain.RunStatusFailed || fake.filter.Pipeline != domain.PipelineLoad {
		t.Errorf("filter not passed: %+v", fake.filter)
	}
	if !strings.Contains(h.stdout.String(), run.ID.String()) {
		t.Errorf("run id missing from output:\n%s", h.stdout.String())
	}

	h = &harness{}
	if err := execute(t, NewRunsCmd(historyFn, h.output), "tasks", run.ID.String()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(h.stdout.String(), "ERZ1.load") || !strings.Contains(h.stdout.String(), "exit 1") {
		t.Errorf("task row missing:\n%s", h.stdout.String())
	}

	if err := execute(t, NewRunsCmd(historyFn, h.output), "tasks", "not-a-uuid"); err == nil {
		t.Error("expected error for invalid run id")
	}
}
