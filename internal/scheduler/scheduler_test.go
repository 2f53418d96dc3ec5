package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shaiso/varflow/internal/domain"
	"github.com/shaiso/varflow/internal/pipeline"
)

type fakeSubmitter struct {
	reqs []pipeline.Request
	err  error
}

func (f *fakeSubmitter) Submit(_ context.Context, req pipeline.Request) error {
	if f.err != nil {
		return f.err
	}
	f.reqs = append(f.reqs, req)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCalculateNextDue_Cron(t *testing.T) {
	sched := &domain.Schedule{Name: "nightly", CronExpr: "0 2 * * *"}
	from := time.Date(2026, 3, 10, 1, 30, 0, 0, time.UTC)

	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}

	next, _ = CalculateNextDue(sched, want)
	if !next.Equal(want.Add(24 * time.Hour)) {
		t.Errorf("next after due should be tomorrow, got %v", next)
	}
}

func TestCalculateNextDue_CronTimezone(t *testing.T) {
	sched := &domain.Schedule{Name: "tokyo", CronExpr: "0 9 * * *", Timezone: "Asia/Tokyo"}
	from := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC) // 09:00 JST

	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
	if next.Location() != time.UTC {
		t.Error("next due should be returned in UTC")
	}
}

func TestCalculateNextDue_Interval(t *testing.T) {
	sched := &domain.Schedule{Name: "hourly", IntervalSec: 3600}
	from := time.Date(2026, 3, 10, 1, 30, 0, 0, time.UTC)

	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !next.Equal(from.Add(time.Hour)) {
		t.Errorf("expected %v, got %v", from.Add(time.Hour), next)
	}
}

func TestCalculateNextDue_Errors(t *testing.T) {
	from := time.Now()
	if _, err := CalculateNextDue(&domain.Schedule{Name: "x"}, from); !errors.Is(err, ErrNoTrigger) {
		t.Errorf("expected ErrNoTrigger, got %v", err)
	}
	bad := &domain.Schedule{Name: "x", IntervalSec: 60, Timezone: "Mars/Olympus"}
	if _, err := CalculateNextDue(bad, from); !errors.Is(err, ErrInvalidTimezone) {
		t.Errorf("expected ErrInvalidTimezone, got %v", err)
	}
}

func TestValidateSchedules(t *testing.T) {
	disabled := false
	tests := []struct {
		name    string
		sched   domain.Schedule
		wantErr error
	}{
		{"cron ok", domain.Schedule{Name: "a", CronExpr: "*/5 * * * *", Pipeline: domain.PipelineLoad, ParamsFile: "p.yaml"}, nil},
		{"disabled ok", domain.Schedule{Name: "a", IntervalSec: 60, Pipeline: domain.PipelineAccession, ParamsFile: "p.yaml", Enabled: &disabled}, nil},
		{"bad cron", domain.Schedule{Name: "a", CronExpr: "every day", Pipeline: domain.PipelineLoad, ParamsFile: "p.yaml"}, ErrInvalidSchedule},
		{"no trigger", domain.Schedule{Name: "a", Pipeline: domain.PipelineLoad, ParamsFile: "p.yaml"}, ErrNoTrigger},
		{"unknown pipeline", domain.Schedule{Name: "a", IntervalSec: 60, Pipeline: "bake", ParamsFile: "p.yaml"}, ErrInvalidSchedule},
		{"missing params", domain.Schedule{Name: "a", IntervalSec: 60, Pipeline: domain.PipelineLoad}, ErrInvalidSchedule},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSchedules([]domain.Schedule{tt.sched})
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateSchedules_Duplicate(t *testing.T) {
	s := domain.Schedule{Name: "a", IntervalSec: 60, Pipeline: domain.PipelineLoad, ParamsFile: "p.yaml"}
	if err := ValidateSchedules([]domain.Schedule{s, s}); !errors.Is(err, ErrDuplicateSchedule) {
		t.Errorf("expected ErrDuplicateSchedule, got %v", err)
	}
}

func TestLoadSchedules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.yaml")
	content := `schedules:
  - name: nightly-load
    cron: "0 2 * * *"
    timezone: Europe/London
    pipeline: variant-load
    params_file: /data/load.yaml
  - name: hourly-accession
    interval_sec: 3600
    pipeline: accession
    params_file: /data/acc.yaml
    enabled: false
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	schedules, err := LoadSchedules(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(schedules) != 2 {
		t.Fatalf("expected 2 schedules, got %d", len(schedules))
	}
	if schedules[0].CronExpr != "0 2 * * *" || schedules[0].Pipeline != domain.PipelineLoad {
		t.Errorf("unexpected first schedule: %+v", schedules[0])
	}
	if schedules[1].IsEnabled() {
		t.Error("second schedule should be disabled")
	}
}

func TestScheduler_Tick(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	sub := &fakeSubmitter{}

	s, err := New(Config{
		Schedules: []domain.Schedule{
			{Name: "every-minute", IntervalSec: 60, Pipeline: domain.PipelineLoad, ParamsFile: "load.yaml"},
			{Name: "daily", CronExpr: "0 2 * * *", Pipeline: domain.PipelineAccession, ParamsFile: "acc.yaml"},
		},
		Submitter: sub,
		Logger:    discardLogger(),
		Now:       clock,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if n := s.Tick(context.Background()); n != 0 {
		t.Fatalf("nothing is due yet, submitted %d", n)
	}

	now = now.Add(time.Minute)
	if n := s.Tick(context.Background()); n != 1 {
		t.Fatalf("expected 1 submission, got %d", n)
	}
	req := sub.reqs[0]
	if req.Pipeline != domain.PipelineLoad || req.ParamsFile != "load.yaml" {
		t.Errorf("unexpected request: %+v", req)
	}
	if want := IdempotencyKey("every-minute", now); req.IdempotencyKey != want {
		t.Errorf("expected key %s, got %s", want, req.IdempotencyKey)
	}

	// Повторный тик в тот же момент ничего не отправляет
	if n := s.Tick(context.Background()); n != 0 {
		t.Errorf("schedule should have advanced, submitted %d", n)
	}

	next := s.Schedules()[0].NextDueAt
	if next == nil || !next.Equal(now.Add(time.Minute)) {
		t.Errorf("next due should be one minute later, got %v", next)
	}
}

func TestScheduler_SubmitFailureRetries(t *testing.T) {
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	sub := &fakeSubmitter{err: errors.New("broker down")}

	s, err := New(Config{
		Schedules: []domain.Schedule{{Name: "m", IntervalSec: 60, Pipeline: domain.PipelineLoad, ParamsFile: "p.yaml"}},
		Submitter: sub,
		Logger:    discardLogger(),
		Now:       func() time.Time { return now },
	})
	if err != nil {
		t.Fatal(err)
	}

	due := now.Add(time.Minute)
	now = due
	if n := s.Tick(context.Background()); n != 0 {
		t.Fatalf("failed submit should not count, got %d", n)
	}

	sub.err = nil
	now = due.Add(5 * time.Second)
	if n := s.Tick(context.Background()); n != 1 {
		t.Fatalf("expected retry to submit, got %d", n)
	}
	if want := IdempotencyKey("m", due); sub.reqs[0].IdempotencyKey != want {
		t.Errorf("retry should keep the original due key %s, got %s", want, sub.reqs[0].IdempotencyKey)
	}
}

func TestNew_SkipsDisabled(t *testing.T) {
	off := false
	s, err := New(Config{
		Schedules: []domain.Schedule{{Name: "m", IntervalSec: 60, Pipeline: domain.PipelineLoad, ParamsFile: "p.yaml", Enabled: &off}},
		Submitter: &fakeSubmitter{},
		Logger:    discardLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Schedules()) != 0 {
		t.Error("disabled schedules should not be registered")
	}
}

type fakeLeader struct {
	ok  bool
	err error
}

func (f *fakeLeader) TryAcquire(context.Context) (bool, error) {
	return f.ok, f.err
}

func TestScheduler_Leadership(t *testing.T) {
	leader := &fakeLeader{}
	s, err := New(Config{Submitter: &fakeSubmitter{}, Leader: leader, Logger: discardLogger()})
	if err != nil {
		t.Fatal(err)
	}

	if s.isLeader(context.Background()) {
		t.Error("should not lead without the lock")
	}
	leader.ok = true
	if !s.isLeader(context.Background()) {
		t.Error("should lead with the lock")
	}
	leader.ok, leader.err = true, errors.New("db down")
	if s.isLeader(context.Background()) {
		t.Error("lock errors should drop leadership")
	}

	solo, _ := New(Config{Submitter: &fakeSubmitter{}, Logger: discardLogger()})
	if !solo.isLeader(context.Background()) {
		t.Error("without a leader check the scheduler always leads")
	}
}
