package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/varflow/internal/domain"
	"github.com/shaiso/varflow/internal/pipeline"
)

// Submitter ставит запуск конвейера в работу.
// В демоне это публикация в runs.pending.
type Submitter interface {
	Submit(ctx context.Context, req pipeline.Request) error
}

// Leader решает, должен ли этот процесс запускать расписания
// (repo.AdvisoryLock). Без Leader процесс считается единственным.
type Leader interface {
	TryAcquire(ctx context.Context) (bool, error)
}

// Scheduler — планировщик, запускающий конвейеры по расписаниям.
type Scheduler struct {
	schedules []*domain.Schedule
	submitter Submitter
	leader    Leader
	logger    *slog.Logger
	tick      time.Duration
	now       func() time.Time

	leading bool
}

// Config — конфигурация Scheduler.
type Config struct {
	Schedules []domain.Schedule
	Submitter Submitter
	Leader    Leader
	Logger    *slog.Logger
	Tick      time.Duration    // период проверки (default: 1s)
	Now       func() time.Time // default: time.Now
}

// New создаёт Scheduler и вычисляет первое время запуска каждого
// активного расписания.
func New(cfg Config) (*Scheduler, error) {
	if err := ValidateSchedules(cfg.Schedules); err != nil {
		return nil, err
	}

	s := &Scheduler{
		submitter: cfg.Submitter,
		leader:    cfg.Leader,
		logger:    cfg.Logger,
		tick:      cfg.Tick,
		now:       cfg.Now,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.tick <= 0 {
		s.tick = time.Second
	}
	if s.now == nil {
		s.now = time.Now
	}

	start := s.now()
	for i := range cfg.Schedules {
		sched := cfg.Schedules[i]
		if !sched.IsEnabled() {
			s.logger.Info("schedule disabled", "schedule", sched.Name)
			continue
		}
		next, err := CalculateNextDue(&sched, start)
		if err != nil {
			return nil, err
		}
		sched.NextDueAt = &next
		s.schedules = append(s.schedules, &sched)
		s.logger.Info("schedule registered",
			"schedule", sched.Name,
			"pipeline", sched.Pipeline,
			"next_due_at", next,
		)
	}

	return s, nil
}

// Run вызывает Tick с периодом tick до отмены ctx.
func (s *Scheduler) Run(ctx context.Context) error {
	if len(s.schedules) == 0 {
		s.logger.Info("no schedules configured")
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if s.isLeader(ctx) {
				s.Tick(ctx)
			}
		}
	}
}

// isLeader проверяет лидерство и логирует его смену.
func (s *Scheduler) isLeader(ctx context.Context) bool {
	if s.leader == nil {
		return true
	}

	ok, err := s.leader.TryAcquire(ctx)
	if err != nil {
		s.logger.Warn("leader check failed", "error", err)
		ok = false
	}
	if ok != s.leading {
		s.logger.Info("scheduler leadership changed", "leader", ok)
		s.leading = ok
	}
	return ok
}

// Tick запускает все расписания, чьё время наступило.
// Возвращает количество отправленных запусков.
//
// Ошибка отправки не сдвигает NextDueAt: расписание повторится
// на следующем тике с тем же ключом идемпотентности.
func (s *Scheduler) Tick(ctx context.Context) int {
	now := s.now()

	var submitted int
	for _, sched := range s.schedules {
		if !sched.IsDue(now) {
			continue
		}

		key := IdempotencyKey(sched.Name, *sched.NextDueAt)
		logger := s.logger.With("schedule", sched.Name, "idempotency_key", key)

		err := s.submitter.Submit(ctx, pipeline.Request{
			Pipeline:       sched.Pipeline,
			ParamsFile:     sched.ParamsFile,
			IdempotencyKey: key,
		})
		if err != nil {
			logger.Error("failed to submit scheduled run", "error", err)
			continue
		}

		next, err := CalculateNextDue(sched, now)
		if err != nil {
			logger.Error("failed to calculate next due", "error", err)
			continue
		}
		sched.RecordRun(now, next)
		submitted++

		logger.Info("scheduled run submitted", "pipeline", sched.Pipeline, "next_due_at", next)
	}
	return submitted
}

// Schedules возвращает активные расписания.
func (s *Scheduler) Schedules() []domain.Schedule {
	out := make([]domain.Schedule, len(s.schedules))
	for i, sched := range s.schedules {
		out[i] = *sched
	}
	return out
}

// IdempotencyKey формирует ключ "{schedule_name}_{due_unix}": для одного
// расписания и момента запуска создаётся не больше одного run.
func IdempotencyKey(name string, due time.Time) string {
	return fmt.Sprintf("%s_%d", name, due.Unix())
}
