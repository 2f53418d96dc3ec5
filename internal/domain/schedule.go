package domain

import "time"

// Schedule — расписание автоматического запуска конвейера демоном.
//
// Расписания задаются в YAML-конфигурации демона, например:
//
//	schedules:
//	  - name: nightly-load
//	    cron: "0 2 * * *"
//	    timezone: Europe/London
//	    pipeline: variant-load
//	    params_file: /data/PRJEB1234/load.yaml
type Schedule struct {
	// Name — уникальное имя расписания.
	Name string `yaml:"name" validate:"required"`

	// CronExpr — cron-выражение: "минуты часы дни месяцы дни_недели".
	// Если задан CronExpr, IntervalSec игнорируется.
	CronExpr string `yaml:"cron,omitempty"`

	// IntervalSec — интервал в секундах между запусками.
	IntervalSec int `yaml:"interval_sec,omitempty"`

	// Timezone — часовой пояс для вычисления времени. По умолчанию UTC.
	Timezone string `yaml:"timezone,omitempty"`

	// Pipeline — какой конвейер запускать.
	Pipeline PipelineKind `yaml:"pipeline" validate:"required"`

	// ParamsFile — YAML-файл параметров конвейера.
	ParamsFile string `yaml:"params_file" validate:"required"`

	// Enabled — флаг активности. nil означает true.
	Enabled *bool `yaml:"enabled,omitempty"`

	// NextDueAt — время следующего запуска (вычисляется демоном).
	NextDueAt *time.Time `yaml:"-"`

	// LastRunAt — время последнего запуска.
	LastRunAt *time.Time `yaml:"-"`
}

// IsEnabled возвращает true, если расписание активно.
func (s *Schedule) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// IsCron возвращает true, если расписание использует cron-выражение.
func (s *Schedule) IsCron() bool {
	return s.CronExpr != ""
}

// IsInterval возвращает true, если расписание использует интервал.
func (s *Schedule) IsInterval() bool {
	return s.CronExpr == "" && s.IntervalSec > 0
}

// IsDue проверяет, пора ли запускать.
func (s *Schedule) IsDue(now time.Time) bool {
	if !s.IsEnabled() {
		return false
	}
	if s.NextDueAt == nil {
		return false
	}
	return now.After(*s.NextDueAt) || now.Equal(*s.NextDueAt)
}

// RecordRun записывает информацию о запуске.
func (s *Schedule) RecordRun(now, nextDue time.Time) {
	s.LastRunAt = &now
	s.NextDueAt = &nextDue
}
