package scheduler

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/varflow/internal/domain"
	"github.com/shaiso/varflow/internal/validate"
)

// File — YAML-конфигурация демона.
type File struct {
	Schedules []domain.Schedule `yaml:"schedules"`
}

// LoadSchedules читает расписания из YAML-файла и проверяет их.
func LoadSchedules(path string) ([]domain.Schedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read daemon config: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse daemon config %s: %w", path, err)
	}

	if err := ValidateSchedules(f.Schedules); err != nil {
		return nil, err
	}
	return f.Schedules, nil
}

// ValidateSchedules проверяет все расписания и собирает ошибки.
func ValidateSchedules(schedules []domain.Schedule) error {
	var errs []error
	seen := make(map[string]bool, len(schedules))

	for i := range schedules {
		sched := &schedules[i]
		if err := validateSchedule(sched); err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[sched.Name] {
			errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicateSchedule, sched.Name))
		}
		seen[sched.Name] = true
	}
	return errors.Join(errs...)
}

func validateSchedule(sched *domain.Schedule) error {
	if err := validate.Struct(sched); err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidSchedule, sched.Name, err)
	}
	if !sched.Pipeline.IsValid() {
		return fmt.Errorf("%w %q: unknown pipeline %q", ErrInvalidSchedule, sched.Name, sched.Pipeline)
	}
	if sched.IsCron() {
		if err := ValidateCronExpr(sched.CronExpr); err != nil {
			return fmt.Errorf("%w %q: %w", ErrInvalidSchedule, sched.Name, err)
		}
	} else if !sched.IsInterval() {
		return fmt.Errorf("%w %q: %w", ErrInvalidSchedule, sched.Name, ErrNoTrigger)
	}
	if _, err := location(sched.Timezone); err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidSchedule, sched.Name, err)
	}
	return nil
}
