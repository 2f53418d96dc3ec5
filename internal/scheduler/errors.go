package scheduler

import "errors"

var (
	// ErrNoTrigger — у расписания нет ни cron, ни interval_sec.
	ErrNoTrigger = errors.New("schedule has neither cron nor interval_sec")

	// ErrInvalidTimezone — неизвестный часовой пояс.
	ErrInvalidTimezone = errors.New("invalid timezone")

	// ErrDuplicateSchedule — два расписания с одним именем.
	ErrDuplicateSchedule = errors.New("duplicate schedule name")

	// ErrInvalidSchedule — расписание не прошло проверку.
	ErrInvalidSchedule = errors.New("invalid schedule")
)
