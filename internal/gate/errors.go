package gate

import (
	"errors"
	"fmt"
)

var (
	// ErrExpectedCountUnknown — ожидаемое количество не задано или меньше 1.
	ErrExpectedCountUnknown = errors.New("expected count is unknown")

	// ErrGateTimeout — gate не дождался завершения за отведённое время.
	ErrGateTimeout = errors.New("gate timed out")

	// ErrUnknownID — отчёт от узла, которого нет в ожидаемом наборе.
	ErrUnknownID = errors.New("id is not in the completion set")

	// ErrWatcherClosed — наблюдатель закрыл канал событий раньше завершения.
	ErrWatcherClosed = errors.New("watcher closed before gate completed")

	// ErrWatch — ошибка наблюдателя файловой системы.
	ErrWatch = errors.New("watch failed")

	// ErrUpstreamExhausted — все производители завершились, а успешных
	// меньше ожидаемого: gate уже не может завершиться.
	ErrUpstreamExhausted = errors.New("upstream producers exhausted")
)

// errDeadline — причина отмены контекста по таймауту gate.
var errDeadline = errors.New("gate deadline")

// TimeoutError — gate истёк, не набрав ожидаемое количество.
// Cause задан при досрочном истечении (ErrUpstreamExhausted).
type TimeoutError struct {
	Gate     string
	Observed int
	Expected int
	Cause    error
}

// Error реализует интерфейс error.
func (e *TimeoutError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("gate %s: %v (%v): observed %d of %d", e.Gate, ErrGateTimeout, e.Cause, e.Observed, e.Expected)
	}
	return fmt.Sprintf("gate %s: %v: observed %d of %d", e.Gate, ErrGateTimeout, e.Observed, e.Expected)
}

// Unwrap возвращает базовую ошибку и причину.
func (e *TimeoutError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrGateTimeout, e.Cause}
	}
	return []error{ErrGateTimeout}
}
