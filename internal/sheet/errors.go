package sheet

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptySheet — файл без строки заголовка.
	ErrEmptySheet = errors.New("sheet is empty")

	// ErrMissingColumns — в заголовке нет обязательных колонок.
	ErrMissingColumns = errors.New("sheet is missing required columns")

	// ErrInvalidRow — строка не прошла валидацию.
	ErrInvalidRow = errors.New("invalid sheet row")
)

// RowError — ошибка в конкретной строке таблицы.
type RowError struct {
	Row int   // номер строки данных, с 1
	Err error // причина (обычно *validate.Error)
}

// Error реализует интерфейс error.
func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v: %v", e.Row, ErrInvalidRow, e.Err)
}

// Unwrap возвращает причину и ErrInvalidRow.
func (e *RowError) Unwrap() []error {
	return []error{ErrInvalidRow, e.Err}
}
