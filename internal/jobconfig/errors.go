package jobconfig

import (
	"errors"
	"fmt"
)

var (
	// ErrRelativePath — путь к входному файлу не абсолютный.
	ErrRelativePath = errors.New("path is not absolute")

	// ErrMissingProperty — не задано обязательное свойство.
	ErrMissingProperty = errors.New("missing required property")

	// ErrInvalidKey — ключ нельзя сериализовать (содержит '=' или перевод строки).
	ErrInvalidKey = errors.New("invalid property key")

	// ErrInvalidValue — значение содержит перевод строки.
	ErrInvalidValue = errors.New("invalid property value")

	// ErrMalformedLine — строка файла свойств без '='.
	ErrMalformedLine = errors.New("malformed properties line")
)

// SynthesisError — ошибка синтеза конфигурации для конкретного файла.
type SynthesisError struct {
	SourceFile string
	Key        string // свойство, которое не удалось вычислить
	Err        error  // ErrRelativePath или ErrMissingProperty
}

// Error реализует интерфейс error.
func (e *SynthesisError) Error() string {
	return fmt.Sprintf("synthesize %s: %s: %v", e.SourceFile, e.Key, e.Err)
}

// Unwrap возвращает базовую ошибку.
func (e *SynthesisError) Unwrap() error {
	return e.Err
}
