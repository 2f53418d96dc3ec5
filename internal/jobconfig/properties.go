package jobconfig

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
)

// Encode сериализует конфигурацию в формат key=value, по строке на свойство,
// ключи отсортированы. Значения не экранируются: ':' и '=' пишутся как есть.
//
// Ключ не может быть пустым или содержать '=' и перевод строки,
// значение не может содержать перевод строки.
func Encode(cfg TaskConfig) ([]byte, error) {
	var buf bytes.Buffer
	for _, key := range cfg.Keys() {
		value := cfg.props[key]
		if key == "" || strings.ContainsAny(key, "=\r\n") {
			return nil, fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
		if strings.ContainsAny(value, "\r\n") {
			return nil, fmt.Errorf("%w: %s", ErrInvalidValue, key)
		}
		buf.WriteString(key)
		buf.WriteByte('=')
		buf.WriteString(value)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// Decode разбирает результат Encode. Строка делится по первому '='.
// Пустые строки пропускаются.
func Decode(data []byte) (TaskConfig, error) {
	props := make(map[string]string)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok || key == "" {
			return TaskConfig{}, fmt.Errorf("%w: line %d", ErrMalformedLine, lineNo)
		}
		props[key] = value
	}
	if err := scanner.Err(); err != nil {
		return TaskConfig{}, fmt.Errorf("read properties: %w", err)
	}

	return TaskConfig{props: props}, nil
}
