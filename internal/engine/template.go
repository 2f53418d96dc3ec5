package engine

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"
)

// Vars — переменные для рендеринга командной строки внешнего инструмента.
//
// Ключи зависят от типа узла, например для merge:
//
//	{{ .file_list }} {{ .output }} {{ .threads }}
type Vars map[string]any

// templateFuncs — дополнительные функции для шаблонов.
var templateFuncs = template.FuncMap{
	// default — возвращает значение по умолчанию, если первый аргумент пустой
	"default": func(def, val any) any {
		if val == nil {
			return def
		}
		if s, ok := val.(string); ok && s == "" {
			return def
		}
		return val
	},

	// join — объединяет слайс строк
	"join": func(sep string, items []string) string {
		return strings.Join(items, sep)
	},

	// base — имя файла без каталога
	"base": filepath.Base,

	// dir — каталог файла
	"dir": filepath.Dir,

	// trimSuffix — удаляет суффикс (например, ".gz")
	"trimSuffix": func(suffix, s string) string {
		return strings.TrimSuffix(s, suffix)
	},

	"lower":   strings.ToLower,
	"upper":   strings.ToUpper,
	"replace": strings.ReplaceAll,
}

// Render рендерит строковый шаблон с переменными.
// Обращение к отсутствующей переменной — ошибка.
func Render(tmpl string, vars Vars) (string, error) {
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}

	t, err := template.New("").Funcs(templateFuncs).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateParse, err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, map[string]any(vars)); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}

	return buf.String(), nil
}

// RenderArgs рендерит argv внешнего инструмента.
//
// Каждый элемент рендерится отдельно, поэтому пути с пробелами
// остаются одним аргументом. Элементы, пустые после рендеринга,
// отбрасываются: так выражаются необязательные флаги.
func RenderArgs(argv []string, vars Vars) ([]string, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("%w: empty command", ErrTemplateRender)
	}

	result := make([]string, 0, len(argv))
	for i, arg := range argv {
		rendered, err := Render(arg, vars)
		if err != nil {
			return nil, fmt.Errorf("argv[%d]: %w", i, err)
		}
		if rendered == "" {
			continue
		}
		result = append(result, rendered)
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("%w: command rendered empty", ErrTemplateRender)
	}
	return result, nil
}

// MustRender рендерит шаблон и паникует при ошибке.
// Используется только для тестов.
func MustRender(tmpl string, vars Vars) string {
	result, err := Render(tmpl, vars)
	if err != nil {
		panic(err)
	}
	return result
}
