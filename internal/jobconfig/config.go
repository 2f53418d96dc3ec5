package jobconfig

import (
	"maps"
	"slices"
)

// TaskConfig — неизменяемый набор свойств задания (ключ → строка).
//
// Создаётся только через Builder.Build или Decode.
type TaskConfig struct {
	props map[string]string
}

// Get возвращает значение свойства.
func (c TaskConfig) Get(key string) (string, bool) {
	v, ok := c.props[key]
	return v, ok
}

// Value возвращает значение свойства или "".
func (c TaskConfig) Value(key string) string {
	return c.props[key]
}

// Has проверяет наличие свойства.
func (c TaskConfig) Has(key string) bool {
	_, ok := c.props[key]
	return ok
}

// Len возвращает количество свойств.
func (c TaskConfig) Len() int {
	return len(c.props)
}

// Keys возвращает ключи в отсортированном порядке.
func (c TaskConfig) Keys() []string {
	return slices.Sorted(maps.Keys(c.props))
}

// Map возвращает копию свойств.
func (c TaskConfig) Map() map[string]string {
	return maps.Clone(c.props)
}

// Equal сравнивает два набора свойств.
func (c TaskConfig) Equal(other TaskConfig) bool {
	return maps.Equal(c.props, other.props)
}

// Builder накапливает слои свойств. Более поздний слой перекрывает ранние.
//
// Builder — значение: каждый вызов With/WithLayer возвращает новый Builder,
// исходный не меняется. Поэтому общую базу можно безопасно
// продолжать в разных ветках.
type Builder struct {
	layers []map[string]string
}

// NewBuilder создаёт Builder с базовым слоем. base копируется.
func NewBuilder(base map[string]string) Builder {
	return Builder{}.WithLayer(base)
}

// WithLayer добавляет слой свойств. layer копируется.
func (b Builder) WithLayer(layer map[string]string) Builder {
	if len(layer) == 0 {
		return b
	}
	return Builder{layers: append(slices.Clip(b.layers), maps.Clone(layer))}
}

// With добавляет одно свойство отдельным слоем.
func (b Builder) With(key, value string) Builder {
	return b.WithLayer(map[string]string{key: value})
}

// Build сворачивает слои в новый TaskConfig.
func (b Builder) Build() TaskConfig {
	props := make(map[string]string)
	for _, layer := range b.layers {
		maps.Copy(props, layer)
	}
	return TaskConfig{props: props}
}
