package worker

import "strings"

// GetConfigString извлекает строковое значение из payload.
func GetConfigString(config map[string]any, key string) string {
	if v, ok := config[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetConfigInt извлекает числовое значение из payload.
func GetConfigInt(config map[string]any, key string) int {
	if n := GetConfigOptionalInt(config, key); n != nil {
		return *n
	}
	return 0
}

// GetConfigOptionalInt — как GetConfigInt, но nil для отсутствующего ключа.
func GetConfigOptionalInt(config map[string]any, key string) *int {
	v, ok := config[key]
	if !ok {
		return nil
	}
	var n int
	switch x := v.(type) {
	case int:
		n = x
	case int64:
		n = int(x)
	case float64:
		n = int(x)
	case *int:
		return x
	default:
		return nil
	}
	return &n
}

// GetConfigBool извлекает булево значение из payload.
func GetConfigBool(config map[string]any, key string, defaultVal bool) bool {
	if v, ok := config[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultVal
}

// GetConfigMap извлекает map из payload.
func GetConfigMap(config map[string]any, key string) map[string]any {
	if v, ok := config[key]; ok {
		if m, ok := v.(map[string]any); ok {
			return m
		}
	}
	return nil
}

// GetConfigMapString извлекает map[string]string из payload.
func GetConfigMapString(config map[string]any, key string) map[string]string {
	if v, ok := config[key]; ok {
		switch m := v.(type) {
		case map[string]string:
			return m
		case map[string]any:
			result := make(map[string]string)
			for k, val := range m {
				if s, ok := val.(string); ok {
					result[k] = s
				}
			}
			return result
		}
	}
	return nil
}

// GetConfigStrings извлекает список строк из payload.
// Порядок элементов сохраняется.
func GetConfigStrings(config map[string]any, key string) []string {
	v, ok := config[key]
	if !ok {
		return nil
	}
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		result := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result
	case string:
		if list == "" {
			return nil
		}
		return strings.Split(list, ",")
	}
	return nil
}

// requireString возвращает непустое строковое значение или ErrInvalidPayload.
func requireString(config map[string]any, key string) (string, error) {
	s := GetConfigString(config, key)
	if s == "" {
		return "", missingArg(key)
	}
	return s, nil
}
