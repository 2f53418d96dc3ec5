// Package validate — общий валидатор структур (go-playground/validator)
// с английскими сообщениями и именами полей из тегов yaml/csv.
package validate

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// Service — валидатор и переводчик сообщений.
type Service struct {
	Validator  *validator.Validate
	Translator ut.Translator
}

var (
	once sync.Once
	svc  *Service
)

// Get возвращает singleton, инициализируя при первом вызове.
func Get() *Service {
	once.Do(func() {
		enLoc := en.New()
		uni := ut.New(enLoc, enLoc)
		trans, _ := uni.GetTranslator("en")

		v := validator.New(validator.WithRequiredStructEnabled())

		// имена полей в сообщениях: csv, затем yaml, затем имя поля
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, key := range []string{"csv", "yaml"} {
				tag := fld.Tag.Get(key)
				if idx := strings.Index(tag, ","); idx >= 0 {
					tag = tag[:idx]
				}
				if tag != "" && tag != "-" {
					return tag
				}
			}
			return fld.Name
		})

		_ = en_translations.RegisterDefaultTranslations(v, trans)

		svc = &Service{Validator: v, Translator: trans}
	})
	return svc
}

// FieldError — одно нарушение.
type FieldError struct {
	Field   string
	Message string
}

// Error — результат валидации структуры.
type Error struct {
	Fields []FieldError
}

// Error реализует интерфейс error.
func (e *Error) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return strings.Join(msgs, "; ")
}

// Struct валидирует структуру. Нарушения возвращаются как *Error.
func Struct(v any) error {
	s := Get()
	err := s.Validator.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &Error{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field:   fe.Field(),
			Message: fe.Translate(s.Translator),
		})
	}
	return out
}

// RegisterValidation регистрирует пользовательский тег.
func RegisterValidation(tag string, fn validator.Func) error {
	return Get().Validator.RegisterValidation(tag, fn)
}
