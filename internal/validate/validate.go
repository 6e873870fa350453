// Package validate checks user input with go-playground/validator and turns
// failures into ValidationFailure errors carrying English field messages.
package validate

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/alexanderramin/studygen/internal/gateway"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	once  sync.Once
	v     *govalidator.Validate
	trans ut.Translator
)

func setup() {
	v = govalidator.New(govalidator.WithRequiredStructEnabled())
	// Field names in messages come from the json tag.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(v, trans)
}

// Fields validates s and returns field name -> message, or nil when s is valid.
func Fields(s any) map[string]string {
	once.Do(setup)
	if err := v.Struct(s); err != nil {
		return TranslateErrors(err)
	}
	return nil
}

// Struct validates s and returns a ValidationFailure describing every
// invalid field.
func Struct(s any) error {
	fields := Fields(s)
	if fields == nil {
		return nil
	}
	return gateway.Validation(summary(fields), fields)
}

// Field validates s and returns the message for one field only, for
// per-field checks in interactive forms.
func Field(s any, name string) error {
	if msg, ok := Fields(s)[name]; ok {
		return errors.New(msg)
	}
	return nil
}

// TranslateErrors maps a validator error to field messages. Errors that are
// not validation errors end up under "detail".
func TranslateErrors(err error) map[string]string {
	once.Do(setup)
	fields := make(map[string]string)

	var ve govalidator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			fields[fe.Field()] = fe.Translate(trans)
		}
		return fields
	}
	fields["detail"] = err.Error()
	return fields
}

func summary(fields map[string]string) string {
	if len(fields) == 1 {
		for _, msg := range fields {
			return msg
		}
	}
	return "invalid input"
}
