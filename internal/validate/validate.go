// Package validate holds the shared struct validator and the error type
// it produces.
package validate

import (
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/pkg/errors"
)

var (
	Validate   *validator.Validate
	Translator ut.Translator

	notBlankTag = "notblank"
)

func init() {
	Validate = validator.New()

	_en := en.New()
	uni := ut.New(_en, _en)
	Translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(Validate, Translator)

	// Use JSON tag names for errors instead of Go struct names.
	Validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = Validate.RegisterValidation(notBlankTag, notBlank)
	_ = Validate.RegisterTranslation(notBlankTag, Translator,
		func(ut.Translator) error { return nil },
		func(ut.Translator, validator.FieldError) string { return "this field is required" },
	)
}

func notBlank(fl validator.FieldLevel) bool {
	if str, ok := fl.Field().Interface().(string); ok {
		return strings.TrimSpace(str) != ""
	}
	return false
}

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ValidationError lists every field that failed.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func (err *ValidationError) Error() string {
	if err.Err == nil {
		return "validation failed"
	}
	return err.Err.Error()
}

func (err *ValidationError) Unwrap() error { return err.Err }

// Struct validates v and returns a *ValidationError with translated
// messages keyed by JSON field name.
func Struct(v interface{}) error {
	err := Validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	ve := &ValidationError{Err: errors.New("validation failed")}
	for _, fe := range verrs {
		ve.Fields = append(ve.Fields, FieldError{Field: fe.Field(), Error: fe.Translate(Translator)})
	}
	return ve
}

// Fields returns the field list when err is a validation error.
func Fields(err error) ([]FieldError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Fields, true
	}
	return nil, false
}
