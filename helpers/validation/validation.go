// Package validation holds the shared validator instance and turns its errors into
// InvalidArgument errors keyed by JSON field name.
package validation

import (
	"errors"
	"reflect"
	"sort"
	"strings"

	"elearn_backend/helpers/apperr"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
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
	_ = Validate.RegisterTranslation(notBlankTag, Translator, func(ut ut.Translator) error {
		return ut.Add(notBlankTag, "{0} is a required field", true)
	}, func(ut ut.Translator, fe validator.FieldError) string {
		t, _ := ut.T(notBlankTag, fe.Field())
		return t
	})
}

// notBlank rejects strings that are empty after trimming. Nil pointers pass, so it
// combines with optional fields of partial updates.
func notBlank(fl validator.FieldLevel) bool {
	field := fl.Field()
	switch field.Kind() {
	case reflect.String:
		return strings.TrimSpace(field.String()) != ""
	default:
		return !field.IsZero()
	}
}

// Check validates v and returns an InvalidArgument error carrying one message per field.
func Check(v interface{}) error {
	err := Validate.Struct(v)
	if err == nil {
		return nil
	}
	return Translate(err)
}

// Translate converts validator errors. Other errors come back as a plain InvalidArgument.
func Translate(err error) error {
	var vErrs validator.ValidationErrors
	if !errors.As(err, &vErrs) {
		return apperr.InvalidArgument(err.Error())
	}

	fields := make(map[string]string, len(vErrs))
	names := make([]string, 0, len(vErrs))
	for _, fe := range vErrs {
		fields[fe.Field()] = fe.Translate(Translator)
		names = append(names, fe.Field())
	}
	sort.Strings(names)
	return apperr.InvalidFields("Invalid fields: "+strings.Join(names, ", "), fields)
}
