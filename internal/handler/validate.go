package handler

import (
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

const notBlankTag = "notblank"

var (
	translator   ut.Translator
	validateOnce sync.Once
)

// setupValidator registers the english translations and custom tags on
// gin's validator engine.
func setupValidator() {
	validateOnce.Do(func() {
		_en := en.New()
		translator, _ = ut.New(_en, _en).GetTranslator("en")

		v, isValidator := binding.Validator.Engine().(*validator.Validate)
		if !isValidator {
			return
		}
		_ = en_translations.RegisterDefaultTranslations(v, translator)

		// Use JSON tag names for errors instead of Go struct names.
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		_ = v.RegisterValidation(notBlankTag, notBlank)
		_ = v.RegisterTranslation(notBlankTag, translator,
			func(ut.Translator) error { return nil },
			func(_ ut.Translator, fe validator.FieldError) string { return fe.Field() + " cannot be blank" },
		)
	})
}

func notBlank(fl validator.FieldLevel) bool {
	if s, isString := fl.Field().Interface().(string); isString {
		return strings.TrimSpace(s) != ""
	}
	return true
}
