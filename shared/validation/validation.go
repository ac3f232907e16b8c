package validation

import (
	"errors"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
)

// Validator wraps validator/v10 with English error messages.
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// New creates a Validator with the default English translations registered.
func New() *Validator {
	english := en.New()
	uni := ut.New(english, english)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New(validator.WithRequiredStructEnabled())
	_ = entranslations.RegisterDefaultTranslations(validate, translator)

	return &Validator{
		validate:   validate,
		translator: translator,
	}
}

// Engine exposes the underlying validator for custom rule registration.
func (v *Validator) Engine() *validator.Validate {
	return v.validate
}

// Struct validates s and returns a single error whose message lists every
// failing field, e.g. "Name is a required field; Email is a required field".
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fe.Translate(v.translator))
	}

	return errors.New(strings.Join(msgs, "; "))
}
