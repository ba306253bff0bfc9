package handler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// echoValidator wraps go-playground/validator so Echo can call c.Validate(req).
type echoValidator struct {
	v       *validator.Validate
	english ut.Translator
}

// NewValidator returns an echoValidator ready to be assigned to echo.Echo.Validator.
// Errors it returns render in English unless localized.
func NewValidator() (*echoValidator, error) {
	v := validator.New()
	locale := en.New()
	english, _ := ut.New(locale, locale).GetTranslator(locale.Locale())
	if err := en_translations.RegisterDefaultTranslations(v, english); err != nil {
		return nil, fmt.Errorf("validator: %w", err)
	}
	return &echoValidator{v: v, english: english}, nil
}

// Engine exposes the underlying validator for translation registration.
func (ev *echoValidator) Engine() *validator.Validate { return ev.v }

// Validate satisfies the echo.Validator interface.
func (ev *echoValidator) Validate(i any) error {
	if err := ev.v.Struct(i); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			return &ValidationError{fields: ve, english: ev.english}
		}
		return err
	}
	return nil
}

// ValidationError carries the failed fields so they can be rendered in the
// caller's locale.
type ValidationError struct {
	fields  validator.ValidationErrors
	english ut.Translator
}

func (e *ValidationError) Error() string {
	return e.Localize(nil)
}

// Localize renders every failed field with trans, or in English when trans
// is nil.
func (e *ValidationError) Localize(trans ut.Translator) string {
	if trans == nil {
		trans = e.english
	}
	msgs := make([]string, 0, len(e.fields))
	for _, fe := range e.fields {
		msgs = append(msgs, fe.Translate(trans))
	}
	return strings.Join(msgs, "; ")
}
