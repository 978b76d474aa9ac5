package app

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"

	"moviestats/internal/domain"
)

// SignupInput is the raw signup form.
type SignupInput struct {
	Username string `json:"username" form:"username" validate:"required,alphanum,max=20"`
	Email    string `json:"email"    form:"email"    validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required,max=20"`
}

// LoginInput is the raw login form.
type LoginInput struct {
	Email    string `json:"email"    form:"email"    validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required,max=20"`
}

// Validator checks the structure of signup and login payloads. It holds no
// per-request state and is safe for concurrent use.
type Validator struct {
	v     *validator.Validate
	trans ut.Translator
}

// NewValidator builds a Validator with English error messages. It panics if
// the English translations cannot be registered.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("form"); name != "" {
			return name
		}
		return f.Name
	})

	locale := en.New()
	trans, found := ut.New(locale, locale).GetTranslator(locale.Locale())
	if !found {
		panic(fmt.Sprintf("validator: no translator for locale %q", locale.Locale()))
	}
	if err := entranslations.RegisterDefaultTranslations(v, trans); err != nil {
		panic(fmt.Sprintf("validator: register translations: %v", err))
	}

	return &Validator{v: v, trans: trans}
}

// Signup validates and normalizes a signup payload.
func (val *Validator) Signup(in SignupInput) (SignupInput, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := val.check(in); err != nil {
		return SignupInput{}, err
	}
	return in, nil
}

// Login validates and normalizes a login payload.
func (val *Validator) Login(in LoginInput) (LoginInput, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := val.check(in); err != nil {
		return LoginInput{}, err
	}
	return in, nil
}

func (val *Validator) check(in any) error {
	err := val.v.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	first := fieldErrs[0]
	return &domain.ValidationError{Field: first.Field(), Message: first.Translate(val.trans)}
}
