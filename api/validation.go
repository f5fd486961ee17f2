package api

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// RegisterValidators installs custom binding validators on gin's engine.
// Safe to call more than once.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return v.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
		return currencyPattern.MatchString(fl.Field().String())
	})
}
