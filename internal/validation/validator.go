package validation

import (
	"regexp"

	"library-service/internal/model"

	"github.com/go-playground/validator/v10"
)

var decimalPattern = regexp.MustCompile(`^\d{1,4}(\.\d{1,2})?$`)

// Validator plugs go-playground/validator into echo.
type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New()
	_ = v.RegisterValidation("cover", func(fl validator.FieldLevel) bool {
		_, err := model.ParseCoverType(fl.Field().String())
		return err == nil
	})
	// money as sent on the wire: up to numeric(6,2)
	_ = v.RegisterValidation("money", func(fl validator.FieldLevel) bool {
		return decimalPattern.MatchString(fl.Field().String())
	})
	return &Validator{v: v}
}

func (v *Validator) Validate(i interface{}) error {
	return v.v.Struct(i)
}
