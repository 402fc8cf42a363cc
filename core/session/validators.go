package session

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/mahudhurio/core"
)

var (
	methodTag  = "attendance_method"
	methodText = "attendance method must be one of electronic, code or roll_call"
)

// InitValidators registers the session validation tags.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(methodTag, core.OneOfValidation(AllMethods...))
	core.RegisterCustomTranslation(validate, translator, methodTag, methodText)
}
