package excuse

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/mahudhurio/core"
)

var (
	reasonTag  = "excuse_reason"
	reasonText = "reason must be one of sick-leave, bereavement or other"

	decisionTag  = "excuse_decision"
	decisionText = "decision must be one of approved or rejected"
)

// InitValidators registers the excuse validation tags.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(reasonTag, core.OneOfValidation(AllReasons...))
	core.RegisterCustomTranslation(validate, translator, reasonTag, reasonText)

	_ = validate.RegisterValidation(decisionTag, core.OneOfValidation(AllDecisions...))
	core.RegisterCustomTranslation(validate, translator, decisionTag, decisionText)
}
