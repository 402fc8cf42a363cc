package echoapi

import (
	"strconv"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/excuse"
	"github.com/trezcool/mahudhurio/core/session"
)

type appValidator struct {
	validate *validator.Validate
}

func (v appValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

type cleaner interface {
	Clean()
}

// bindAndValidate binds the request body to data, cleans it when it knows how, then validates it.
func bindAndValidate(ctx echo.Context, data interface{}) error {
	if err := ctx.Bind(data); err != nil {
		return errors.Wrapf(err, "binding to %T", data)
	}
	if c, ok := data.(cleaner); ok {
		c.Clean()
	}
	return ctx.Validate(data)
}

func intParam(ctx echo.Context, name string) (int, error) {
	v, err := strconv.Atoi(ctx.Param(name))
	if err != nil || v < 1 {
		return 0, core.NewValidationError(nil, core.FieldError{Field: name, Error: "must be a positive integer"})
	}
	return v, nil
}

func boolQuery(ctx echo.Context, name string) bool {
	b, _ := strconv.ParseBool(ctx.QueryParam(name))
	return b
}

// NewValidator returns a validator knowing the custom tags of every domain package.
func NewValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	session.InitValidators(validate, translator)
	attendance.InitValidators(validate, translator)
	excuse.InitValidators(validate, translator)
	return validate
}
