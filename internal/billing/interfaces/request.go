package interfaces

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	billing "gas-billing/internal/billing/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := f.Tag.Get("query")
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

type periodQuery struct {
	Period string `query:"period" validate:"required,datetime=2006-01"`
}

type invoiceListQuery struct {
	CUPS      string `query:"cups" validate:"omitempty,max=32"`
	Period    string `query:"period" validate:"omitempty,datetime=2006-01"`
	IssueDate string `query:"issue_date" validate:"omitempty,datetime=2006-01-02"`
}

type invoiceNumberParam struct {
	Number string `query:"number" validate:"required,max=64"`
}

// bindQuery copies query values into the fields tagged with `query` and validates dest.
func bindQuery(r *http.Request, dest any) error {
	values := r.URL.Query()
	rv := reflect.ValueOf(dest).Elem()
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		name := rt.Field(i).Tag.Get("query")
		if name == "" || rv.Field(i).Kind() != reflect.String {
			continue
		}
		rv.Field(i).SetString(strings.TrimSpace(values.Get(name)))
	}
	return validateStruct(dest)
}

func validateStruct(dest any) error {
	err := validate.Struct(dest)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &billing.ValidationError{Reason: err.Error()}
	}
	fe := fieldErrs[0]
	return &billing.ValidationError{
		Field:  fe.Field(),
		Value:  fmt.Sprint(fe.Value()),
		Reason: validationMessage(fe),
	}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "datetime":
		switch fe.Param() {
		case "2006-01":
			return "expected YYYY-MM"
		case "2006-01-02":
			return "expected YYYY-MM-DD"
		}
	}
	return "is invalid"
}
