// Package validation adapts go-playground/validator to the command and query buses.
package validation

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"staybook/internal/app/middleware"
)

// Validator checks struct tags on commands and queries.
type Validator struct {
	validate *validator.Validate
}

func New() (*Validator, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		return nil, err
	}
	v.RegisterTagNameFunc(fieldName)
	return &Validator{validate: v}, nil
}

var _ middleware.Validator = (*Validator)(nil)

func (v *Validator) Validate(ctx context.Context, message any) error {
	if message == nil {
		return fmt.Errorf("%w: empty message", middleware.ErrValidation)
	}
	rv := reflect.ValueOf(message)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return fmt.Errorf("%w: empty message", middleware.ErrValidation)
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	err := v.validate.StructCtx(ctx, rv.Interface())
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %s", middleware.ErrValidation, describe(fieldErrs))
	}
	return err
}

func describe(errs validator.ValidationErrors) string {
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		switch fe.Tag() {
		case "required", "notblank":
			parts = append(parts, fe.Field()+" is required")
		case "datetime":
			parts = append(parts, fe.Field()+" must be a YYYY-MM-DD date")
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param()))
		case "min", "max":
			parts = append(parts, fmt.Sprintf("%s must be %s %s", fe.Field(), bound(fe.Tag()), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

func bound(tag string) string {
	if tag == "min" {
		return "at least"
	}
	return "at most"
}

// fieldName reports snake_case names so messages match the JSON API.
func fieldName(f reflect.StructField) string {
	name := strings.TrimSuffix(f.Name, "V")
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && !(name[i-1] >= 'A' && name[i-1] <= 'Z') {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
