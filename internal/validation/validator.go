// Package validation wraps go-playground/validator with the tags and
// messages used by the reservation API.
package validation

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	ErrInvalidFormat      = "Invalid format"
	ErrFieldRequired      = "Field is required"
	ErrFieldExceedsMaxLen = "Field exceeds maximum length"
	ErrFieldBelowMinLen   = "Field is below minimum length"
	ErrFieldExceedsMaxVal = "Field exceeds maximum value"
	ErrFieldBelowMinVal   = "Field is below minimum value"
	ErrInvalidEmail       = "Invalid email address"
	ErrInvalidDate        = "Date must be YYYY-MM-DD"
	ErrInvalidSlot        = "Time must be HH:MM"
	ErrUnknownValidation  = "Unknown validation error"
)

var slotRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// FieldError describes one rejected field using its JSON name.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Validator checks structs tagged with `validate`.
type Validator struct {
	v *validator.Validate
}

// New returns a Validator with the isodate and slottime tags registered.
// Field names in errors come from the json tag. It panics if a tag cannot
// be registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	mustRegister(v, "isodate", validateISODate)
	mustRegister(v, "slottime", validateSlotTime)
	return &Validator{v: v}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validation: register %q: %v", tag, err))
	}
}

func validateISODate(fl validator.FieldLevel) bool {
	_, err := time.Parse("2006-01-02", fl.Field().String())
	return err == nil
}

func validateSlotTime(fl validator.FieldLevel) bool {
	return slotRegex.MatchString(fl.Field().String())
}

// Struct validates s and returns every failing field, or nil.
func (v *Validator) Struct(ctx context.Context, s any) ([]FieldError, error) {
	err := v.v.StructCtx(ctx, s)
	if err == nil {
		return nil, nil
	}
	var vErrors validator.ValidationErrors
	if !errors.As(err, &vErrors) {
		return nil, fmt.Errorf("validate: %w", err)
	}
	out := make([]FieldError, 0, len(vErrors))
	for _, fe := range vErrors {
		out = append(out, FieldError{Field: fe.Field(), Message: message(fe)})
	}
	return out, nil
}

func message(fe validator.FieldError) string {
	numeric := false
	switch fe.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		numeric = true
	}
	switch fe.Tag() {
	case "required":
		return ErrFieldRequired
	case "max", "lte", "lt":
		if numeric {
			return fmt.Sprintf("%s (%s)", ErrFieldExceedsMaxVal, fe.Param())
		}
		return fmt.Sprintf("%s (%s)", ErrFieldExceedsMaxLen, fe.Param())
	case "min", "gte", "gt":
		if numeric {
			return fmt.Sprintf("%s (%s)", ErrFieldBelowMinVal, fe.Param())
		}
		return fmt.Sprintf("%s (%s)", ErrFieldBelowMinLen, fe.Param())
	case "email":
		return ErrInvalidEmail
	case "isodate":
		return ErrInvalidDate
	case "slottime":
		return ErrInvalidSlot
	case "oneof":
		return fmt.Sprintf("Must be one of: %s", fe.Param())
	}
	return ErrUnknownValidation
}
