// Package validation provides request validation using the validator/v10
// library, with tags for the identifiers used by the rental engine.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/shelfkeep/shelfkeep-server/internal/domain"
	domainerrors "github.com/shelfkeep/shelfkeep-server/internal/errors"
	"github.com/shelfkeep/shelfkeep-server/internal/normalize"
)

// Custom tags.
const (
	TagNIF      = "nif"      // nine-digit taxpayer number with a valid check digit
	TagSerial13 = "serial13" // 13-digit book serial number
	TagPhone9   = "phone9"   // nine-digit contact number
	TagDMYDate  = "dmydate"  // dd-MM-yyyy or dd/MM/yyyy
	TagSafeName = "safename" // non-blank name without control characters
)

// Validator wraps go-playground/validator with domain error conversion.
type Validator struct {
	v *validator.Validate
}

// New creates a validator configured for our domain.
func New() *Validator {
	v := validator.New()

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := fld.Tag.Get("json")
		if name == "" {
			return fld.Name
		}
		if i := strings.IndexByte(name, ','); i >= 0 {
			name = name[:i]
		}
		if name == "-" {
			return fld.Name
		}
		return name
	})

	mustRegister(v, TagNIF, func(fl validator.FieldLevel) bool {
		n, ok := intValue(fl.Field())
		return ok && domain.ValidNIF(n)
	})
	mustRegister(v, TagSerial13, func(fl validator.FieldLevel) bool {
		n, ok := intValue(fl.Field())
		return ok && domain.ValidSerialNumber(n)
	})
	mustRegister(v, TagPhone9, func(fl validator.FieldLevel) bool {
		n, ok := intValue(fl.Field())
		return ok && domain.ValidContact(n)
	})
	mustRegister(v, TagDMYDate, func(fl validator.FieldLevel) bool {
		_, err := domain.ParseDate(fl.Field().String())
		return err == nil
	})
	mustRegister(v, TagSafeName, func(fl validator.FieldLevel) bool {
		return SafeName(fl.Field().String())
	})

	return &Validator{v: v}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %q: %v", tag, err))
	}
}

func intValue(f reflect.Value) (int64, bool) {
	switch f.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return f.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(f.Uint()), true
	default:
		return 0, false
	}
}

// SafeName reports whether s is non-blank after normalization and free of
// control characters.
func SafeName(s string) bool {
	if normalize.Name(s) == "" {
		return false
	}
	for _, r := range s {
		if unicode.IsControl(r) && r != '\t' {
			return false
		}
	}
	return true
}

// Validate validates a struct and returns a domain error.
func (v *Validator) Validate(s any) error {
	if err := v.v.Struct(s); err != nil {
		return v.formatError(err)
	}
	return nil
}

// formatError converts validator errors to domain errors.
func (v *Validator) formatError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	fieldErrors := make(map[string]string)
	for _, e := range validationErrs {
		fieldErrors[fieldPath(e)] = v.friendlyMessage(e)
	}

	return domainerrors.ValidationWithDetails("validation failed", fieldErrors)
}

// fieldPath drops the top-level struct name from the namespace so nested
// fields read "books[0].title".
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return e.Field()
}

//nolint:gocyclo // Switch statement covering validation tags is intentionally exhaustive.
func (v *Validator) friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "required_without":
		return "is required when " + e.Param() + " is not set"
	case "min":
		if e.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s items", e.Param())
		}
		return fmt.Sprintf("must be at least %s characters", e.Param())
	case "max":
		if e.Kind() == reflect.Slice {
			return fmt.Sprintf("must not contain more than %s items", e.Param())
		}
		return fmt.Sprintf("must not exceed %s characters", e.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", e.Param())
	case "oneof":
		return "must be one of: " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	case "gt":
		return "must be greater than " + e.Param()
	case "lt":
		return "must be less than " + e.Param()
	case TagNIF:
		return "must be a valid 9-digit NIF"
	case TagSerial13:
		return "must be a 13-digit serial number"
	case TagPhone9:
		return "must be a 9-digit phone number"
	case TagDMYDate:
		return "must be a date in the dd-MM-yyyy or dd/MM/yyyy format"
	case TagSafeName:
		return "must be a non-blank name without control characters"
	default:
		return "is invalid"
	}
}
