package validate

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/and161185/taler-client/internal/errs"
)

var (
	reOrderID  = regexp.MustCompile(`^[A-Za-z0-9.:_-]+$`)
	reCurrency = regexp.MustCompile(`^[A-Z]{1,11}$`)
)

// OrderID reports whether s is a valid merchant order id.
func OrderID(s string) bool { return reOrderID.MatchString(s) }

// Currency reports whether s is a valid currency code.
func Currency(s string) bool { return reCurrency.MatchString(s) }

// BaseURL reports whether s is an absolute http(s) URL ending with a slash.
func BaseURL(s string) bool {
	if !strings.HasSuffix(s, "/") {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// structs is built once; validator.Validate is safe for concurrent use.
var structs = newValidator()

func newValidator() *validatorv10.Validate {
	v := validatorv10.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	mustRegister(v, "taler_order_id", func(fl validatorv10.FieldLevel) bool { return OrderID(fl.Field().String()) })
	mustRegister(v, "taler_base_url", func(fl validatorv10.FieldLevel) bool { return BaseURL(fl.Field().String()) })
	mustRegister(v, "taler_currency", func(fl validatorv10.FieldLevel) bool { return Currency(fl.Field().String()) })
	return v
}

func mustRegister(v *validatorv10.Validate, tag string, fn validatorv10.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s: %v", tag, err))
	}
}

// Struct checks presence and format tags of s and converts the first failure
// to a *errs.ValidationError.
func Struct(s any) error {
	err := structs.Struct(s)
	if err == nil {
		return nil
	}
	var ve validatorv10.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return err
	}
	fe := ve[0]
	field := fieldPath(fe.Namespace())
	return &errs.ValidationError{Field: field, Rule: fe.Tag(), Message: message(field, fe)}
}

// fieldPath drops the root type and embedded struct names from a validator
// namespace. Embedded structs have no json tag, so their segment keeps the Go
// name, which is the only way a segment can start upper case.
func fieldPath(ns string) string {
	parts := strings.Split(ns, ".")
	kept := make([]string, 0, len(parts))
	for _, p := range parts[1:] {
		if p != "" && unicode.IsUpper(rune(p[0])) {
			continue
		}
		kept = append(kept, p)
	}
	return strings.Join(kept, ".")
}

func message(field string, fe validatorv10.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("missing required field %q", field)
	case "taler_order_id":
		return fmt.Sprintf("Invalid order_id %v: only characters [A-Za-z0-9.:_-] are allowed", quote(fe.Value()))
	case "taler_base_url":
		return fmt.Sprintf("%s must be an absolute URL ending with \"/\", got %v", field, quote(fe.Value()))
	case "taler_currency":
		return fmt.Sprintf("%s is not a valid currency code: %v", field, quote(fe.Value()))
	default:
		return fmt.Sprintf("field %q failed the %q check", field, fe.Tag())
	}
}

func quote(v any) string {
	if s, ok := v.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprint(v)
}
