// Package validation wraps go-playground/validator with the program's field naming and custom rules.
//
// Field names in errors come from the `prop` struct tag (the legacy property name, e.g.
// FB_PAGE_ID), then the `json` tag, then the Go field name, so configuration failures can be
// reported with the names operators actually set.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"mtm-automation/pkg/mtm"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError is a single failed rule.
type FieldError struct {
	Value any
	Field string
	Tag   string
	Param string
}

func (e FieldError) Error() string {
	switch e.Tag {
	case "required", "required_if", "required_with":
		return e.Field + " is required"
	case "gt", "gte", "min":
		return fmt.Sprintf("%s must be at least %s", e.Field, e.Param)
	case "lt", "lte", "max":
		return fmt.Sprintf("%s must be at most %s", e.Field, e.Param)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", e.Field, e.Param)
	case "ymd":
		return e.Field + " must be YYYY-MM-DD"
	case "starttime":
		return e.Field + " must be ISO 8601 with timezone"
	case "timezone":
		return e.Field + " must be an IANA timezone"
	default:
		return fmt.Sprintf("%s failed %s validation", e.Field, e.Tag)
	}
}

// Errors collects every failed rule of one struct.
type Errors []FieldError

func (errs Errors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Missing returns the names of fields that failed a required rule.
func (errs Errors) Missing() []string {
	var out []string
	for _, e := range errs {
		if isRequired(e.Tag) {
			out = append(out, e.Field)
		}
	}
	return out
}

func isRequired(tag string) bool {
	return strings.HasPrefix(tag, "required")
}

// Validator returns the shared validator instance.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(fieldName)
		mustRegister("ymd", func(fl validator.FieldLevel) bool {
			return mtm.ValidDay(fl.Field().String())
		})
		mustRegister("starttime", func(fl validator.FieldLevel) bool {
			return mtm.ValidateStartTime(fl.Field().String()) == nil
		})
	})
	return validate
}

func mustRegister(tag string, fn validator.Func) {
	if err := validate.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validator: %v", tag, err))
	}
}

func fieldName(f reflect.StructField) string {
	if prop := f.Tag.Get("prop"); prop != "" {
		return prop
	}
	if name, _, _ := strings.Cut(f.Tag.Get("json"), ","); name != "" && name != "-" {
		return name
	}
	return f.Name
}

// Struct validates s and returns nil or the collected field errors.
func Struct(s any) Errors {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Errors{{Field: "unknown", Tag: "unknown", Param: err.Error()}}
	}
	out := make(Errors, len(verrs))
	for i, fe := range verrs {
		out[i] = FieldError{
			Field: fe.Field(),
			Tag:   fe.Tag(),
			Param: fe.Param(),
			Value: fe.Value(),
		}
	}
	return out
}

// Config validates a configuration section. Missing values are reported together.
func Config(s any) error {
	errs := Struct(s)
	if errs == nil {
		return nil
	}
	cerr := &mtm.ConfigError{Missing: errs.Missing()}
	var other []string
	for _, e := range errs {
		if !isRequired(e.Tag) {
			other = append(other, e.Error())
		}
	}
	cerr.Reason = strings.Join(other, "; ")
	return cerr
}

// Input validates request options and returns the first failure as *mtm.ValidationError.
func Input(s any) error {
	errs := Struct(s)
	if errs == nil {
		return nil
	}
	first := errs[0]
	return &mtm.ValidationError{Field: first.Field, Value: fmt.Sprint(first.Value), Reason: first.Error()}
}
