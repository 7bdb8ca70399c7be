// Package leads holds the canonical validation contract for buyer records.
//
// Every transport decodes into Input first: JSON request bodies through
// DecodeJSON, CSV rows through DecodeRow, partial updates through Patch.
// Validation then runs once, against the same rules, whatever the origin.
package leads

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mmynk/homequest/internal/models"
)

// ValidationError carries per-field messages keyed by the JSON field name.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, strings.Join(e.Fields[name], "; ")))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

func (e *ValidationError) merge(other *ValidationError) {
	if other == nil {
		return
	}
	for field, msgs := range other.Fields {
		for _, m := range msgs {
			e.add(field, m)
		}
	}
}

func (e *ValidationError) empty() bool {
	return e == nil || len(e.Fields) == 0
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	register := func(tag string, valid func(string) bool) {
		if err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return valid(fl.Field().String())
		}); err != nil {
			panic(fmt.Sprintf("leads: register %s validation: %v", tag, err))
		}
	}
	register("city", func(s string) bool { return models.Cities.Valid(models.City(s)) })
	register("propertytype", func(s string) bool { return models.PropertyTypes.Valid(models.PropertyType(s)) })
	register("bhk", func(s string) bool { return models.BHKs.Valid(models.BHK(s)) })
	register("purpose", func(s string) bool { return models.Purposes.Valid(models.Purpose(s)) })
	register("timeline", func(s string) bool { return models.Timelines.Valid(models.Timeline(s)) })
	register("source", func(s string) bool { return models.Sources.Valid(models.Source(s)) })
	register("status", func(s string) bool { return models.Statuses.Valid(models.Status(s)) })
	return v
}

var enumLabels = map[string][]string{
	"city":         models.Cities.Strings(),
	"propertytype": models.PropertyTypes.Strings(),
	"bhk":          models.BHKs.Strings(),
	"purpose":      models.Purposes.Strings(),
	"timeline":     models.Timelines.Strings(),
	"source":       models.Sources.Strings(),
	"status":       models.Statuses.Strings(),
}

// Validate checks in against the canonical rules and returns nil or a
// *ValidationError.
func Validate(in Input) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		out.add(fe.Field(), message(fe))
	}
	return out
}

func message(fe validator.FieldError) string {
	if labels, ok := enumLabels[fe.Tag()]; ok {
		return "must be one of: " + strings.Join(labels, ", ")
	}
	switch fe.Tag() {
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "email":
		return "must be a valid email address"
	case "gt":
		return "must be a positive integer"
	case "required":
		return "is required"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
