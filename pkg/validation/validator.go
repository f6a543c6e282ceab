// Package validation implements field-level request validation for endpoint
// parameters, including the mandatory SQL-injection heuristics.
package validation

import (
	"regexp"
	"strconv"
	"time"

	"github.com/datazoode/flapi/pkg/config"
)

// FieldError is one validation failure attributed to a field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var (
	emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	uuidRe  = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
)

// ValidateRequestParameters runs every field's validators against params and
// returns the accumulated errors in field order. Validating the same input
// twice yields identical results.
func ValidateRequestParameters(fields []config.RequestFieldConfig, params map[string]string) []FieldError {
	var errs []FieldError
	for i := range fields {
		errs = append(errs, validateField(&fields[i], params)...)
	}
	return errs
}

// ValidateRequestFields flags parameters that are not defined on the
// endpoint. The pagination parameters offset and limit are always permitted.
func ValidateRequestFields(fields []config.RequestFieldConfig, params map[string]string) []FieldError {
	known := make(map[string]bool, len(fields)+2)
	for i := range fields {
		known[fields[i].FieldName] = true
	}
	known["offset"] = true
	known["limit"] = true

	var errs []FieldError
	for name := range params {
		if !known[name] {
			errs = append(errs, FieldError{name, "Unknown parameter not defined in endpoint configuration"})
		}
	}
	return errs
}

func validateField(field *config.RequestFieldConfig, params map[string]string) []FieldError {
	value, present := params[field.FieldName]
	if !present {
		if field.Required {
			return []FieldError{{field.FieldName, "Required field is missing"}}
		}
		return nil
	}

	// The injection check runs unless every listed validator opts out; a
	// field with no validators at all is still checked.
	checkInjection := true
	if len(field.Validators) > 0 {
		allDisable := true
		for i := range field.Validators {
			if field.Validators[i].PreventsSQLInjection() {
				allDisable = false
				break
			}
		}
		checkInjection = !allDisable
	}

	var errs []FieldError
	for i := range field.Validators {
		v := &field.Validators[i]
		switch v.Type {
		case "string":
			errs = append(errs, validateString(field.FieldName, value, v)...)
		case "int":
			errs = append(errs, validateInt(field.FieldName, value, v)...)
		case "email":
			errs = append(errs, validateEmail(field.FieldName, value)...)
		case "uuid":
			errs = append(errs, validateUUID(field.FieldName, value)...)
		case "date":
			errs = append(errs, validateDate(field.FieldName, value, v)...)
		case "time":
			errs = append(errs, validateTime(field.FieldName, value, v)...)
		case "enum":
			errs = append(errs, validateEnum(field.FieldName, value, v)...)
		}
	}

	if checkInjection {
		errs = append(errs, CheckSQLInjection(field.FieldName, value)...)
	}
	return errs
}

func validateString(name, value string, v *config.ValidatorConfig) []FieldError {
	var errs []FieldError
	if v.Min > 0 && len(value) < v.Min {
		errs = append(errs, FieldError{name, "String is shorter than the minimum allowed length"})
	}
	if v.Max > 0 && len(value) > v.Max {
		errs = append(errs, FieldError{name, "String is longer than the maximum allowed length"})
	}
	if v.Regex != "" {
		re, err := regexp.Compile("^(?:" + v.Regex + ")$")
		if err != nil || !re.MatchString(value) {
			errs = append(errs, FieldError{name, "Invalid string format"})
		}
	}
	return errs
}

func validateInt(name, value string, v *config.ValidatorConfig) []FieldError {
	n, err := strconv.Atoi(value)
	if err != nil {
		return []FieldError{{name, "Invalid integer value"}}
	}
	if v.Min == 0 && v.Max == 0 {
		return nil
	}
	var errs []FieldError
	if n < v.Min {
		errs = append(errs, FieldError{name, "Integer is less than the minimum allowed value"})
	}
	if n > v.Max {
		errs = append(errs, FieldError{name, "Integer is greater than the maximum allowed value"})
	}
	return errs
}

func validateEmail(name, value string) []FieldError {
	if !emailRe.MatchString(value) {
		return []FieldError{{name, "Invalid email format"}}
	}
	return nil
}

func validateUUID(name, value string) []FieldError {
	if !uuidRe.MatchString(value) {
		return []FieldError{{name, "Invalid UUID format"}}
	}
	return nil
}

func validateDate(name, value string, v *config.ValidatorConfig) []FieldError {
	d, err := time.Parse("2006-01-02", value)
	if err != nil {
		return []FieldError{{name, "Invalid date format"}}
	}
	var errs []FieldError
	if v.MinDate != "" {
		if min, err := time.Parse("2006-01-02", v.MinDate); err == nil && d.Before(min) {
			errs = append(errs, FieldError{name, "Date is before the minimum allowed date"})
		}
	}
	if v.MaxDate != "" {
		if max, err := time.Parse("2006-01-02", v.MaxDate); err == nil && d.After(max) {
			errs = append(errs, FieldError{name, "Date is after the maximum allowed date"})
		}
	}
	return errs
}

func validateTime(name, value string, v *config.ValidatorConfig) []FieldError {
	t, err := time.Parse("15:04:05", value)
	if err != nil {
		return []FieldError{{name, "Invalid time format"}}
	}
	var errs []FieldError
	if v.MinTime != "" {
		if min, err := time.Parse("15:04:05", v.MinTime); err == nil && t.Before(min) {
			errs = append(errs, FieldError{name, "Time is before the minimum allowed time"})
		}
	}
	if v.MaxTime != "" {
		if max, err := time.Parse("15:04:05", v.MaxTime); err == nil && t.After(max) {
			errs = append(errs, FieldError{name, "Time is after the maximum allowed time"})
		}
	}
	return errs
}

func validateEnum(name, value string, v *config.ValidatorConfig) []FieldError {
	for _, allowed := range v.AllowedValues {
		if value == allowed {
			return nil
		}
	}
	return []FieldError{{name, "Invalid enum value"}}
}
