package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	dErrors "prereg/pkg/domain-errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// DemographicPayload is the applicant's demographic document. The identity
// object is opaque; only the presence of required fields is interpreted.
type DemographicPayload struct {
	LangCode string         `json:"langCode" validate:"required,len=3,alpha"`
	Identity map[string]any `json:"identity" validate:"required"`
}

// Normalize trims the language code and lowercases it.
func (p *DemographicPayload) Normalize() {
	p.LangCode = strings.ToLower(strings.TrimSpace(p.LangCode))
}

// Validate checks the structural shape of the payload.
func (p *DemographicPayload) Validate() error {
	if p == nil {
		return dErrors.New(dErrors.CodeValidation, "demographic payload is required")
	}
	return validateStruct(p)
}

// MissingFields returns the required identity fields that are absent or
// empty, sorted by name.
func (p DemographicPayload) MissingFields(required []string) []string {
	var missing []string
	for _, field := range required {
		if isBlank(p.Identity[field]) {
			missing = append(missing, field)
		}
	}
	sort.Strings(missing)
	return missing
}

// IsComplete reports whether every required identity field is filled in.
func (p DemographicPayload) IsComplete(required []string) bool {
	return len(p.MissingFields(required)) == 0
}

// Clone returns a deep copy, so stored payloads never alias caller memory.
func (p DemographicPayload) Clone() DemographicPayload {
	out := DemographicPayload{LangCode: p.LangCode}
	if p.Identity != nil {
		out.Identity = cloneValue(p.Identity).(map[string]any)
	}
	return out
}

func isBlank(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case map[string]any:
		return len(val) == 0
	case []any:
		return len(val) == 0
	default:
		return false
	}
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, item := range val {
			m[k] = cloneValue(item)
		}
		return m
	case []any:
		s := make([]any, len(val))
		for i, item := range val {
			s[i] = cloneValue(item)
		}
		return s
	default:
		return val
	}
}

// validateStruct runs struct tag validation and folds the failures into one
// validation error naming each offending field.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid request")
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, describeFieldError(fe))
	}
	return dErrors.New(dErrors.CodeValidation, strings.Join(parts, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	field := jsonFieldName(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "len":
		return fmt.Sprintf("%s must be %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

func jsonFieldName(goName string) string {
	if goName == "" {
		return goName
	}
	return strings.ToLower(goName[:1]) + goName[1:]
}
