package item

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/ratepoint/core/internal/modules/template/schema"
)

// FieldError describes one failed check against the template schema.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationErrors aggregates every schema violation in a payload so the
// dashboard can surface them all at once.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.Field + ": " + e.Reason
	}
	return "invalid field values: " + strings.Join(parts, "; ")
}

// entryLookup resolves a data source id to its allowed values.
type entryLookup func(dataSourceID int64) ([]string, error)

var dateLayouts = []string{time.RFC3339, "2006-01-02"}

// validateValues checks a fieldId→value map against a template's field
// schema: required presence, the typed rule set, and select/multiselect
// membership in the referenced data source. Unknown field ids are
// rejected. Returns ValidationErrors (never partial writes).
func validateValues(fields []schema.Field, values map[int64]any, entries entryLookup) error {
	byID := make(map[int64]schema.Field, len(fields))
	for _, f := range fields {
		byID[f.ID] = f
	}

	var errs ValidationErrors
	for id := range values {
		if _, ok := byID[id]; !ok {
			errs = append(errs, FieldError{Field: fmt.Sprintf("field %d", id), Reason: "not part of the template"})
		}
	}

	for _, f := range fields {
		value, present := values[f.ID]
		if !present || isEmptyValue(value) {
			if f.IsRequired {
				errs = append(errs, FieldError{Field: f.Name, Reason: "value is required"})
			}
			continue
		}
		if ferr := checkValue(f, value, entries); ferr != nil {
			errs = append(errs, *ferr)
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func checkValue(f schema.Field, value any, entries entryLookup) *FieldError {
	fail := func(reason string) *FieldError {
		return &FieldError{Field: f.Name, Reason: reason}
	}

	switch f.FieldType {
	case schema.FieldText, schema.FieldTextarea:
		s, ok := value.(string)
		if !ok {
			return fail("must be a string")
		}
		return checkStringRules(f, s)

	case schema.FieldNumber:
		n, ok := asFloat(value)
		if !ok {
			return fail("must be a number")
		}
		if r := f.Rules; r != nil {
			if r.Min != nil && n < *r.Min {
				return fail(fmt.Sprintf("must be at least %g", *r.Min))
			}
			if r.Max != nil && n > *r.Max {
				return fail(fmt.Sprintf("must be at most %g", *r.Max))
			}
		}

	case schema.FieldDate:
		s, ok := value.(string)
		if !ok {
			return fail("must be a date string")
		}
		if _, err := parseDate(s); err != nil {
			return fail("must be an ISO date")
		}

	case schema.FieldCheckbox:
		if _, ok := value.(bool); !ok {
			return fail("must be a boolean")
		}

	case schema.FieldURL:
		s, ok := value.(string)
		if !ok {
			return fail("must be a string")
		}
		u, err := url.Parse(s)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fail("must be an absolute URL")
		}

	case schema.FieldImage:
		if _, ok := value.(string); !ok {
			return fail("must be a file reference")
		}

	case schema.FieldSelect:
		s, ok := value.(string)
		if !ok {
			return fail("must be a string")
		}
		return checkMembership(f, []string{s}, entries)

	case schema.FieldMultiSelect:
		items, ok := asStringSlice(value)
		if !ok {
			return fail("must be a list of strings")
		}
		return checkMembership(f, items, entries)

	default:
		return fail("unsupported field type " + string(f.FieldType))
	}
	return nil
}

func checkStringRules(f schema.Field, s string) *FieldError {
	r := f.Rules
	if r == nil {
		return nil
	}
	length := len([]rune(s))
	if r.MinLength != nil && length < *r.MinLength {
		return &FieldError{Field: f.Name, Reason: fmt.Sprintf("must be at least %d characters", *r.MinLength)}
	}
	if r.MaxLength != nil && length > *r.MaxLength {
		return &FieldError{Field: f.Name, Reason: fmt.Sprintf("must be at most %d characters", *r.MaxLength)}
	}
	if r.Pattern != nil {
		re, err := regexp.Compile(*r.Pattern)
		if err != nil {
			return &FieldError{Field: f.Name, Reason: "has an invalid pattern rule"}
		}
		if !re.MatchString(s) {
			return &FieldError{Field: f.Name, Reason: "does not match the required pattern"}
		}
	}
	return nil
}

func checkMembership(f schema.Field, values []string, entries entryLookup) *FieldError {
	if f.DataSourceID == nil {
		return nil
	}
	allowed, err := entries(*f.DataSourceID)
	if err != nil {
		return &FieldError{Field: f.Name, Reason: "data source unavailable"}
	}
	set := make(map[string]bool, len(allowed))
	for _, v := range allowed {
		set[v] = true
	}
	for _, v := range values {
		if !set[v] {
			return &FieldError{Field: f.Name, Reason: fmt.Sprintf("%q is not an allowed value", v)}
		}
	}
	return nil
}

func isEmptyValue(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case []any:
		return len(x) == 0
	case []string:
		return len(x) == 0
	}
	return false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func asStringSlice(v any) ([]string, bool) {
	switch items := v.(type) {
	case []string:
		return items, true
	case []any:
		out := make([]string, len(items))
		for i, item := range items {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
