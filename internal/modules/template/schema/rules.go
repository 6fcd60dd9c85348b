package schema

// Rule keys recognized per field type. Everything else is dropped at
// normalization time.
const (
	RuleMinLength = "minLength"
	RuleMaxLength = "maxLength"
	RulePattern   = "pattern"
	RuleMin       = "min"
	RuleMax       = "max"
)

// RuleSet is the typed representation of a field's validation rules.
// Which members are meaningful depends on the field type: text/textarea
// use minLength/maxLength/pattern, number uses min/max, all other types
// carry no rules. A nil *RuleSet marshals to JSON null, matching the wire
// contract that an empty rule set is "no rules" rather than {}.
type RuleSet struct {
	MinLength *int     `json:"minLength,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty"`
	Pattern   *string  `json:"pattern,omitempty"`
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
}

// IsEmpty reports whether no rule is set.
func (r *RuleSet) IsEmpty() bool {
	if r == nil {
		return true
	}
	return r.MinLength == nil && r.MaxLength == nil && r.Pattern == nil &&
		r.Min == nil && r.Max == nil
}

// Normalized returns a copy of r restricted to the keys recognized for the
// given field type, or nil when nothing survives. Calling it twice yields
// an identical result.
func (r *RuleSet) Normalized(t FieldType) *RuleSet {
	if r == nil {
		return nil
	}
	out := &RuleSet{}
	switch t {
	case FieldText, FieldTextarea:
		out.MinLength = r.MinLength
		out.MaxLength = r.MaxLength
		out.Pattern = r.Pattern
	case FieldNumber:
		out.Min = r.Min
		out.Max = r.Max
	}
	if out.IsEmpty() {
		return nil
	}
	return out
}

// IntRule, FloatRule and StringRule build pointer rule values for callers
// assembling a RuleSet literal.
func IntRule(v int) *int           { return &v }
func FloatRule(v float64) *float64 { return &v }
func StringRule(v string) *string  { return &v }
