package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Mode is the explicit editing mode a session is constructed with.
type Mode int

const (
	ModeCreate Mode = iota
	ModeEdit
	ModeView
)

var (
	// ErrReadOnly is returned when a mutation is attempted on a view-mode session.
	ErrReadOnly = errors.New("session is read-only")
	// ErrNoBuffer is returned when Confirm is called with no open edit buffer.
	ErrNoBuffer = errors.New("no field open for editing")
	// ErrFieldIncomplete is returned when the edit buffer fails the
	// non-empty name/displayName precondition.
	ErrFieldIncomplete = errors.New("field name and display name are required")
	// ErrTemplateIncomplete is returned by the submission gate.
	ErrTemplateIncomplete = errors.New("template name and display name are required")
)

// Session is a single-document editing session for one template. It owns
// the template under edit and a transient field edit buffer; nothing
// touches the field list until the buffer is confirmed. Construct one on
// entering the editor and discard it on exit.
type Session struct {
	mode Mode
	tpl  Template
	buf  *Field
}

// NewSession starts an editing session over tpl. For ModeCreate callers
// typically pass Blank().
func NewSession(mode Mode, tpl Template) *Session {
	return &Session{mode: mode, tpl: tpl}
}

// Mode returns the mode the session was constructed with.
func (s *Session) Mode() Mode { return s.mode }

// Template returns the current in-memory template.
func (s *Session) Template() Template { return s.tpl }

// Fields returns the current field list.
func (s *Session) Fields() []Field { return s.tpl.Fields }

// SetName updates the template's internal name.
func (s *Session) SetName(name string) { s.tpl.Name = name }

// SetDisplayName updates the template's display name.
func (s *Session) SetDisplayName(name string) { s.tpl.DisplayName = name }

// OpenForCreate initializes a blank field record in the edit buffer.
// No side effects on the template until Confirm.
func (s *Session) OpenForCreate() {
	f := BlankField()
	s.buf = &f
}

// OpenForEdit loads a copy of an existing field into the edit buffer.
func (s *Session) OpenForEdit(f Field) {
	copied := f
	if f.Rules != nil {
		rules := *f.Rules
		copied.Rules = &rules
	}
	s.buf = &copied
}

// Buffer exposes the transient edit buffer, or nil when none is open.
func (s *Session) Buffer() *Field { return s.buf }

// SetFieldType changes the buffered field's type. Moving away from
// select/multiselect clears the data source reference in the same
// mutation; it is never left for the caller.
func (s *Session) SetFieldType(t FieldType) {
	if s.buf == nil {
		return
	}
	s.buf.FieldType = t
	if !t.TakesDataSource() {
		s.buf.DataSourceID = nil
	}
}

// SetRule merges one rule key into the buffered field's rule set. A nil
// value clears the key; unknown keys are rejected.
func (s *Session) SetRule(key string, value any) error {
	if s.buf == nil {
		return ErrNoBuffer
	}
	if s.buf.Rules == nil {
		s.buf.Rules = &RuleSet{}
	}
	r := s.buf.Rules
	switch key {
	case RuleMinLength:
		r.MinLength = toIntPtr(value)
	case RuleMaxLength:
		r.MaxLength = toIntPtr(value)
	case RulePattern:
		r.Pattern = toStrPtr(value)
	case RuleMin:
		r.Min = toFloatPtr(value)
	case RuleMax:
		r.Max = toFloatPtr(value)
	default:
		return fmt.Errorf("unknown validation rule %q", key)
	}
	return nil
}

// Confirm applies the edit buffer to the field list.
//
// When no field in the list carries the buffer's id (or the id is the
// sentinel 0), the buffer is inserted with a fresh placeholder id of
// min(0, existing ids)-1 and displayOrder len+1. Otherwise the matching
// field is replaced in place, keeping its position when the buffer carries
// no explicit displayOrder. The list is then stably re-sorted by
// displayOrder. The buffer is closed on success.
func (s *Session) Confirm() error {
	if s.mode == ModeView {
		return ErrReadOnly
	}
	if s.buf == nil {
		return ErrNoBuffer
	}
	if strings.TrimSpace(s.buf.Name) == "" || strings.TrimSpace(s.buf.DisplayName) == "" {
		return ErrFieldIncomplete
	}

	f := *s.buf
	idx := s.indexOf(f.ID)
	if f.ID == 0 || idx < 0 {
		f.ID = s.nextPlaceholderID()
		f.DisplayOrder = len(s.tpl.Fields) + 1
		s.tpl.Fields = append(s.tpl.Fields, f)
	} else {
		if f.DisplayOrder == 0 {
			f.DisplayOrder = s.tpl.Fields[idx].DisplayOrder
		}
		s.tpl.Fields[idx] = f
	}

	sort.SliceStable(s.tpl.Fields, func(i, j int) bool {
		return s.tpl.Fields[i].DisplayOrder < s.tpl.Fields[j].DisplayOrder
	})
	s.buf = nil
	return nil
}

// DeleteField removes the field with the given id and closes the gap by
// reassigning displayOrder as the 1-based list index. Absent ids are a
// no-op.
func (s *Session) DeleteField(id int64) error {
	if s.mode == ModeView {
		return ErrReadOnly
	}
	idx := s.indexOf(id)
	if idx < 0 {
		return nil
	}
	s.tpl.Fields = append(s.tpl.Fields[:idx], s.tpl.Fields[idx+1:]...)
	for i := range s.tpl.Fields {
		s.tpl.Fields[i].DisplayOrder = i + 1
	}
	return nil
}

// CanSubmit reports whether the session's template passes the submission gate.
func (s *Session) CanSubmit() bool { return s.tpl.CanSubmit() }

// PrepareForSubmission returns the template in the exact shape that crosses
// the gateway boundary: the submission gate enforced, every field's rule
// set restricted to the keys its type recognizes (empty sets become null),
// data source references cleared for types that take none, and
// displayOrder resequenced to a dense 1..N range in list order. The
// operation is idempotent.
func (s *Session) PrepareForSubmission() (Template, error) {
	if !s.tpl.CanSubmit() {
		return Template{}, ErrTemplateIncomplete
	}
	out := s.tpl
	out.Name = strings.TrimSpace(out.Name)
	out.DisplayName = strings.TrimSpace(out.DisplayName)
	out.Fields = NormalizeFields(s.tpl.Fields)
	return out, nil
}

// NormalizeFields returns a cleaned copy of fields: stable-sorted by
// displayOrder, resequenced 1..N, rules normalized per type, and
// dataSourceId nulled for types outside select/multiselect.
func NormalizeFields(fields []Field) []Field {
	out := make([]Field, len(fields))
	copy(out, fields)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DisplayOrder < out[j].DisplayOrder
	})
	for i := range out {
		out[i].DisplayOrder = i + 1
		out[i].Rules = out[i].Rules.Normalized(out[i].FieldType)
		if !out[i].FieldType.TakesDataSource() {
			out[i].DataSourceID = nil
		}
	}
	return out
}

func (s *Session) indexOf(id int64) int {
	for i, f := range s.tpl.Fields {
		if f.ID == id {
			return i
		}
	}
	return -1
}

// nextPlaceholderID yields a strictly negative id distinct from every
// existing field id: min(0, existing ids) - 1.
func (s *Session) nextPlaceholderID() int64 {
	var lowest int64
	for _, f := range s.tpl.Fields {
		if f.ID < lowest {
			lowest = f.ID
		}
	}
	return lowest - 1
}

func toIntPtr(v any) *int {
	switch n := v.(type) {
	case nil:
		return nil
	case int:
		return &n
	case int64:
		i := int(n)
		return &i
	case float64:
		i := int(n)
		return &i
	case *int:
		return n
	}
	return nil
}

func toFloatPtr(v any) *float64 {
	switch n := v.(type) {
	case nil:
		return nil
	case float64:
		return &n
	case int:
		f := float64(n)
		return &f
	case int64:
		f := float64(n)
		return &f
	case *float64:
		return n
	}
	return nil
}

func toStrPtr(v any) *string {
	switch sv := v.(type) {
	case nil:
		return nil
	case string:
		if sv == "" {
			return nil
		}
		return &sv
	case *string:
		return sv
	}
	return nil
}
