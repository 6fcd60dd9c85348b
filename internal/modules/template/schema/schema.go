// Package schema models a template's dynamic field schema and the
// editing session used to build or modify it before persistence.
package schema

import "strings"

// FieldType is the closed set of supported field types.
type FieldType string

const (
	FieldText        FieldType = "text"
	FieldTextarea    FieldType = "textarea"
	FieldNumber      FieldType = "number"
	FieldSelect      FieldType = "select"
	FieldMultiSelect FieldType = "multiselect"
	FieldDate        FieldType = "date"
	FieldCheckbox    FieldType = "checkbox"
	FieldImage       FieldType = "image"
	FieldURL         FieldType = "url"
)

// FieldTypes lists every valid field type, in display order.
var FieldTypes = []FieldType{
	FieldText, FieldTextarea, FieldNumber, FieldSelect, FieldMultiSelect,
	FieldDate, FieldCheckbox, FieldImage, FieldURL,
}

// Valid reports whether t is a member of the closed type set.
func (t FieldType) Valid() bool {
	for _, ft := range FieldTypes {
		if t == ft {
			return true
		}
	}
	return false
}

// TakesDataSource reports whether the type references an external enumeration.
func (t FieldType) TakesDataSource() bool {
	return t == FieldSelect || t == FieldMultiSelect
}

// Field is one typed, ordered element of a template's schema.
// A persisted field has id > 0; a field added during editing carries a
// locally unique negative placeholder id until the template is saved.
type Field struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	DisplayName  string    `json:"displayName"`
	Description  string    `json:"description,omitempty"`
	FieldType    FieldType `json:"fieldType"`
	IsRequired   bool      `json:"isRequired"`
	IsSearchable bool      `json:"isSearchable"`
	IsFilterable bool      `json:"isFilterable"`
	DisplayOrder int       `json:"displayOrder"`
	DataSourceID *int64    `json:"dataSourceId"`
	Rules        *RuleSet  `json:"validationRules"`
}

// Template is a named schema of fields governing how a content item is
// structured and validated.
type Template struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	DisplayName string  `json:"displayName"`
	Description string  `json:"description,omitempty"`
	FullMarks   int     `json:"fullMarks"`
	IsPublished bool    `json:"isPublished"`
	Fields      []Field `json:"fields"`
}

// Blank returns the fixed empty default used when creating a new template.
func Blank() Template {
	return Template{FullMarks: 10}
}

// BlankField returns an empty field record for the edit buffer.
func BlankField() Field {
	return Field{FieldType: FieldText}
}

// CanSubmit reports whether the template passes the submission gate:
// name and displayName must both be non-empty after trimming whitespace.
func (t Template) CanSubmit() bool {
	return strings.TrimSpace(t.Name) != "" && strings.TrimSpace(t.DisplayName) != ""
}
