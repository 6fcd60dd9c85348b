package models

import "github.com/ratepoint/core/internal/modules/template/schema"

// TemplateModel is a content template: a named, versioned form schema an
// operator defines and publishes before items can be created against it.
type TemplateModel struct {
	Base
	Audit
	Name        string `json:"name"        gorm:"uniqueIndex;not null"`
	DisplayName string `json:"displayName" gorm:"not null"`
	Description string `json:"description" gorm:"type:text"`
	FullMarks   int    `json:"fullMarks"   gorm:"default:10"`
	IsPublished bool   `json:"isPublished" gorm:"default:false;index"`

	Fields []TemplateFieldModel `json:"fields,omitempty" gorm:"foreignKey:TemplateID"`
}

func (TemplateModel) TableName() string { return "templates" }

// TemplateFieldModel is one ordered field definition within a template.
// The rule set is stored as a JSON column; NULL means "no rules".
type TemplateFieldModel struct {
	Base
	TemplateID   int64            `json:"-"            gorm:"index;not null"`
	Name         string           `json:"name"         gorm:"not null"`
	DisplayName  string           `json:"displayName"  gorm:"not null"`
	Description  string           `json:"description"  gorm:"type:text"`
	FieldType    schema.FieldType `json:"fieldType"    gorm:"not null;default:text"`
	IsRequired   bool             `json:"isRequired"`
	IsSearchable bool             `json:"isSearchable"`
	IsFilterable bool             `json:"isFilterable"`
	DisplayOrder int              `json:"displayOrder" gorm:"not null;default:0"`
	DataSourceID *int64           `json:"dataSourceId"`
	Rules        *schema.RuleSet  `json:"validationRules" gorm:"type:longtext;serializer:json"`
}

func (TemplateFieldModel) TableName() string { return "template_fields" }

// SchemaField converts the persisted row to the schema value type used by
// editing sessions and item validation.
func (f TemplateFieldModel) SchemaField() schema.Field {
	return schema.Field{
		ID:           f.ID,
		Name:         f.Name,
		DisplayName:  f.DisplayName,
		Description:  f.Description,
		FieldType:    f.FieldType,
		IsRequired:   f.IsRequired,
		IsSearchable: f.IsSearchable,
		IsFilterable: f.IsFilterable,
		DisplayOrder: f.DisplayOrder,
		DataSourceID: f.DataSourceID,
		Rules:        f.Rules,
	}
}
