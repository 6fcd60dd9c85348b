package models

// DataSourceModel is an externally defined enumeration referenced by
// select/multiselect template fields.
type DataSourceModel struct {
	Base
	Name        string `json:"name" gorm:"uniqueIndex;not null"`
	Description string `json:"description" gorm:"type:text"`

	Entries []DataSourceEntryModel `json:"entries,omitempty" gorm:"foreignKey:DataSourceID"`
}

func (DataSourceModel) TableName() string { return "data_sources" }

// DataSourceEntryModel is one value of an enumeration.
type DataSourceEntryModel struct {
	ID           int64  `json:"id"    gorm:"primaryKey;autoIncrement"`
	DataSourceID int64  `json:"-"     gorm:"index;not null"`
	Value        string `json:"value" gorm:"not null"`
	Label        string `json:"label"`
	SortOrder    int    `json:"sortOrder" gorm:"default:0"`
}

func (DataSourceEntryModel) TableName() string { return "data_source_entries" }
