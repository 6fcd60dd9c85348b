package models

// ItemModel is a content record created against a published template.
// Rating aggregates are denormalized and maintained inside the rating
// write transaction.
type ItemModel struct {
	Base
	Audit
	Title        string  `json:"title"        gorm:"not null;index"`
	Slug         string  `json:"slug"         gorm:"uniqueIndex;not null"`
	TemplateID   int64   `json:"templateId"   gorm:"index;not null"`
	AvgRating    float64 `json:"avgRating"    gorm:"default:0"`
	RatingsCount int     `json:"ratingsCount" gorm:"default:0"`
	ViewsCount   int     `json:"viewsCount"   gorm:"default:0"`

	Template    *TemplateModel        `json:"-" gorm:"foreignKey:TemplateID"`
	FieldValues []ItemFieldValueModel `json:"fieldValues,omitempty" gorm:"foreignKey:ItemID"`
}

func (ItemModel) TableName() string { return "items" }

// ItemFieldValueModel holds one field's value for an item. The value is a
// JSON column since its shape depends on the field type (string, number,
// bool, or string list for multiselect).
type ItemFieldValueModel struct {
	ID      int64 `json:"-" gorm:"primaryKey;autoIncrement"`
	ItemID  int64 `json:"-" gorm:"index;not null"`
	FieldID int64 `json:"fieldId" gorm:"index;not null"`
	Value   any   `json:"value"   gorm:"type:longtext;serializer:json"`

	Field *TemplateFieldModel `json:"-" gorm:"foreignKey:FieldID"`
}

func (ItemFieldValueModel) TableName() string { return "item_field_values" }

// RatingModel is one user's rating of an item, with optional review text.
type RatingModel struct {
	Base
	ItemID     int64  `json:"itemId" gorm:"uniqueIndex:idx_item_user;not null"`
	UserID     int64  `json:"userId" gorm:"uniqueIndex:idx_item_user;not null"`
	Rating     int    `json:"rating" gorm:"not null"`
	ReviewText string `json:"reviewText" gorm:"type:text"`
}

func (RatingModel) TableName() string { return "ratings" }
