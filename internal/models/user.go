package models

// UserModel is a dashboard operator account.
type UserModel struct {
	Base
	Username string `json:"username" gorm:"uniqueIndex;not null"`
	Email    string `json:"email"    gorm:"uniqueIndex;not null"`
	Password string `json:"-"        gorm:"not null"`
	Avatar   string `json:"avatar"`
	RoleID   int64  `json:"roleId"   gorm:"index;not null;default:0"`

	Role *RoleModel `json:"-" gorm:"foreignKey:RoleID"`
}

func (UserModel) TableName() string { return "users" }

// RoleModel is a small lookup table seeded at migration time.
type RoleModel struct {
	ID   int64  `json:"id"   gorm:"primaryKey;autoIncrement"`
	Name string `json:"name" gorm:"uniqueIndex;not null"`
}

func (RoleModel) TableName() string { return "roles" }

// Built-in role names seeded by the migration.
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)
