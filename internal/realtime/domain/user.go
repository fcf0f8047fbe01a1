package domain

import "time"

// UserRole daycare role carried by every identity
type UserRole string

const (
	// RoleAdmin daycare administrator
	RoleAdmin UserRole = "admin"
	// RoleEducator daycare educator
	RoleEducator UserRole = "educator"
	// RoleParent parent of an enrolled child
	RoleParent UserRole = "parent"
)

// Valid check the role is one of the three known roles
func (r UserRole) Valid() bool {
	return r == RoleAdmin || r == RoleEducator || r == RoleParent
}

// User directory row. The directory is owned by the account service,
// this service only reads it to resolve roles.
type User struct {
	ID        string    `gorm:"column:id;primaryKey" json:"id"`
	Name      string    `gorm:"column:name" json:"name"`
	Email     string    `gorm:"column:email" json:"email"`
	Role      UserRole  `gorm:"column:role" json:"role"`
	CreatedAt time.Time `gorm:"column:created_at" json:"createdAt"`
}

// TableName the directory table name
func (User) TableName() string {
	return "users"
}
