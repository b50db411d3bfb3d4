package models

import "gorm.io/gorm"

// Platform-wide roles. Group-scoped roles live on Member.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

type User struct {
	gorm.Model
	Email     string `json:"email" gorm:"unique" binding:"required,email"`
	Password  string `json:"-"`
	Phone     string `json:"phone" gorm:"unique"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"` // "member", "admin"
	IsActive  bool   `json:"is_active" gorm:"default:true"`

	Memberships []Member `gorm:"foreignKey:UserID" json:"memberships,omitempty"`
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
