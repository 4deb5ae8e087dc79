package users

import "time"

type Role string

const (
	RoleSuperAdmin    Role = "super_admin"
	RoleAdmin         Role = "admin"
	RoleDistrictAdmin Role = "district_admin"
	RoleBlockAdmin    Role = "block_admin"
	RoleSchoolAdmin   Role = "school_admin"
	RoleTeacher       Role = "teacher"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleDistrictAdmin, RoleBlockAdmin, RoleSchoolAdmin, RoleTeacher:
		return true
	}
	return false
}

// User is a credential record. SchoolID, District and Block scope the account
// to part of the school hierarchy; they are empty for system-wide roles.
type User struct {
	ID                uint       `json:"id" gorm:"primaryKey"`
	Username          string     `json:"username" gorm:"uniqueIndex;size:100;not null"`
	Email             string     `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash      string     `json:"-" gorm:"size:255;not null"`
	Role              Role       `json:"role" gorm:"size:32;not null;default:teacher"`
	SchoolID          *uint      `json:"school_id,omitempty" gorm:"index"`
	District          string     `json:"district,omitempty" gorm:"size:100"`
	Block             string     `json:"block,omitempty" gorm:"size:100"`
	IsActive          bool       `json:"is_active" gorm:"not null;default:true"`
	LastLoginAt       *time.Time `json:"last_login_at,omitempty"`
	PasswordChangedAt *time.Time `json:"password_changed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

type CreateUser struct {
	Username string
	Email    string
	Password string
	Role     Role
	SchoolID *uint
	District string
	Block    string
}
