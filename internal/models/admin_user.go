package models

import "time"

// AdminRole controls what an admin user may do in the back office.
type AdminRole string

const (
	RoleAdmin    AdminRole = "admin"    // full access including team management
	RoleOperator AdminRole = "operator" // order operations, catalog sync
	RoleViewer   AdminRole = "viewer"   // read-only dashboards
)

// AdminUser represents a back-office team member.
type AdminUser struct {
	ID           int        `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Name         string     `db:"name" json:"name"`
	Role         AdminRole  `db:"role" json:"role"`
	IsActive     bool       `db:"is_active" json:"isActive"`
	LastLoginAt  *time.Time `db:"last_login_at" json:"lastLoginAt,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`
}
