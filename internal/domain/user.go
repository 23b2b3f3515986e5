package domain

import "time"

// User is owned by the auth collaborator; the registry core only reads
// identity and role data and appends authored-package back-references.
type User struct {
	ID        UserID      `gorm:"type:uuid;primaryKey" json:"id"`
	UUID      string      `gorm:"uniqueIndex:ux_users_uuid" json:"uuid"`
	Username  string      `gorm:"type:text" json:"username"`
	Email     string      `gorm:"type:text" json:"email"`
	Roles     []string    `gorm:"serializer:json;type:text" json:"roles"`
	AuthorOf  []PackageID `gorm:"serializer:json;type:text" json:"authorOf"`
	CreatedAt time.Time   `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time   `gorm:"not null" json:"updatedAt"`
}

func (User) TableName() string { return "users" }

// IsAdmin reports whether the user's role set contains the "admin" role.
func (u *User) IsAdmin() bool {
	for _, r := range u.Roles {
		if r == "admin" {
			return true
		}
	}
	return false
}
