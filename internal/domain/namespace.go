package domain

import "time"

// UploadTokenTTL is how long an upload token stays usable after creation.
// Expiry is a strict inequality: a token is still valid at exactly 7 days.
const UploadTokenTTL = 7 * 24 * time.Hour

type UploadToken struct {
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"createdAt"`
	CreatedBy UserID    `json:"createdBy"`
}

// Expired reports whether the token is past its lifetime at the given instant.
func (t UploadToken) Expired(now time.Time) bool {
	return now.Sub(t.CreatedAt) > UploadTokenTTL
}

type Namespace struct {
	ID           NamespaceID   `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string        `gorm:"uniqueIndex:ux_namespaces_name" json:"namespace"`
	Admins       []UserID      `gorm:"serializer:json;type:text" json:"admins"`
	Maintainers  []UserID      `gorm:"serializer:json;type:text" json:"maintainers"`
	Packages     []PackageID   `gorm:"serializer:json;type:text" json:"packages"`
	UploadTokens []UploadToken `gorm:"serializer:json;type:text" json:"upload_tokens"`
	CreatedAt    time.Time     `gorm:"not null" json:"createdAt"`
	UpdatedAt    time.Time     `gorm:"not null" json:"updatedAt"`
}

func (Namespace) TableName() string { return "namespaces" }

// TokenNamed returns the stored token with the given opaque value, if any.
func (n *Namespace) TokenNamed(token string) (UploadToken, bool) {
	for _, t := range n.UploadTokens {
		if t.Token == token {
			return t, true
		}
	}
	return UploadToken{}, false
}
