package domain

import "time"

// MetadataSentinel is what every descriptive field holds between upload and
// verification. The sweep replaces it with manifest values or an explicit
// "<field> not provided." marker.
const MetadataSentinel = "Package Under Verification"

// DependencyRef is one declared dependency after resolution against the
// registry: namespace name, package name and an optional exact version.
type DependencyRef struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
	Version   string `json:"version,omitempty"`
}

type Version struct {
	Version      string    `json:"version"`
	Tarball      string    `json:"tarball"`
	OID          string    `json:"oid"`
	DownloadURL  string    `json:"download_url"`
	IsDeprecated bool      `json:"isDeprecated"`
	CreatedAt    time.Time `json:"createdAt"`

	// Dependencies is nil until the verification sweep resolves the
	// manifest's declarations against the registry.
	Dependencies   []DependencyRef `json:"dependencies,omitempty"`
	IsVerified     bool            `json:"isVerified"`
	UnableToVerify bool            `json:"unabletoVerify,omitempty"`
}

type Ratings struct {
	// Users maps canonical user id -> rating 1..5.
	Users map[string]int `json:"users"`
	// Counts maps "1".."5" -> how many users gave that rating.
	Counts map[string]int `json:"counts"`
}

type Report struct {
	Reason   string `json:"reason"`
	IsViewed bool   `json:"isViewed"`
}

type MaliciousReport struct {
	IsViewed bool `json:"isViewed"`
	// Users maps canonical user id -> that user's report.
	Users map[string]Report `json:"users"`
}

type Package struct {
	ID        PackageID   `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string      `gorm:"not null;uniqueIndex:ux_packages_name_namespace" json:"name"`
	Namespace NamespaceID `gorm:"type:uuid;uniqueIndex:ux_packages_name_namespace" json:"namespace"`
	// NamespaceName caches the owning namespace's name. It is written only by
	// the publish transaction; a mismatch with the namespace record is a data
	// integrity bug.
	NamespaceName string   `gorm:"not null" json:"namespace_name"`
	Author        UserID   `gorm:"type:uuid" json:"author"`
	Maintainers   []UserID `gorm:"serializer:json;type:text" json:"maintainers"`
	License       string   `json:"license"`
	IsDeprecated  bool     `gorm:"not null;default:false" json:"is_deprecated"`

	Description         string   `json:"description"`
	Homepage            string   `json:"homepage"`
	Repository          string   `json:"repository"`
	Copyright           string   `json:"copyright"`
	RegistryDescription string   `json:"registry_description"`
	Keywords            []string `gorm:"serializer:json;type:text" json:"keywords"`
	Categories          []string `gorm:"serializer:json;type:text" json:"categories"`

	Versions        []Version       `gorm:"serializer:json;type:text" json:"versions"`
	Ratings         Ratings         `gorm:"serializer:json;type:text" json:"ratings"`
	MaliciousReport MaliciousReport `gorm:"serializer:json;type:text" json:"malicious_report"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Package) TableName() string { return "packages" }

// HasVersion reports whether the exact version string is already recorded.
func (p *Package) HasVersion(version string) bool {
	for _, v := range p.Versions {
		if v.Version == version {
			return true
		}
	}
	return false
}

// VersionNamed returns the recorded version with the given string, if any.
func (p *Package) VersionNamed(version string) (Version, bool) {
	for _, v := range p.Versions {
		if v.Version == version {
			return v, true
		}
	}
	return Version{}, false
}
