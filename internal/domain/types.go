package domain

import "github.com/google/uuid"

type UserID = uuid.UUID
type NamespaceID = uuid.UUID
type PackageID = uuid.UUID

// CanonicalID is the single string encoding used wherever identifiers are
// compared or used as map keys. Role sets, rating maps and report maps all
// key on this form.
func CanonicalID(id uuid.UUID) string { return id.String() }

// ParseID is the inverse of CanonicalID.
func ParseID(s string) (uuid.UUID, error) { return uuid.Parse(s) }
