package service

import (
	"github.com/Masterminds/semver/v3"
	"github.com/github/go-spdx/v2/spdxexp"
)

// allowedArchiveTypes is the declared content types an upload may carry.
var allowedArchiveTypes = map[string]bool{
	"application/gzip":         true,
	"application/zip":          true,
	"application/octet-stream": true,
	"application/x-tar":        true,
}

// validVersion reports whether s parses as a strict semantic version and is
// not the reserved "0.0.0".
func validVersion(s string) bool {
	if s == "0.0.0" {
		return false
	}
	_, err := semver.StrictNewVersion(s)
	return err == nil
}

// validLicense reports whether s is a valid SPDX license expression.
func validLicense(s string) bool {
	valid, _ := spdxexp.ValidateLicenses([]string{s})
	return valid
}
