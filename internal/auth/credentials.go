package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashPassword derives the stored credential form: hex sha256 of the
// password concatenated with the process-wide salt.
func HashPassword(password, salt string) string {
	sum := sha256.Sum256([]byte(password + salt))
	return hex.EncodeToString(sum[:])
}

// RoleForCredential decides the role granted at account creation. A
// credential matching the configured privileged credential yields "admin";
// everything else is a plain "user". The signup collaborator calls this;
// the publish transaction then reads the resulting role set off the user
// record.
func RoleForCredential(hashedPassword, privilegedHash string) string {
	if privilegedHash != "" &&
		subtle.ConstantTimeCompare([]byte(hashedPassword), []byte(privilegedHash)) == 1 {
		return "admin"
	}
	return "user"
}
