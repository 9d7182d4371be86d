// Package authutil hashes and verifies account passwords.
//
// New passwords are stored as bcrypt hashes. Accounts imported from the
// previous system carry an unsalted hex SHA-1 digest; those still verify
// and report NeedsRehash so they can be upgraded on the next login.
package authutil

import (
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the work factor for newly stored hashes.
const BcryptCost = 12

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	return string(hash), err
}

// CheckPassword reports whether password matches the stored hash, which
// may be bcrypt or a legacy digest.
func CheckPassword(password, hash string) bool {
	if password == "" || hash == "" {
		return false
	}
	if IsLegacyDigest(hash) {
		return subtle.ConstantTimeCompare([]byte(LegacyDigest(password)), []byte(strings.ToLower(hash))) == 1
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// NeedsRehash reports whether a verified hash should be replaced: it is a
// legacy digest or a bcrypt hash weaker than BcryptCost.
func NeedsRehash(hash string) bool {
	if IsLegacyDigest(hash) {
		return true
	}
	cost, err := bcrypt.Cost([]byte(hash))
	return err == nil && cost < BcryptCost
}

// IsLegacyDigest reports whether hash is a 40-character hex SHA-1 digest.
func IsLegacyDigest(hash string) bool {
	if len(hash) != 2*sha1.Size {
		return false
	}
	_, err := hex.DecodeString(hash)
	return err == nil
}

// LegacyDigest returns the hex SHA-1 digest of password.
func LegacyDigest(password string) string {
	sum := sha1.Sum([]byte(password))
	return hex.EncodeToString(sum[:])
}
