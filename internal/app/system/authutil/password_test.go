package authutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("toto1234!")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(hash, "$2"), "hash %q is not bcrypt", hash)
	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, BcryptCost, cost)

	again, err := HashPassword("toto1234!")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again, "bcrypt hashes are salted")
}

func TestCheckPassword(t *testing.T) {
	hash, err := HashPassword("toto1234!")
	require.NoError(t, err)

	tests := []struct {
		name     string
		password string
		hash     string
		want     bool
	}{
		{"bcrypt match", "toto1234!", hash, true},
		{"bcrypt mismatch", "toto1234?", hash, false},
		{"password with colon", "a:b", mustHash(t, "a:b"), true},
		{"legacy match", "toto1234!", LegacyDigest("toto1234!"), true},
		{"legacy uppercase", "toto1234!", strings.ToUpper(LegacyDigest("toto1234!")), true},
		{"legacy mismatch", "other", LegacyDigest("toto1234!"), false},
		{"empty password", "", hash, false},
		{"empty hash", "toto1234!", "", false},
		{"garbage hash", "toto1234!", "not-a-hash", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CheckPassword(tt.password, tt.hash))
		})
	}
}

func mustHash(t *testing.T, pw string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestNeedsRehash(t *testing.T) {
	current, err := HashPassword("x")
	require.NoError(t, err)

	assert.True(t, NeedsRehash(LegacyDigest("x")), "legacy digest")
	assert.True(t, NeedsRehash(mustHash(t, "x")), "weak bcrypt")
	assert.False(t, NeedsRehash(current), "current bcrypt")
	assert.False(t, NeedsRehash("not-a-hash"), "unknown format")
}

func TestLegacyDigest(t *testing.T) {
	// sha1("toto1234!")
	assert.Equal(t, "89cad29e3ebc1035b29b1478a8e70854f25fa2b2", LegacyDigest("toto1234!"))
}

func TestIsLegacyDigest(t *testing.T) {
	tests := []struct {
		hash string
		want bool
	}{
		{LegacyDigest("x"), true},
		{"$2a$12$abcdefghijklmnopqrstuuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ012", false},
		{"abc123", false},
		{strings.Repeat("z", 40), false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsLegacyDigest(tt.hash), "IsLegacyDigest(%q)", tt.hash)
	}
}
