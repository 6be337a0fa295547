package auth

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns a bcrypt hash of the password using DefaultCost.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// LegacyHash — SHA-512 в hex верхнего регистра, как хранились старые учетные записи.
func LegacyHash(password string) string {
	sum := sha512.Sum512([]byte(password))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

func isBcrypt(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") || strings.HasPrefix(hash, "$2b$") || strings.HasPrefix(hash, "$2y$")
}

// CheckPassword сравнивает пароль с хешем. bcrypt-хеши проверяются bcrypt,
// остальные считаются устаревшим SHA-512 hex и сравниваются без учета регистра.
func CheckPassword(hash string, password string) bool {
	if hash == "" {
		return false
	}
	if isBcrypt(hash) {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
	}
	want := strings.ToLower(strings.TrimSpace(hash))
	got := strings.ToLower(LegacyHash(password))
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}

// NeedsRehash — хеш устаревшего формата и его стоит заменить на bcrypt после входа.
func NeedsRehash(hash string) bool {
	return hash != "" && !isBcrypt(hash)
}
