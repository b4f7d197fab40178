package auth

import (
	"encoding/hex"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

func CheckPassword(pw, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// MakeToken returns a hex-encoded random UUID, enough entropy for
// activation and confirmation links.
func MakeToken() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}
