package auth

import (
	"crypto/sha256"
	"encoding/base64"

	"golang.org/x/crypto/bcrypt"
)

func hash(data string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(data), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// HashPassword hashes a password the same way SignUp does
func HashPassword(password string, cost int) (string, error) {
	return hash(password, cost)
}

func matches(data, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(data)) == nil
}

// tokenDigest shortens a JWT below the 72 byte input limit of bcrypt
func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawStdEncoding.EncodeToString(sum[:])
}

func hashToken(token string, cost int) (string, error) {
	return hash(tokenDigest(token), cost)
}

func tokenMatches(token, hashed string) bool {
	return matches(tokenDigest(token), hashed)
}
