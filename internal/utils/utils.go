package utils

import (
	"crypto/rand"
	"encoding/base64"
	"regexp"
	"strings"
)

const InviteCodeLen = 8

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

func ValidateEmail(email string) bool {
	return len(email) <= 254 && emailRe.MatchString(email)
}

// GenInviteCode returns a random URL-safe code of InviteCodeLen characters.
func GenInviteCode() (string, error) {
	// 6 random bytes encode to exactly 8 base64 characters
	buf := make([]byte, InviteCodeLen*3/4)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

var inviteCodeRe = regexp.MustCompile(`^[A-Za-z0-9_-]{8}$`)

func ValidInviteCode(code string) bool {
	return inviteCodeRe.MatchString(code)
}

// BearerToken extracts the token from an Authorization header. Both
// "Bearer <token>" and a bare token are accepted.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}
