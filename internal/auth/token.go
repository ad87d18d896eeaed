package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gitlab.com/derailed/derailed/internal/snowflake"
)

const issuer = "derailed"

var ErrInvalidToken = errors.New("invalid token")

// Claims identify a user and the device the token was issued for.
type Claims struct {
	UserID   snowflake.ID `json:"user_id"`
	DeviceID snowflake.ID `json:"device_id"`
	jwt.RegisteredClaims
}

type IDSource interface {
	Next() snowflake.ID
}

// Manager issues and verifies HS256 tokens.
type Manager struct {
	secret []byte
	ttl    time.Duration
	ids    IDSource
	now    func() time.Time
}

// NewManager returns a Manager signing with secret. A zero ttl issues
// tokens without expiry: they stay valid until the device is removed.
func NewManager(secret string, ttl time.Duration, ids IDSource) (*Manager, error) {
	if len(secret) < 32 {
		return nil, errors.New("token secret must be at least 32 bytes")
	}
	return &Manager{secret: []byte(secret), ttl: ttl, ids: ids, now: time.Now}, nil
}

func (m *Manager) Issue(userID, deviceID snowflake.ID) (string, error) {
	now := m.now()
	claims := Claims{
		UserID:   userID,
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       m.ids.Next().String(),
			Issuer:   issuer,
			Subject:  userID.String(),
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if m.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(m.ttl))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Verify checks the signature and the registered claims. It does not
// check that the device still exists.
func (m *Manager) Verify(tokenStr string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.now),
	)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == 0 || claims.DeviceID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
