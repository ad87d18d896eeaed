package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"gitlab.com/derailed/derailed/internal/snowflake"
)

const secret = "0123456789abcdef0123456789abcdef"

func newManager(t *testing.T, ttl time.Duration) *Manager {
	m, err := NewManager(secret, ttl, snowflake.NewGenerator(snowflake.DefaultEpoch, 0, 0))
	require.Nil(t, err)
	return m
}

func TestIssueVerify(t *testing.T) {
	require := require.New(t)
	m := newManager(t, 0)
	token, err := m.Issue(42, 43)
	require.Nil(err)

	claims, err := m.Verify(token)
	require.Nil(err)
	require.Equal(snowflake.ID(42), claims.UserID)
	require.Equal(snowflake.ID(43), claims.DeviceID)
	require.NotEmpty(claims.ID)
	require.Nil(claims.ExpiresAt)
}

func TestShortSecret(t *testing.T) {
	_, err := NewManager("short", 0, snowflake.NewGenerator(snowflake.DefaultEpoch, 0, 0))
	require.NotNil(t, err)
}

func TestTampered(t *testing.T) {
	require := require.New(t)
	m := newManager(t, 0)
	token, err := m.Issue(42, 43)
	require.Nil(err)

	parts := strings.Split(token, ".")
	require.Len(parts, 3)
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	_, err = m.Verify(parts[0] + "." + parts[1] + "." + string(sig))
	require.ErrorIs(err, ErrInvalidToken)

	other, err := NewManager(strings.Repeat("x", 32), 0, snowflake.NewGenerator(snowflake.DefaultEpoch, 0, 0))
	require.Nil(err)
	_, err = other.Verify(token)
	require.ErrorIs(err, ErrInvalidToken)
}

func TestExpired(t *testing.T) {
	require := require.New(t)
	m := newManager(t, time.Minute)
	now := time.Now()
	m.now = func() time.Time { return now }
	token, err := m.Issue(42, 43)
	require.Nil(err)

	_, err = m.Verify(token)
	require.Nil(err)

	m.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, err = m.Verify(token)
	require.ErrorIs(err, ErrInvalidToken)
}

func TestRejectsOtherAlgorithms(t *testing.T) {
	require := require.New(t)
	m := newManager(t, 0)
	claims := Claims{UserID: 1, DeviceID: 2, RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.Nil(err)
	_, err = m.Verify(token)
	require.ErrorIs(err, ErrInvalidToken)
}
