package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateEmail(t *testing.T) {
	require := require.New(t)
	valid := []string{
		"rasdfs@gmail.com",
		"rasdfs@piosdf.com",
		"asdfj.jh@pio.sdf.com",
	}
	invalid := []string{
		"asdjfkjsdhf",
		"@asdfjaskh",
		"asdfasdf@",
		"with space@mail.com",
	}

	for _, v := range valid {
		require.True(ValidateEmail(v), v)
	}
	for _, v := range invalid {
		require.False(ValidateEmail(v), v)
	}
}

func TestGenInviteCode(t *testing.T) {
	require := require.New(t)
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		code, err := GenInviteCode()
		require.Nil(err)
		require.Len(code, InviteCodeLen)
		require.True(ValidInviteCode(code), code)
		require.False(seen[code])
		seen[code] = true
	}
	require.False(ValidInviteCode("short"))
	require.False(ValidInviteCode("has/slash"))
}

func TestBearerToken(t *testing.T) {
	require := require.New(t)
	require.Equal("abc", BearerToken("Bearer abc"))
	require.Equal("abc", BearerToken("bearer  abc "))
	require.Equal("abc", BearerToken("abc"))
	require.Equal("", BearerToken(""))
}
