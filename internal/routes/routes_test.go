package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gitlab.com/derailed/derailed/internal/auth"
	"gitlab.com/derailed/derailed/internal/models"
	"gitlab.com/derailed/derailed/internal/observability"
	"gitlab.com/derailed/derailed/internal/ratelimit"
	"gitlab.com/derailed/derailed/internal/snowflake"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestRouter(t *testing.T, ipLimit int) http.Handler {
	cfg := &models.EnvConfig{
		IPRequestsPerMinute: ipLimit,
		MessagesPerMinute:   30,
		RequestsPerMinute:   120,
	}
	tokens, err := auth.NewManager(testSecret, time.Hour, snowflake.NewGenerator(snowflake.DefaultEpoch, 1, 1))
	require.NoError(t, err)
	return NewRouter(Deps{
		EnvConfig: cfg,
		Tokens:    tokens,
		Metrics:   observability.NewMetrics(),
		Logger:    zerolog.Nop(),
	})
}

func do(h http.Handler, method, target, body string, header http.Header) (*httptest.ResponseRecorder, errorBody) {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var errBody errorBody
	json.Unmarshal(rec.Body.Bytes(), &errBody)
	return rec, errBody
}

func TestUnauthenticated(t *testing.T) {
	require := require.New(t)
	h := newTestRouter(t, 100)

	rec, body := do(h, "GET", "/users/@me", "", nil)
	require.Equal(http.StatusUnauthorized, rec.Code)
	require.Equal(http.StatusUnauthorized, body.Code)
	require.Equal("Unauthorized", body.Message)

	rec, _ = do(h, "GET", "/guilds/1", "", http.Header{"Authorization": {"Bearer not-a-token"}})
	require.Equal(http.StatusUnauthorized, rec.Code)

	other, err := auth.NewManager(strings.Repeat("x", 32), time.Hour, snowflake.NewGenerator(snowflake.DefaultEpoch, 1, 1))
	require.NoError(err)
	forged, err := other.Issue(1, 2)
	require.NoError(err)
	rec, _ = do(h, "POST", "/logout", "", http.Header{"Authorization": {"Bearer " + forged}})
	require.Equal(http.StatusUnauthorized, rec.Code)
}

func TestRegisterValidation(t *testing.T) {
	require := require.New(t)
	h := newTestRouter(t, 100)

	tests := []struct {
		body string
		msg  string
	}{
		{"", "Missing body"},
		{"{", "Malformed body"},
		{`{"username":"bob","email":"bob@example.com","password":"password1","admin":true}`, "Malformed body"},
		{`{"username":"bob","email":"not-an-email","password":"password1"}`, "Invalid field email: failed on email"},
		{`{"username":"bob","email":"bob@example.com","password":"short"}`, "Invalid field password: failed on min"},
		{`{"username":"a b","email":"bob@example.com","password":"password1"}`, "Invalid field username: failed on username"},
	}
	for _, test := range tests {
		rec, body := do(h, "POST", "/register", test.body, nil)
		require.Equal(http.StatusBadRequest, rec.Code, test.body)
		require.Equal(test.msg, body.Message, test.body)
	}
}

func TestIPRateLimit(t *testing.T) {
	require := require.New(t)
	h := newTestRouter(t, 2)

	for i := 0; i < 2; i++ {
		rec, _ := do(h, "POST", "/login", "{}", nil)
		require.Equal(http.StatusBadRequest, rec.Code)
	}
	rec, body := do(h, "POST", "/login", "{}", nil)
	require.Equal(http.StatusTooManyRequests, rec.Code)
	require.Equal(http.StatusTooManyRequests, body.Code)
	require.NotNil(body.RetryAfter)
	require.Equal(60.0, *body.RetryAfter)
}

func TestInvitePreviewBadCode(t *testing.T) {
	require := require.New(t)
	h := newTestRouter(t, 100)

	rec, body := do(h, "GET", "/invites/nope", "", nil)
	require.Equal(http.StatusNotFound, rec.Code)
	require.Equal("Unknown invite", body.Message)
}

func TestSecureHeadersAndMetrics(t *testing.T) {
	require := require.New(t)
	h := newTestRouter(t, 100)

	rec, _ := do(h, "GET", "/users/@me", "", nil)
	require.Equal("DENY", rec.Header().Get("X-Frame-Options"))
	require.Equal("nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.Equal("application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	rec, _ = do(h, "GET", "/metrics", "", nil)
	require.Equal(http.StatusOK, rec.Code)
	require.Contains(rec.Body.String(), "derailed_http_requests_total")
}

func TestToAppError(t *testing.T) {
	require := require.New(t)

	tests := []struct {
		err    error
		status int
	}{
		{models.ErrNotFound, http.StatusNotFound},
		{models.ErrMissingPerms{Perms: models.PermManageRoles}, http.StatusForbidden},
		{models.ErrBanned, http.StatusForbidden},
		{models.ErrOwnerCannotLeave, http.StatusForbidden},
		{fmt.Errorf("%w: expired", auth.ErrInvalidToken), http.StatusUnauthorized},
		{models.ErrBadPassword, http.StatusBadRequest},
		{models.ErrTooManyGuilds, http.StatusBadRequest},
		{models.ErrBadContentLen, http.StatusBadRequest},
		{ratelimit.ErrRateLimited{Bucket: "global", RetryAfter: time.Second}, http.StatusTooManyRequests},
		{&ErrNotFound{Thing: "guild"}, http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, test := range tests {
		require.Equal(test.status, toAppError(test.err).Status(), test.err.Error())
	}

	forbidden := toAppError(models.ErrMissingPerms{Perms: models.PermManageRoles})
	require.Equal("Missing permissions: MANAGE_ROLES", forbidden.Message())
	require.Equal("Internal server error", toAppError(errors.New("secret detail")).Message())
}

func TestParseMessageQuery(t *testing.T) {
	require := require.New(t)

	r := httptest.NewRequest("GET", "/?before=100&after=5&limit=20", nil)
	q, appErr := parseMessageQuery(r)
	require.Nil(appErr)
	require.Equal(snowflake.ID(100), *q.Before)
	require.Equal(snowflake.ID(5), *q.After)
	require.Equal(20, q.Limit)

	q, appErr = parseMessageQuery(httptest.NewRequest("GET", "/", nil))
	require.Nil(appErr)
	require.Nil(q.Before)
	require.Nil(q.After)
	require.Equal(0, q.Limit)

	for _, target := range []string{"/?limit=0", "/?limit=101", "/?limit=x", "/?before=abc"} {
		_, appErr = parseMessageQuery(httptest.NewRequest("GET", target, nil))
		require.NotNil(appErr, target)
		require.Equal(http.StatusBadRequest, appErr.Status(), target)
	}
}
