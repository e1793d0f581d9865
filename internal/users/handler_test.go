package users

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTokens struct {
	err     error
	subject string
}

func (s *stubTokens) Issue(userID string) (string, time.Time, error) {
	if s.err != nil {
		return "", time.Time{}, s.err
	}
	s.subject = userID
	return "token-for-" + userID, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), nil
}

func doAction(t *testing.T, fn func(http.ResponseWriter, *http.Request, url.Values), p url.Values) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	fn(rec, httptest.NewRequest(http.MethodPost, "/api", nil), p)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestHandler_RegisterAndLogin(t *testing.T) {
	tokens := &stubTokens{}
	h := NewHandler(newTestService(NewMemoryRepository()), tokens, nil)

	status, body := doAction(t, h.Register, url.Values{
		"email": {"alice@x.com"}, "username": {"alice"}, "password": {"secret1"},
	})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "User registered successfully", body["message"])
	user := body["user"].(map[string]any)
	assert.NotContains(t, user, "passwordHash")

	_, body = doAction(t, h.Register, url.Values{
		"email": {"alice@x.com"}, "username": {"alice2"}, "password": {"secret1"},
	})
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Email or username already exists", body["error"])

	_, body = doAction(t, h.Login, url.Values{"identifier": {"alice"}, "password": {"secret1"}})
	require.Equal(t, true, body["success"], body)
	assert.Equal(t, "Login successful", body["message"])
	profile := body["user"].(map[string]any)
	assert.Equal(t, user["id"], profile["id"])
	assert.Equal(t, "alice@x.com", profile["email"])
	assert.Equal(t, "alice", profile["username"])
	assert.Equal(t, "token-for-"+profile["id"].(string), body["token"])
	assert.Equal(t, "2025-06-02T00:00:00Z", body["expiresAt"])

	_, body = doAction(t, h.Login, url.Values{"email": {"alice@x.com"}, "password": {"secret1"}})
	assert.Equal(t, true, body["success"])
}

func TestHandler_Failures(t *testing.T) {
	h := NewHandler(newTestService(NewMemoryRepository()), nil, nil)
	_, body := doAction(t, h.Register, url.Values{"email": {"bob@x.com"}, "username": {"bob"}, "password": {"secret1"}})
	require.Equal(t, true, body["success"])

	tests := []struct {
		name   string
		fn     func(http.ResponseWriter, *http.Request, url.Values)
		params url.Values
		want   string
	}{
		{"register missing", h.Register, url.Values{"email": {"a@x.com"}}, "All fields are required"},
		{"register bad email", h.Register, url.Values{"email": {"nope"}, "username": {"abc"}, "password": {"secret1"}}, "Invalid email format"},
		{"register short username", h.Register, url.Values{"email": {"a@x.com"}, "username": {"ab"}, "password": {"secret1"}}, "Username must be at least 3 characters"},
		{"register short password", h.Register, url.Values{"email": {"a@x.com"}, "username": {"abc"}, "password": {"123"}}, "Password must be at least 6 characters"},
		{"login missing", h.Login, url.Values{"identifier": {"bob"}}, "Email/username and password are required"},
		{"login unknown", h.Login, url.Values{"identifier": {"carol"}, "password": {"secret1"}}, "User not found"},
		{"login wrong password", h.Login, url.Values{"identifier": {"bob"}, "password": {"secret2"}}, "Invalid password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := doAction(t, tt.fn, tt.params)
			assert.Equal(t, http.StatusOK, status)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.want, body["error"])
		})
	}
}

func TestHandler_LoginWithoutTokens(t *testing.T) {
	h := NewHandler(newTestService(NewMemoryRepository()), nil, nil)
	doAction(t, h.Register, url.Values{"email": {"bob@x.com"}, "username": {"bob"}, "password": {"secret1"}})

	_, body := doAction(t, h.Login, url.Values{"identifier": {"bob"}, "password": {"secret1"}})
	assert.Equal(t, true, body["success"])
	assert.NotContains(t, body, "token")
}

func TestHandler_TokenFailure(t *testing.T) {
	h := NewHandler(newTestService(NewMemoryRepository()), &stubTokens{err: errors.New("signing failed")}, nil)
	doAction(t, h.Register, url.Values{"email": {"bob@x.com"}, "username": {"bob"}, "password": {"secret1"}})

	status, body := doAction(t, h.Login, url.Values{"identifier": {"bob"}, "password": {"secret1"}})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Login failed", body["error"])
}
