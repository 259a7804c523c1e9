package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newRemoteServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/admin/users", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "service-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))

		switch r.Method {
		case http.MethodGet:
			w.Header().Set("Content-Type", "application/json")
			if r.URL.Query().Get("page") != "1" {
				_ = json.NewEncoder(w).Encode(map[string]any{"users": []any{}})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"users": []map[string]any{
					{"id": "u-1", "email": "jean@pro.fr", "created_at": "2024-05-01T10:00:00Z"},
				},
			})
		case http.MethodPost:
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, true, body["email_confirm"])
			if body["email"] == "taken@pro.fr" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnprocessableEntity)
				_, _ = w.Write([]byte(`{"code":422,"error_code":"email_exists","msg":"A user with this email address has already been registered"}`))
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":            "u-2",
				"email":         body["email"],
				"user_metadata": body["user_metadata"],
				"created_at":    "2024-05-02T10:00:00Z",
			})
		}
	})
	mux.HandleFunc("/admin/users/u-1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/admin/users/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		if body["password"] != "Secret12" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "remote-token",
			"token_type":   "bearer",
			"expires_in":   3600,
			"user":         map[string]any{"id": "u-1", "email": body["email"]},
		})
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("Authorization") != "Bearer remote-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "u-1", "email": "jean@pro.fr"})
	})
	mux.HandleFunc("/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestRemoteProviderAdminCalls(t *testing.T) {
	server := newRemoteServer(t)
	p := NewRemoteProvider(server.URL+"/", "service-key", 5*time.Second, zaptest.NewLogger(t))
	ctx := context.Background()

	list, err := p.List(ctx, Page{Number: 1, PerPage: 50})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "jean@pro.fr", list[0].Email)

	found, err := FindByEmail(ctx, p, "jean@pro.fr", 50)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "u-1", found.ID)

	created, err := p.Create(ctx, CreateInput{Email: "new@pro.fr", Password: "Secret12", Metadata: map[string]any{"account_type": "pro"}})
	require.NoError(t, err)
	assert.Equal(t, "u-2", created.ID)
	assert.Equal(t, "pro", created.Metadata["account_type"])

	_, err = p.Create(ctx, CreateInput{Email: "taken@pro.fr", Password: "Secret12"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	assert.NoError(t, p.Delete(ctx, "u-1"))
	assert.ErrorIs(t, p.Delete(ctx, "missing"), ErrNotFound)
}

func TestRemoteProviderSessions(t *testing.T) {
	server := newRemoteServer(t)
	p := NewRemoteProvider(server.URL, "service-key", 5*time.Second, zaptest.NewLogger(t))
	ctx := context.Background()

	_, err := p.SignIn(ctx, "jean@pro.fr", "nope")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	session, err := p.SignIn(ctx, "jean@pro.fr", "Secret12")
	require.NoError(t, err)
	assert.Equal(t, "remote-token", session.AccessToken)
	assert.True(t, session.ExpiresAt.After(time.Now()))

	who, err := p.Authenticate(ctx, session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u-1", who.ID)

	_, err = p.Authenticate(ctx, "stale")
	assert.ErrorIs(t, err, ErrInvalidSession)

	assert.NoError(t, p.SignOut(ctx, session.AccessToken))
}

func TestRemoteProviderListDecodesStrictly(t *testing.T) {
	var body string
	var contentType string
	mux := http.NewServeMux()
	mux.HandleFunc("/admin/users", func(w http.ResponseWriter, r *http.Request) {
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		_, _ = w.Write([]byte(body))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	p := NewRemoteProvider(server.URL, "service-key", 5*time.Second, zaptest.NewLogger(t))
	ctx := context.Background()

	t.Run("json without content type still decodes", func(t *testing.T) {
		body, contentType = `{"users":[{"id":"u-1","email":"jean@pro.fr"}]}`, ""
		found, err := FindByEmail(ctx, p, "jean@pro.fr", 50)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, "u-1", found.ID)
	})

	t.Run("empty body is an error", func(t *testing.T) {
		body, contentType = "", "application/json"
		list, err := p.List(ctx, Page{Number: 1, PerPage: 50})
		assert.ErrorIs(t, err, ErrMalformedResponse)
		assert.Nil(t, list)

		_, err = FindByEmail(ctx, p, "jean@pro.fr", 50)
		assert.ErrorIs(t, err, ErrMalformedResponse)
	})

	t.Run("body without users field is an error", func(t *testing.T) {
		body, contentType = `{"total":0}`, "application/json"
		_, err := p.List(ctx, Page{Number: 1, PerPage: 50})
		assert.ErrorIs(t, err, ErrMalformedResponse)
	})

	t.Run("html body is an error", func(t *testing.T) {
		body, contentType = "<html>maintenance</html>", "text/html"
		_, err := p.List(ctx, Page{Number: 1, PerPage: 50})
		assert.ErrorIs(t, err, ErrMalformedResponse)
	})
}
