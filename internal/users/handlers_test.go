package users

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ageniuscoder/chatsphere/backend/internal/auth"
	"github.com/ageniuscoder/chatsphere/backend/internal/model"
	"github.com/ageniuscoder/chatsphere/backend/internal/storage/memory"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func router(online map[int64]bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	s := &Service{
		Store:     memory.New(),
		JWTSecret: secret,
		JWTTTLMin: 5,
		Online:    func(id int64) bool { return online[id] },
	}
	r := gin.New()
	api := r.Group("/api")
	RegisterPublic(api, s)
	protected := api.Group("/", auth.JWTMiddleware(secret))
	Register(protected, s)
	return r
}

func call(r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func signup(t *testing.T, r http.Handler, name string) tokenResp {
	t.Helper()
	w := call(r, http.MethodPost, "/api/signup", "", gin.H{"username": name, "password": "secret1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp tokenResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestSignup_Login_Me(t *testing.T) {
	req := require.New(t)
	r := router(nil)

	created := signup(t, r, "alice")
	req.NotEmpty(created.Token)
	req.Equal("alice", created.User.Name)

	w := call(r, http.MethodPost, "/api/signup", "", gin.H{"username": "Alice", "password": "secret1"})
	req.Equal(http.StatusConflict, w.Code)

	w = call(r, http.MethodPost, "/api/login", "", gin.H{"username": "alice", "password": "wrong"})
	req.Equal(http.StatusUnauthorized, w.Code)
	w = call(r, http.MethodPost, "/api/login", "", gin.H{"username": "nobody", "password": "secret1"})
	req.Equal(http.StatusUnauthorized, w.Code)

	w = call(r, http.MethodPost, "/api/login", "", gin.H{"username": "alice", "password": "secret1"})
	req.Equal(http.StatusOK, w.Code)
	var logged tokenResp
	req.NoError(json.Unmarshal(w.Body.Bytes(), &logged))
	req.Equal(created.UserID, logged.UserID)

	w = call(r, http.MethodGet, "/api/me", logged.Token, nil)
	req.Equal(http.StatusOK, w.Code)
	var me model.Identity
	req.NoError(json.Unmarshal(w.Body.Bytes(), &me))
	req.Equal("alice", me.Name)

	w = call(r, http.MethodGet, "/api/me", "", nil)
	req.Equal(http.StatusUnauthorized, w.Code)
}

func TestSignup_Validation(t *testing.T) {
	r := router(nil)
	w := call(r, http.MethodPost, "/api/signup", "", gin.H{"username": "al", "password": "123"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "Must be at least")
}

func TestSearch_Excludes_Self(t *testing.T) {
	req := require.New(t)
	r := router(nil)
	alice := signup(t, r, "alice")
	signup(t, r, "alina")
	signup(t, r, "bob")

	w := call(r, http.MethodGet, "/api/users/search?q=ali", alice.Token, nil)
	req.Equal(http.StatusOK, w.Code)
	var body struct {
		Users []model.Identity `json:"users"`
	}
	req.NoError(json.Unmarshal(w.Body.Bytes(), &body))
	req.Len(body.Users, 1)
	req.Equal("alina", body.Users[0].Name)

	w = call(r, http.MethodGet, "/api/users/search", alice.Token, nil)
	req.Equal(http.StatusBadRequest, w.Code)
}

func TestPresence(t *testing.T) {
	req := require.New(t)
	online := map[int64]bool{}
	r := router(online)
	alice := signup(t, r, "alice")
	bob := signup(t, r, "bob")
	online[bob.UserID] = true

	w := call(r, http.MethodGet, "/api/users/"+itoa(bob.UserID)+"/presence", alice.Token, nil)
	req.Equal(http.StatusOK, w.Code)
	req.JSONEq(`{"user_id":`+itoa(bob.UserID)+`,"online":true}`, w.Body.String())

	w = call(r, http.MethodGet, "/api/users/999/presence", alice.Token, nil)
	req.Equal(http.StatusNotFound, w.Code)
}

func itoa(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
