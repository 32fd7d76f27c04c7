package session

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhsanaei/csc-portal/database/model"
)

func newRouter(store sessions.Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(sessions.Sessions(CookieName, store))
	r.GET("/login", func(c *gin.Context) {
		_ = SetLoginUser(c, &model.User{Id: 7, Username: "op", Password: "pw", Role: model.RoleOperator})
		c.Status(http.StatusOK)
	})
	r.GET("/me", func(c *gin.Context) {
		u := GetLoginUser(c)
		if u == nil {
			c.Status(http.StatusUnauthorized)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": u.Id, "role": GetRole(c), "password": u.Password})
	})
	r.GET("/logout", func(c *gin.Context) {
		_ = ClearSession(c)
		c.Status(http.StatusOK)
	})
	return r
}

func do(r *gin.Engine, path string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func testLoginRoundTrip(t *testing.T, store sessions.Store) {
	r := newRouter(store)

	assert.Equal(t, http.StatusUnauthorized, do(r, "/me", nil).Code)

	login := do(r, "/login", nil)
	require.Equal(t, http.StatusOK, login.Code)
	cookies := login.Result().Cookies()
	require.NotEmpty(t, cookies)

	me := do(r, "/me", cookies)
	require.Equal(t, http.StatusOK, me.Code)
	assert.JSONEq(t, `{"id":7,"role":"operator","password":""}`, me.Body.String())

	logout := do(r, "/logout", cookies)
	require.Equal(t, http.StatusOK, logout.Code)
}

func TestCookieStore(t *testing.T) {
	testLoginRoundTrip(t, cookie.NewStore([]byte("test-secret")))
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStore(client, "csc:", []byte("test-secret"))
	testLoginRoundTrip(t, store)

	r := newRouter(store)
	cookies := do(r, "/login", nil).Result().Cookies()
	assert.Len(t, mr.Keys(), 1)

	do(r, "/logout", cookies)
	assert.Empty(t, mr.Keys())
	assert.Equal(t, http.StatusUnauthorized, do(r, "/me", cookies).Code)
}
