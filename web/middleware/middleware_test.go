package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhsanaei/csc-portal/database/model"
	"github.com/mhsanaei/csc-portal/web/session"
)

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(0.001, 2)
	r := gin.New()
	r.POST("/api/login", RateLimitMiddleware(rl), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	req := httptest.NewRequest(http.MethodPost, "/api/login", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, "other clients have their own bucket")

	assert.Equal(t, 2, rl.Sweep())
}

func TestDomainValidator(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(DomainValidatorMiddleware("portal.example"))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	tests := []struct {
		host string
		code int
	}{
		{"portal.example", http.StatusOK},
		{"portal.example:3000", http.StatusOK},
		{"PORTAL.example", http.StatusOK},
		{"other.example", http.StatusForbidden},
		{"10.0.0.1:3000", http.StatusForbidden},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Host = tt.host
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, tt.code, w.Code, tt.host)
	}
}

func TestRoleRequired(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(sessions.Sessions(session.CookieName, cookie.NewStore([]byte("k"))))
	r.GET("/as/:role", func(c *gin.Context) {
		_ = session.SetLoginUser(c, &model.User{Id: 1, Username: "u", Role: model.Role(c.Param("role"))})
		c.Status(http.StatusOK)
	})
	r.GET("/ops", RoleRequired(model.RoleOperator), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("role"))
	})

	get := func(path string, cookies []*http.Cookie) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		for _, ck := range cookies {
			req.AddCookie(ck)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusUnauthorized, get("/ops", nil).Code)

	userCookies := get("/as/user", nil).Result().Cookies()
	require.NotEmpty(t, userCookies)
	assert.Equal(t, http.StatusForbidden, get("/ops", userCookies).Code)

	opCookies := get("/as/operator", nil).Result().Cookies()
	w := get("/ops", opCookies)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "operator", w.Body.String())
}
