// Package session keeps the logged-in user in the gin session.
package session

import (
	"encoding/gob"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/mhsanaei/csc-portal/database/model"
)

const (
	CookieName = "csc-portal"
	loginUser  = "LOGIN_USER"
)

func init() {
	gob.Register(model.User{})
}

// SetLoginUser stores the user without its password.
func SetLoginUser(c *gin.Context, user *model.User) error {
	s := sessions.Default(c)
	u := *user
	u.Password = ""
	s.Set(loginUser, u)
	return s.Save()
}

// SetMaxAge sets the cookie options applied by the next save.
func SetMaxAge(c *gin.Context, maxAge int) {
	s := sessions.Default(c)
	s.Options(sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func GetLoginUser(c *gin.Context) *model.User {
	s := sessions.Default(c)
	if obj := s.Get(loginUser); obj != nil {
		if user, ok := obj.(model.User); ok {
			return &user
		}
	}
	return nil
}

func IsLogin(c *gin.Context) bool {
	return GetLoginUser(c) != nil
}

// GetRole returns the logged-in user's role, or "" when logged out.
func GetRole(c *gin.Context) model.Role {
	if u := GetLoginUser(c); u != nil {
		return u.Role
	}
	return ""
}

func ClearSession(c *gin.Context) error {
	s := sessions.Default(c)
	s.Clear()
	s.Options(sessions.Options{
		Path:   "/",
		MaxAge: -1,
	})
	if err := s.Save(); err != nil {
		return err
	}
	c.SetCookie(CookieName, "", -1, "/", "", false, true)
	return nil
}
