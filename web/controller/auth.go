package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mhsanaei/csc-portal/logger"
	"github.com/mhsanaei/csc-portal/web/entity"
	"github.com/mhsanaei/csc-portal/web/service"
	"github.com/mhsanaei/csc-portal/web/session"
)

// AuthController handles registration, login and logout.
type AuthController struct {
	userService   *service.UserService
	sessionMaxAge int // minutes
}

func NewAuthController(g *gin.RouterGroup, userService *service.UserService, sessionMaxAge int) *AuthController {
	a := &AuthController{userService: userService, sessionMaxAge: sessionMaxAge}
	a.initRouter(g)
	return a
}

func (a *AuthController) initRouter(g *gin.RouterGroup) {
	g.POST("/register", a.register)
	g.POST("/login", a.login)
	g.POST("/logout", a.logout)
}

func (a *AuthController) register(c *gin.Context) {
	var form entity.RegisterRequest
	if err := c.ShouldBind(&form); err != nil {
		pureJsonMsg(c, http.StatusBadRequest, "Invalid request")
		return
	}
	id, err := a.userService.Register(c.Request.Context(), form.Username, form.Password, form.Role)
	if err != nil {
		jsonError(c, "register", err)
		return
	}
	jsonObj(c, gin.H{"userId": id})
}

// login checks the credentials and stores the user in the session.
func (a *AuthController) login(c *gin.Context) {
	var form entity.LoginRequest
	if err := c.ShouldBind(&form); err != nil {
		pureJsonMsg(c, http.StatusBadRequest, "Invalid request")
		return
	}
	if form.Username == "" || form.Password == "" {
		pureJsonMsg(c, http.StatusBadRequest, "Username and password are required")
		return
	}

	user, err := a.userService.Login(c.Request.Context(), form.Username, form.Password)
	if err != nil {
		logger.Warningf("failed login for %q from %s", form.Username, getRemoteIp(c))
		jsonError(c, "login", err)
		return
	}

	if a.sessionMaxAge > 0 {
		session.SetMaxAge(c, a.sessionMaxAge*60)
	}
	if err := session.SetLoginUser(c, user); err != nil {
		logger.Warning("Unable to save session:", err)
		pureJsonMsg(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	logger.Infof("%s logged in successfully, Ip Address: %s", user.Username, getRemoteIp(c))
	jsonObj(c, gin.H{"user": user})
}

func (a *AuthController) logout(c *gin.Context) {
	if user := session.GetLoginUser(c); user != nil {
		logger.Infof("%s logged out successfully", user.Username)
	}
	if err := session.ClearSession(c); err != nil {
		logger.Warning("Unable to save session after clearing:", err)
	}
	jsonObj(c, nil)
}
