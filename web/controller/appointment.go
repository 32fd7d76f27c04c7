package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mhsanaei/csc-portal/logger"
	"github.com/mhsanaei/csc-portal/web/entity"
	"github.com/mhsanaei/csc-portal/web/service"
	"github.com/mhsanaei/csc-portal/web/session"
)

// AppointmentController handles booking and listing appointments.
type AppointmentController struct {
	appointmentService *service.AppointmentService
}

func NewAppointmentController(g *gin.RouterGroup, appointmentService *service.AppointmentService) *AppointmentController {
	a := &AppointmentController{appointmentService: appointmentService}
	a.initRouter(g)
	return a
}

func (a *AppointmentController) initRouter(g *gin.RouterGroup) {
	g.POST("/book", a.book)
	g.GET("/appointments", a.appointments)
}

// book creates an appointment for the body's userId, or for the session
// user when the body has none.
func (a *AppointmentController) book(c *gin.Context) {
	var form entity.BookRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		pureJsonMsg(c, http.StatusBadRequest, "Invalid request")
		return
	}
	userId := int64(form.UserId)
	if userId == 0 {
		if user := session.GetLoginUser(c); user != nil {
			userId = user.Id
		}
	}

	id, err := a.appointmentService.Book(c.Request.Context(), userId, form.ScheduledAt, form.Service)
	if err != nil {
		jsonError(c, "book appointment", err)
		return
	}
	jsonObj(c, gin.H{"appointmentId": id})
}

// appointments lists every appointment newest first. A storage failure still
// answers with an empty list so clients can render.
func (a *AppointmentController) appointments(c *gin.Context) {
	list, err := a.appointmentService.List(c.Request.Context())
	if err != nil {
		_, msg := errorStatus(err)
		logger.Warning("list appointments failed:", err)
		c.JSON(http.StatusOK, gin.H{
			"success":      false,
			"error":        msg,
			"appointments": []service.AppointmentView{},
		})
		return
	}
	jsonObj(c, gin.H{"appointments": list})
}
