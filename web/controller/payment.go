package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mhsanaei/csc-portal/web/entity"
	"github.com/mhsanaei/csc-portal/web/payment"
	"github.com/mhsanaei/csc-portal/web/service"
)

// PaymentController opens checkout orders and records payment claims.
type PaymentController struct {
	paymentService *service.PaymentService
}

func NewPaymentController(g *gin.RouterGroup, paymentService *service.PaymentService) *PaymentController {
	a := &PaymentController{paymentService: paymentService}
	a.initRouter(g)
	return a
}

func (a *PaymentController) initRouter(g *gin.RouterGroup) {
	g.POST("/create-order", a.createOrder)
	g.POST("/verify-payment", a.verifyPayment)
}

func (a *PaymentController) createOrder(c *gin.Context) {
	var form entity.CreateOrderRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		pureJsonMsg(c, http.StatusBadRequest, "Invalid request")
		return
	}
	order, err := a.paymentService.CreateOrder(c.Request.Context(), int64(form.AppointmentId))
	if err != nil {
		if status, _ := errorStatus(err); status == http.StatusInternalServerError {
			jsonErrorMsg(c, "create order", status, "Payment initiation failed", err)
			return
		}
		jsonError(c, "create order", err)
		return
	}
	jsonObj(c, gin.H{"order": order})
}

// verifyPayment marks the appointment paid. Repeating an accepted claim
// succeeds again without changing anything.
func (a *PaymentController) verifyPayment(c *gin.Context) {
	var form entity.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		pureJsonMsg(c, http.StatusBadRequest, "Invalid request")
		return
	}
	claim := payment.Claim{
		AppointmentId: int64(form.AppointmentId),
		PaymentId:     form.PaymentId,
		OrderId:       form.OrderId,
		Signature:     form.Signature,
	}
	if err := a.paymentService.ConfirmPayment(c.Request.Context(), claim); err != nil {
		jsonError(c, "verify payment", err)
		return
	}
	jsonObj(c, nil)
}
