// Package payment holds the checkout side of the appointment flow: creating
// orders for the client-side checkout and verifying the claims it returns.
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mhsanaei/csc-portal/database/model"
)

// ErrRejected is returned by a Verifier that does not accept a claim.
var ErrRejected = errors.New("payment rejected")

// Claim is what the checkout hands back after the user pays.
type Claim struct {
	AppointmentId int64  `json:"appointmentId" form:"appointmentId"`
	PaymentId     string `json:"paymentId" form:"paymentId"`
	OrderId       string `json:"orderId" form:"orderId"`
	Signature     string `json:"signature" form:"signature"`
}

type Order struct {
	Id       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// Verifier decides whether a claim proves payment for the appointment.
type Verifier interface {
	Verify(ctx context.Context, claim Claim, appointment *model.Appointment) error
}

// OrderSource opens a checkout order for an appointment.
type OrderSource interface {
	CreateOrder(ctx context.Context, appointment *model.Appointment) (Order, error)
}

// AcceptAll trusts every claim. It keeps the historic behavior where the
// client supplied payment id is recorded without checking.
type AcceptAll struct{}

func (AcceptAll) Verify(context.Context, Claim, *model.Appointment) error {
	return nil
}

// MockOrders issues local order ids without contacting a provider.
type MockOrders struct {
	Currency string
	Now      func() time.Time
}

func (m MockOrders) CreateOrder(_ context.Context, appointment *model.Appointment) (Order, error) {
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	return Order{
		Id:       fmt.Sprintf("order_%d", now().UnixMilli()),
		Amount:   appointment.Amount,
		Currency: m.Currency,
	}, nil
}

// FormatAmount renders minor units as a decimal string, e.g. 5000 -> "50.00".
func FormatAmount(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}
