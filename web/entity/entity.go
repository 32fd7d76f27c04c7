// Package entity defines the request bodies accepted by the HTTP API.
package entity

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/mhsanaei/csc-portal/database/model"
)

// FlexInt is an id that clients may send as a JSON number or numeric string.
type FlexInt int64

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*f = 0
			return nil
		}
		b = []byte(s)
	}
	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %s", b)
	}
	*f = FlexInt(v)
	return nil
}

// ErrorMsg is the body of every failed API call.
type ErrorMsg struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type RegisterRequest struct {
	Username string     `json:"username" form:"username"`
	Password string     `json:"password" form:"password"`
	Role     model.Role `json:"role" form:"role"`
}

type LoginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

type BookRequest struct {
	UserId      FlexInt `json:"userId"`
	ScheduledAt string  `json:"scheduledAt"`
	Service     string  `json:"service"`
}

type CreateOrderRequest struct {
	AppointmentId FlexInt `json:"appointmentId"`
}

type VerifyPaymentRequest struct {
	AppointmentId FlexInt `json:"appointmentId"`
	PaymentId     string  `json:"paymentId"`
	OrderId       string  `json:"orderId"`
	Signature     string  `json:"signature"`
}
