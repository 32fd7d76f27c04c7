// Package model holds the canonical User and Appointment records shared by
// every storage backend. Backends map their own column or field names onto
// these types.
package model

import "time"

type Role string

const (
	RoleUser     Role = "user"
	RoleOperator Role = "operator"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleOperator
}

type AppointmentStatus string

const (
	StatusPendingPayment AppointmentStatus = "pending_payment"
	StatusPaid           AppointmentStatus = "paid"
)

// DefaultAmount is the consultation price in currency minor units.
const DefaultAmount int64 = 5000

type User struct {
	Id       int64  `json:"id"`
	Username string `json:"username"`
	Password string `json:"-"`
	Role     Role   `json:"role"`
}

type Appointment struct {
	Id          int64             `json:"id"`
	UserId      int64             `json:"userId"`
	OperatorId  *int64            `json:"operatorId"`
	Status      AppointmentStatus `json:"status"`
	ScheduledAt time.Time         `json:"scheduledAt"`
	PaymentId   *string           `json:"paymentId"`
	Amount      int64             `json:"amount"`
}

// IsPaid reports whether the appointment has a confirmed payment claim.
func (a *Appointment) IsPaid() bool {
	return a.Status == StatusPaid
}

// Consistent reports whether status and payment claim agree:
// PaymentId is nil exactly when the appointment is pending payment.
func (a *Appointment) Consistent() bool {
	switch a.Status {
	case StatusPendingPayment:
		return a.PaymentId == nil
	case StatusPaid:
		return a.PaymentId != nil && *a.PaymentId != ""
	}
	return false
}
