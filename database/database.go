// Package database defines the storage port shared by the sqlite, postgres
// and redis backends.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mhsanaei/csc-portal/database/model"
)

var (
	ErrDuplicateUsername  = errors.New("username already exists")
	ErrNotFound           = errors.New("not found")
	ErrAlreadyPaid        = errors.New("appointment already paid with a different payment id")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Store is the persistence contract every backend satisfies identically.
// Implementations return model types only, never backend rows.
type Store interface {
	CreateUser(ctx context.Context, username, password string, role model.Role) (int64, error)
	FindUser(ctx context.Context, username, password string) (*model.User, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)

	// CreateAppointment stores a pending_payment appointment with
	// model.DefaultAmount.
	CreateAppointment(ctx context.Context, userId int64, scheduledAt time.Time) (int64, error)
	GetAppointment(ctx context.Context, id int64) (*model.Appointment, error)
	// UpdateAppointmentPayment moves a pending appointment to paid and records
	// the claim in one atomic write. Repeating it with the same claim is a
	// no-op; a different claim on a paid appointment yields ErrAlreadyPaid.
	UpdateAppointmentPayment(ctx context.Context, id int64, paymentId string) error
	// ListAppointments returns all appointments, newest id first.
	ListAppointments(ctx context.Context) ([]model.Appointment, error)

	Ping(ctx context.Context) error
	Close() error
}

// Checkpointer is implemented by backends that need periodic maintenance.
type Checkpointer interface {
	Checkpoint(ctx context.Context) error
}

// Migrator is implemented by backends with an explicit schema step.
type Migrator interface {
	Migrate(ctx context.Context) error
}

// Unavailable wraps a backend failure so callers can match it with
// ErrStorageUnavailable while keeping the cause.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}

// ClassifyPaymentConflict decides the outcome of a conditional payment update
// that changed nothing, given the current row.
func ClassifyPaymentConflict(current *model.Appointment, paymentId string) error {
	if current.PaymentId != nil && *current.PaymentId == paymentId {
		return nil
	}
	return ErrAlreadyPaid
}
