package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mhsanaei/csc-portal/database"
	"github.com/mhsanaei/csc-portal/database/model"
	"github.com/mhsanaei/csc-portal/logger"
)

var scheduledAtLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// ParseScheduledAt accepts RFC 3339 and the datetime-local forms browsers
// send. Values without a zone are taken as UTC.
func ParseScheduledAt(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range scheduledAtLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: cannot parse scheduledAt %q", ErrMalformedInput, value)
}

// AppointmentView is an appointment as listed to clients.
type AppointmentView struct {
	model.Appointment
	CanJoinCall bool `json:"canJoinCall"`
}

// AppointmentService owns booking and the call eligibility read side. The
// only status transition is done by PaymentService.
type AppointmentService struct {
	store database.Store
}

func NewAppointmentService(store database.Store) *AppointmentService {
	return &AppointmentService{store: store}
}

// Book creates a pending_payment appointment for an existing user.
// serviceType is informational and never affects the amount.
func (s *AppointmentService) Book(ctx context.Context, userId int64, scheduledAt string, serviceType string) (int64, error) {
	if userId <= 0 {
		return 0, fmt.Errorf("%w: userId is required", ErrMalformedInput)
	}
	at, err := ParseScheduledAt(scheduledAt)
	if err != nil {
		return 0, err
	}
	if _, err := s.store.GetUser(ctx, userId); err != nil {
		return 0, err
	}

	id, err := s.store.CreateAppointment(ctx, userId, at)
	if err != nil {
		logger.Warning("book appointment failed:", err)
		return 0, err
	}
	logger.Infof("appointment %d booked by user %d for %s (service %q)", id, userId, at.Format(time.RFC3339), serviceType)
	return id, nil
}

// List returns every appointment newest first.
func (s *AppointmentService) List(ctx context.Context) ([]AppointmentView, error) {
	list, err := s.store.ListAppointments(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]AppointmentView, len(list))
	for i := range list {
		views[i] = AppointmentView{
			Appointment: list[i],
			CanJoinCall: list[i].IsPaid(),
		}
	}
	return views, nil
}

func (s *AppointmentService) Get(ctx context.Context, id int64) (*model.Appointment, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: appointmentId is required", ErrMalformedInput)
	}
	return s.store.GetAppointment(ctx, id)
}

// CanJoinCall reports whether the appointment behind a call room id is paid.
func (s *AppointmentService) CanJoinCall(ctx context.Context, roomId string) (bool, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(roomId), 10, 64)
	if err != nil {
		return false, fmt.Errorf("%w: room id %q is not an appointment id", ErrMalformedInput, roomId)
	}
	a, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return a.IsPaid(), nil
}

// PendingPayments returns appointments still waiting for payment, newest first.
func (s *AppointmentService) PendingPayments(ctx context.Context) ([]model.Appointment, error) {
	list, err := s.store.ListAppointments(ctx)
	if err != nil {
		return nil, err
	}
	pending := make([]model.Appointment, 0)
	for _, a := range list {
		if a.Status == model.StatusPendingPayment {
			pending = append(pending, a)
		}
	}
	return pending, nil
}
