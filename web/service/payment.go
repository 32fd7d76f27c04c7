package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mhsanaei/csc-portal/database"
	"github.com/mhsanaei/csc-portal/database/model"
	"github.com/mhsanaei/csc-portal/logger"
	"github.com/mhsanaei/csc-portal/web/notify"
	"github.com/mhsanaei/csc-portal/web/payment"
)

var ErrPaymentRejected = payment.ErrRejected

// PaymentService drives the single pending_payment -> paid transition.
type PaymentService struct {
	store    database.Store
	verifier payment.Verifier
	orders   payment.OrderSource
	notifier notify.Notifier
}

func NewPaymentService(store database.Store, verifier payment.Verifier, orders payment.OrderSource, notifier notify.Notifier) *PaymentService {
	if verifier == nil {
		verifier = payment.AcceptAll{}
	}
	if orders == nil {
		orders = payment.MockOrders{Currency: "INR"}
	}
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &PaymentService{
		store:    store,
		verifier: verifier,
		orders:   orders,
		notifier: notifier,
	}
}

func (s *PaymentService) CreateOrder(ctx context.Context, appointmentId int64) (payment.Order, error) {
	if appointmentId <= 0 {
		return payment.Order{}, fmt.Errorf("%w: appointmentId is required", ErrMalformedInput)
	}
	a, err := s.store.GetAppointment(ctx, appointmentId)
	if err != nil {
		return payment.Order{}, err
	}
	order, err := s.orders.CreateOrder(ctx, a)
	if err != nil {
		return payment.Order{}, fmt.Errorf("payment initiation failed: %w", err)
	}
	logger.Infof("order %s created for appointment %d", order.Id, a.Id)
	return order, nil
}

// ConfirmPayment records a verified claim. Repeating a successful claim is a
// no-op; a different claim on a paid appointment fails with
// database.ErrAlreadyPaid.
func (s *PaymentService) ConfirmPayment(ctx context.Context, claim payment.Claim) error {
	claim.PaymentId = strings.TrimSpace(claim.PaymentId)
	if claim.AppointmentId <= 0 || claim.PaymentId == "" {
		return fmt.Errorf("%w: appointmentId and paymentId are required", ErrMalformedInput)
	}

	a, err := s.store.GetAppointment(ctx, claim.AppointmentId)
	if err != nil {
		return err
	}
	if a.IsPaid() {
		return database.ClassifyPaymentConflict(a, claim.PaymentId)
	}

	if err := s.verifier.Verify(ctx, claim, a); err != nil {
		logger.Warningf("payment claim %s for appointment %d rejected: %v", claim.PaymentId, a.Id, err)
		if errors.Is(err, payment.ErrRejected) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrPaymentRejected, err)
	}

	if err := s.store.UpdateAppointmentPayment(ctx, a.Id, claim.PaymentId); err != nil {
		return err
	}
	logger.Infof("appointment %d paid with %s", a.Id, claim.PaymentId)

	a.Status = model.StatusPaid
	a.PaymentId = &claim.PaymentId
	if err := s.notifier.PaymentClaimed(ctx, a, claim.PaymentId); err != nil {
		logger.Warning("payment notification failed:", err)
	}
	return nil
}
