package job

import (
	"context"

	"github.com/mhsanaei/csc-portal/database/model"
	"github.com/mhsanaei/csc-portal/logger"
	"github.com/mhsanaei/csc-portal/web/notify"
)

// PendingSource lists appointments waiting for payment.
type PendingSource interface {
	PendingPayments(ctx context.Context) ([]model.Appointment, error)
}

// PendingReportJob sends operators a summary of unpaid appointments.
type PendingReportJob struct {
	source   PendingSource
	notifier notify.Notifier
}

func NewPendingReportJob(source PendingSource, notifier notify.Notifier) *PendingReportJob {
	return &PendingReportJob{source: source, notifier: notifier}
}

// Run does nothing when there is nothing pending.
func (j *PendingReportJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	pending, err := j.source.PendingPayments(ctx)
	if err != nil {
		logger.Warning("pending report job err:", err)
		return
	}
	if len(pending) == 0 {
		return
	}
	if err := j.notifier.Report(ctx, notify.PendingReportText(pending)); err != nil {
		logger.Warning("pending report send err:", err)
	}
}
