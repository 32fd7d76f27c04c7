// Package notify tells operators about payment events so they can cross-check
// claims with the payment provider.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/mhsanaei/csc-portal/database/model"
	"github.com/mhsanaei/csc-portal/logger"
)

type Notifier interface {
	PaymentClaimed(ctx context.Context, appointment *model.Appointment, paymentId string) error
	Report(ctx context.Context, text string) error
}

// Noop discards every notification.
type Noop struct{}

func (Noop) PaymentClaimed(context.Context, *model.Appointment, string) error { return nil }
func (Noop) Report(context.Context, string) error                             { return nil }

// Telegram posts notifications to a single operator chat.
type Telegram struct {
	bot    *telego.Bot
	chatID int64
}

func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &Telegram{bot: bot, chatID: chatID}, nil
}

func (t *Telegram) PaymentClaimed(ctx context.Context, appointment *model.Appointment, paymentId string) error {
	return t.Report(ctx, PaymentClaimedText(appointment, paymentId))
}

func (t *Telegram) Report(ctx context.Context, text string) error {
	_, err := t.bot.SendMessage(ctx, tu.Message(tu.ID(t.chatID), text))
	if err != nil {
		logger.Warning("Error sending telegram message:", err)
		return err
	}
	return nil
}

// PaymentClaimedText is the operator message for a fresh payment claim.
func PaymentClaimedText(appointment *model.Appointment, paymentId string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "💳 Payment claimed\n")
	fmt.Fprintf(&b, "Appointment: #%d\n", appointment.Id)
	fmt.Fprintf(&b, "User: #%d\n", appointment.UserId)
	fmt.Fprintf(&b, "Scheduled: %s\n", appointment.ScheduledAt.Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&b, "Amount: %d\n", appointment.Amount)
	fmt.Fprintf(&b, "Payment ID: %s", paymentId)
	return b.String()
}

// PendingReportText summarizes appointments still waiting for payment.
func PendingReportText(pending []model.Appointment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⏳ %d appointment(s) pending payment", len(pending))
	for _, a := range pending {
		fmt.Fprintf(&b, "\n#%d user #%d at %s", a.Id, a.UserId, a.ScheduledAt.Format("2006-01-02 15:04 MST"))
	}
	return b.String()
}
