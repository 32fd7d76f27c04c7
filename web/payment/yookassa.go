package payment

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rvinnie/yookassa-sdk-go/yookassa"
	yoocommon "github.com/rvinnie/yookassa-sdk-go/yookassa/common"
	yoopayment "github.com/rvinnie/yookassa-sdk-go/yookassa/payment"

	"github.com/mhsanaei/csc-portal/database/model"
	"github.com/mhsanaei/csc-portal/logger"
)

// paymentAPI is the part of the YooKassa payment handler used here.
type paymentAPI interface {
	CreatePayment(payment *yoopayment.Payment) (*yoopayment.Payment, error)
	FindPayment(paymentId string) (*yoopayment.Payment, error)
}

// YooKassa creates checkout payments and verifies claims against the
// provider's record of the payment.
type YooKassa struct {
	api       paymentAPI
	currency  string
	returnURL string
}

func NewYooKassa(accountID, secretKey, currency, returnURL string) *YooKassa {
	kassa := yookassa.NewClient(accountID, secretKey)
	return &YooKassa{
		api:       yookassa.NewPaymentHandler(kassa),
		currency:  currency,
		returnURL: returnURL,
	}
}

func (k *YooKassa) CreateOrder(_ context.Context, appointment *model.Appointment) (Order, error) {
	created, err := k.api.CreatePayment(&yoopayment.Payment{
		Amount: &yoocommon.Amount{
			Value:    FormatAmount(appointment.Amount),
			Currency: k.currency,
		},
		Confirmation: yoopayment.Redirect{
			Type:      "redirect",
			ReturnURL: k.returnURL,
		},
		Description: "Appointment #" + strconv.FormatInt(appointment.Id, 10),
	})
	if err != nil {
		logger.Warning("error occurred while creating payment", err)
		return Order{}, err
	}
	return Order{
		Id:       created.ID,
		Amount:   appointment.Amount,
		Currency: k.currency,
	}, nil
}

func (k *YooKassa) Verify(_ context.Context, claim Claim, appointment *model.Appointment) error {
	p, err := k.api.FindPayment(claim.PaymentId)
	if err != nil {
		logger.Warning("error occurred while looking up payment", claim.PaymentId, err)
		return fmt.Errorf("%w: payment lookup failed", ErrRejected)
	}
	if p.Status != yoopayment.Succeeded {
		return fmt.Errorf("%w: payment status is %s", ErrRejected, p.Status)
	}
	if p.Amount == nil {
		return fmt.Errorf("%w: payment has no amount", ErrRejected)
	}
	if p.Amount.Value != FormatAmount(appointment.Amount) || p.Amount.Currency != k.currency {
		return fmt.Errorf("%w: paid %s %s", ErrRejected, p.Amount.Value, p.Amount.Currency)
	}
	return nil
}
