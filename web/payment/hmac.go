package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mhsanaei/csc-portal/database/model"
)

// HMACVerifier checks the checkout signature:
// hex(HMAC-SHA256(secret, orderId + "|" + paymentId)).
type HMACVerifier struct {
	Secret []byte
}

func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{Secret: []byte(secret)}
}

// Sign returns the signature the checkout is expected to produce.
func (v *HMACVerifier) Sign(orderId, paymentId string) string {
	mac := hmac.New(sha256.New, v.Secret)
	mac.Write([]byte(orderId + "|" + paymentId))
	return hex.EncodeToString(mac.Sum(nil))
}

func (v *HMACVerifier) Verify(_ context.Context, claim Claim, _ *model.Appointment) error {
	if claim.OrderId == "" || claim.Signature == "" {
		return fmt.Errorf("%w: missing order id or signature", ErrRejected)
	}
	got, err := hex.DecodeString(strings.ToLower(claim.Signature))
	if err != nil {
		return fmt.Errorf("%w: signature is not hex", ErrRejected)
	}
	want, _ := hex.DecodeString(v.Sign(claim.OrderId, claim.PaymentId))
	if !hmac.Equal(got, want) {
		return fmt.Errorf("%w: signature mismatch", ErrRejected)
	}
	return nil
}
