package payment

import (
	"context"
	"errors"
	"fmt"

	"rapidcare/models"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"go.uber.org/zap"
)

// StripeHandler collects booking deposits through Stripe PaymentIntents.
// The global stripe.Key is set in main from config.
type StripeHandler struct {
	logger *zap.Logger
}

func NewStripeHandler(logger *zap.Logger) *StripeHandler {
	return &StripeHandler{logger: logger}
}

// ProcessDeposit creates the PaymentIntent for a booking deposit.
func (h *StripeHandler) ProcessDeposit(ctx context.Context, req models.PaymentRequest) (*models.Invoice, error) {
	if err := validateRequest(req); err != nil {
		return nil, fmt.Errorf("invalid payment request: %w", err)
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(int64(req.Amount * 100)),
		Currency: stripe.String(req.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("bookingId", req.BookingID)
	params.AddMetadata("patientId", req.PatientID)

	intent, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create deposit intent: %w", err)
	}

	invoice := &models.Invoice{
		InvoiceID:       uuid.New().String(),
		BookingID:       req.BookingID,
		PaymentIntentID: intent.ID,
		Amount:          req.Amount,
		Currency:        req.Currency,
		Status:          string(intent.Status),
	}

	h.logger.Info("deposit intent created",
		zap.String("bookingId", req.BookingID),
		zap.String("paymentIntentId", intent.ID))
	return invoice, nil
}

func validateRequest(req models.PaymentRequest) error {
	if req.Amount <= 0 {
		return errors.New("invalid payment amount")
	}
	if req.BookingID == "" {
		return errors.New("missing booking ID")
	}
	if req.Currency == "" {
		return errors.New("missing currency")
	}
	return nil
}
