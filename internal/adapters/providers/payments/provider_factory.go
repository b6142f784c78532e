package payments

import (
	"fmt"

	"github.com/zatekoja/carebook/backend/internal/domain/providers"
	"github.com/zatekoja/carebook/backend/internal/infrastructure/observability"
	"github.com/zatekoja/carebook/backend/pkg/config"
)

// NewPaymentGateway builds the configured gateway wrapped in the breaker.
// The returned parser verifies that gateway's webhooks.
func NewPaymentGateway(cfg config.PaymentsConfig, metrics *observability.Metrics) (providers.PaymentGateway, providers.WebhookParser, error) {
	var (
		gateway providers.PaymentGateway
		parser  providers.WebhookParser
	)

	switch cfg.Provider {
	case "stripe":
		stripeGateway := NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret, cfg.PaymentLinkSuccessURL)
		gateway, parser = stripeGateway, stripeGateway
	case "mock", "":
		// No real gateway configured; use the mock for dev.
		mock := NewMockGateway(cfg.StripeWebhookSecret)
		gateway, parser = mock, mock
	default:
		return nil, nil, fmt.Errorf("unsupported payment provider %q", cfg.Provider)
	}

	resilient := NewResilientGateway(gateway, ResilientConfig{
		Timeout:      cfg.Timeout,
		FailureLimit: cfg.BreakerFailureLimit,
		OpenTimeout:  cfg.BreakerOpenTimeout,
	}, metrics)
	return resilient, parser, nil
}
