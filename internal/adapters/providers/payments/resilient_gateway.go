package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"github.com/zatekoja/carebook/backend/internal/domain/providers"
	"github.com/zatekoja/carebook/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/carebook/backend/pkg/errors"
)

// ResilientConfig configures deadlines and the circuit breaker.
type ResilientConfig struct {
	Timeout      time.Duration
	FailureLimit int
	OpenTimeout  time.Duration
}

// ResilientGateway bounds every gateway call with a deadline and a circuit
// breaker, and records call duration.
type ResilientGateway struct {
	next    providers.PaymentGateway
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
	metrics *observability.Metrics
}

// noCapture lets FetchLinkCapture report ErrNoCapture without tripping the breaker.
type noCapture struct{}

// NewResilientGateway wraps next.
func NewResilientGateway(next providers.PaymentGateway, cfg ResilientConfig, metrics *observability.Metrics) *ResilientGateway {
	limit := uint32(cfg.FailureLimit)
	if limit == 0 {
		limit = 5
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "payment-gateway",
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= limit
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	})
	return &ResilientGateway{next: next, cb: cb, timeout: cfg.Timeout, metrics: metrics}
}

func (g *ResilientGateway) call(ctx context.Context, op string, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := g.cb.Execute(func() (interface{}, error) {
		return fn(ctx)
	})
	observability.RecordGatewayCall(ctx, g.metrics, op, time.Since(start), err)

	if err == nil {
		return res, nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, apperrors.NewExternalError("payment gateway unavailable", err)
	}
	return nil, apperrors.NewExternalError(fmt.Sprintf("payment gateway %s failed", op), err)
}

func (g *ResilientGateway) CreateLink(ctx context.Context, req providers.ChargeRequest) (*providers.GatewayLink, error) {
	res, err := g.call(ctx, "create_link", func(ctx context.Context) (interface{}, error) {
		return g.next.CreateLink(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return res.(*providers.GatewayLink), nil
}

func (g *ResilientGateway) CreateOrder(ctx context.Context, req providers.ChargeRequest) (*providers.GatewayOrder, error) {
	res, err := g.call(ctx, "create_order", func(ctx context.Context) (interface{}, error) {
		return g.next.CreateOrder(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return res.(*providers.GatewayOrder), nil
}

func (g *ResilientGateway) FetchLinkCapture(ctx context.Context, linkID string) (string, error) {
	res, err := g.call(ctx, "fetch_link_capture", func(ctx context.Context) (interface{}, error) {
		id, err := g.next.FetchLinkCapture(ctx, linkID)
		if errors.Is(err, providers.ErrNoCapture) {
			return noCapture{}, nil
		}
		return id, err
	})
	if err != nil {
		return "", err
	}
	if _, ok := res.(noCapture); ok {
		return "", providers.ErrNoCapture
	}
	return res.(string), nil
}

func (g *ResilientGateway) Refund(ctx context.Context, req providers.RefundRequest) (string, error) {
	res, err := g.call(ctx, "refund", func(ctx context.Context) (interface{}, error) {
		return g.next.Refund(ctx, req)
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

func (g *ResilientGateway) CancelLink(ctx context.Context, linkID string) error {
	_, err := g.call(ctx, "cancel_link", func(ctx context.Context) (interface{}, error) {
		return nil, g.next.CancelLink(ctx, linkID)
	})
	return err
}

var _ providers.PaymentGateway = (*ResilientGateway)(nil)
