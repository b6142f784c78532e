package loaders

import (
	"context"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/zatekoja/carebook/backend/internal/domain/entities"
	"github.com/zatekoja/carebook/backend/internal/domain/repositories"
)

type ctxKey string

const loadersKey ctxKey = "dataloaders"

// Loaders contains all the dataloaders for the application
type Loaders struct {
	PaymentLoader *dataloader.Loader[string, *entities.PaymentRecord]
}

// NewLoaders creates a new instance of Loaders. PaymentLoader is keyed by
// booking id and yields nil for bookings without a payment record.
func NewLoaders(paymentRepo repositories.PaymentRepository) *Loaders {
	return &Loaders{
		PaymentLoader: dataloader.NewBatchedLoader(func(ctx context.Context, keys []string) []*dataloader.Result[*entities.PaymentRecord] {
			results := make([]*dataloader.Result[*entities.PaymentRecord], len(keys))
			records, err := paymentRepo.ListByBookingIDs(ctx, keys)

			recordMap := make(map[string]*entities.PaymentRecord)
			if err == nil {
				for _, r := range records {
					recordMap[r.BookingID] = r
				}
			}

			for i, key := range keys {
				if err != nil {
					results[i] = &dataloader.Result[*entities.PaymentRecord]{Error: err}
				} else {
					results[i] = &dataloader.Result[*entities.PaymentRecord]{Data: recordMap[key]}
				}
			}
			return results
		}),
	}
}

// For returns the loaders for a given context, or nil when none are attached
func For(ctx context.Context) *Loaders {
	l, _ := ctx.Value(loadersKey).(*Loaders)
	return l
}

// WithLoaders returns a new context with the loaders attached
func WithLoaders(ctx context.Context, loaders *Loaders) context.Context {
	return context.WithValue(ctx, loadersKey, loaders)
}
