package middleware

import (
	"net/http"

	"github.com/zatekoja/carebook/backend/internal/application/loaders"
	"github.com/zatekoja/carebook/backend/internal/domain/repositories"
)

// LoadersMiddleware gives each request its own batch loaders.
func LoadersMiddleware(payments repositories.PaymentRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := loaders.WithLoaders(r.Context(), loaders.NewLoaders(payments))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
