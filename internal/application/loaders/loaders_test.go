package loaders

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/carebook/backend/internal/domain/entities"
)

type mockPaymentRepo struct {
	mock.Mock
}

func (m *mockPaymentRepo) Create(ctx context.Context, p *entities.PaymentRecord) error { return nil }
func (m *mockPaymentRepo) GetByBookingID(ctx context.Context, id string) (*entities.PaymentRecord, error) {
	return nil, nil
}
func (m *mockPaymentRepo) GetByBookingIDForUpdate(ctx context.Context, id string) (*entities.PaymentRecord, error) {
	return nil, nil
}
func (m *mockPaymentRepo) GetByGatewayRefForUpdate(ctx context.Context, ref string) (*entities.PaymentRecord, error) {
	return nil, nil
}
func (m *mockPaymentRepo) Update(ctx context.Context, p *entities.PaymentRecord) error { return nil }

func (m *mockPaymentRepo) ListByBookingIDs(ctx context.Context, ids []string) ([]*entities.PaymentRecord, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.PaymentRecord), args.Error(1)
}

func TestPaymentLoader_BatchesKeys(t *testing.T) {
	repo := new(mockPaymentRepo)
	repo.On("ListByBookingIDs", mock.Anything, mock.MatchedBy(func(ids []string) bool { return len(ids) == 2 })).
		Return([]*entities.PaymentRecord{{ID: "pay-1", BookingID: "b-1"}}, nil).Once()

	l := NewLoaders(repo)
	ctx := context.Background()
	first := l.PaymentLoader.Load(ctx, "b-1")
	second := l.PaymentLoader.Load(ctx, "b-2")

	rec, err := first()
	require.NoError(t, err)
	assert.Equal(t, "pay-1", rec.ID)

	missing, err := second()
	require.NoError(t, err)
	assert.Nil(t, missing)
	repo.AssertExpectations(t)
}

func TestPaymentLoader_PropagatesErrors(t *testing.T) {
	repo := new(mockPaymentRepo)
	repo.On("ListByBookingIDs", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

	_, err := NewLoaders(repo).PaymentLoader.Load(context.Background(), "b-1")()
	assert.Error(t, err)
}

func TestFor(t *testing.T) {
	assert.Nil(t, For(context.Background()))

	l := NewLoaders(new(mockPaymentRepo))
	assert.Same(t, l, For(WithLoaders(context.Background(), l)))
}
