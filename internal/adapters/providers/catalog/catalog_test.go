package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/carebook/backend/internal/domain/entities"
	apperrors "github.com/zatekoja/carebook/backend/pkg/errors"
)

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) GetOffering(ctx context.Context, serviceRef, location string) (*entities.Offering, error) {
	args := m.Called(ctx, serviceRef, location)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Offering), args.Error(1)
}

func TestCachedCatalog_ServesRepeatsFromCache(t *testing.T) {
	next := new(mockCatalog)
	next.On("GetOffering", mock.Anything, "cbc", "560001").
		Return(&entities.Offering{ServiceRef: "cbc", Offered: true, Price: decimal.NewFromInt(300)}, nil).Once()

	c := NewCachedCatalog(next, 10, time.Minute, nil)
	for i := 0; i < 3; i++ {
		o, err := c.GetOffering(context.Background(), "cbc", "560001")
		require.NoError(t, err)
		assert.True(t, o.Price.Equal(decimal.NewFromInt(300)))
	}
	next.AssertNumberOfCalls(t, "GetOffering", 1)
}

func TestCachedCatalog_DoesNotCacheErrors(t *testing.T) {
	next := new(mockCatalog)
	next.On("GetOffering", mock.Anything, "cbc", "").Return(nil, errors.New("catalog down")).Twice()

	c := NewCachedCatalog(next, 10, time.Minute, nil)
	_, err := c.GetOffering(context.Background(), "cbc", "")
	require.Error(t, err)
	_, err = c.GetOffering(context.Background(), "cbc", "")
	require.Error(t, err)
	next.AssertNumberOfCalls(t, "GetOffering", 2)
}

func TestCachedCatalog_ReturnsCopies(t *testing.T) {
	next := new(mockCatalog)
	next.On("GetOffering", mock.Anything, "cbc", "").
		Return(&entities.Offering{ServiceRef: "cbc", Category: "lab"}, nil).Once()

	c := NewCachedCatalog(next, 10, time.Minute, nil)
	first, _ := c.GetOffering(context.Background(), "cbc", "")
	first.Category = "mutated"

	again, err := c.GetOffering(context.Background(), "cbc", "")
	require.NoError(t, err)
	assert.Equal(t, "lab", again.Category)
}

func TestStaticCatalog(t *testing.T) {
	c := NewStaticCatalog(nil,
		entities.Offering{ServiceRef: "cbc", Offered: true, Category: "lab"},
		entities.Offering{ServiceRef: "cbc", Location: "remote-town", Offered: false},
	)
	ctx := context.Background()

	o, err := c.GetOffering(ctx, "cbc", "560001")
	require.NoError(t, err)
	assert.True(t, o.Offered)
	assert.Equal(t, "560001", o.Location)

	o, err = c.GetOffering(ctx, "cbc", "remote-town")
	require.NoError(t, err)
	assert.False(t, o.Offered)

	_, err = c.GetOffering(ctx, "lipid", "")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))

	withFallback := NewStaticCatalog(DevOffering("inr", 30))
	o, err = withFallback.GetOffering(ctx, "anything", "x")
	require.NoError(t, err)
	assert.Equal(t, "anything", o.ServiceRef)
	assert.True(t, o.Offered)
}
