package entities

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAmounts(t *testing.T) {
	a, err := NewAmounts(decimal.NewFromInt(500), decimal.NewFromInt(50), decimal.NewFromInt(100), "inr")
	require.NoError(t, err)
	assert.True(t, a.Total.Equal(decimal.NewFromInt(450)))

	_, err = NewAmounts(decimal.NewFromInt(100), decimal.Zero, decimal.NewFromInt(150), "inr")
	assert.Error(t, err)
}

func TestBooking_Validate(t *testing.T) {
	amounts, _ := NewAmounts(decimal.NewFromInt(300), decimal.Zero, decimal.Zero, "inr")
	base := func() Booking {
		return Booking{
			Kind:            BookingKindLab,
			RequesterID:     "req-1",
			ProviderID:      "lab-1",
			DurationMinutes: 30,
			Amounts:         amounts,
		}
	}

	tests := []struct {
		name    string
		mutate  func(b *Booking)
		wantErr bool
	}{
		{"lab with test", func(b *Booking) { b.Resource.TestID = "t-1" }, false},
		{"lab with package", func(b *Booking) { b.Resource.PackageID = "p-1" }, false},
		{"lab with both", func(b *Booking) { b.Resource.TestID = "t-1"; b.Resource.PackageID = "p-1" }, true},
		{"lab with neither", func(b *Booking) {}, true},
		{"appointment", func(b *Booking) {
			b.Kind = BookingKindAppointment
			b.Resource.ServiceID = "svc-1"
			b.Modality = ModalityRemote
		}, false},
		{"appointment without modality", func(b *Booking) {
			b.Kind = BookingKindAppointment
			b.Resource.ServiceID = "svc-1"
		}, true},
		{"appointment with home collection", func(b *Booking) {
			b.Kind = BookingKindAppointment
			b.Resource.ServiceID = "svc-1"
			b.Modality = ModalityInPerson
			b.HomeCollection = true
		}, true},
		{"tampered total", func(b *Booking) {
			b.Resource.TestID = "t-1"
			b.Amounts.Total = decimal.NewFromInt(1)
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := base()
			tt.mutate(&b)
			err := b.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBooking_PlaceAt(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	b := &Booking{DurationMinutes: 30}
	require.NoError(t, b.PlaceAt("2024-06-10", MustClock("09:00"), loc))

	assert.Equal(t, time.Date(2024, 6, 10, 9, 0, 0, 0, loc), b.StartsAt)
	assert.Equal(t, time.Date(2024, 6, 10, 9, 30, 0, 0, loc), b.EndsAt)
	assert.Equal(t, MustClock("09:30"), b.ScheduledEndClock())

	assert.Error(t, b.PlaceAt("10/06/2024", MustClock("09:00"), loc))
}

func TestClockTime_JSON(t *testing.T) {
	var r TimeRange
	require.NoError(t, json.Unmarshal([]byte(`{"start":"09:00","end":"12:30"}`), &r))
	assert.Equal(t, ClockTime(540), r.Start)
	assert.Equal(t, ClockTime(750), r.End)

	out, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"start":"09:00","end":"12:30"}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"start":"9am"}`), &r))
}
