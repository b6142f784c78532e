package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the state of a booking's payment obligation.
type PaymentStatus string

const (
	PaymentCreated   PaymentStatus = "created"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// PaymentMethod records how the obligation is being met.
type PaymentMethod string

const (
	// PaymentMethodEntitlement consumes a pre-paid entitlement; there is no gateway reference.
	PaymentMethodEntitlement PaymentMethod = "entitlement"
	// PaymentMethodLink is a gateway payment link, created for provider or admin initiated bookings.
	PaymentMethodLink PaymentMethod = "link"
	// PaymentMethodOrder is a gateway order paid by the requester in-app.
	PaymentMethodOrder PaymentMethod = "order"
)

// PaymentRecord is the one payment obligation bound to a booking.
type PaymentRecord struct {
	ID                string          `json:"id" db:"id"`
	BookingID         string          `json:"booking_id" db:"booking_id"`
	CreatorRole       ActorRole       `json:"creator_role" db:"creator_role"`
	Method            PaymentMethod   `json:"method" db:"method"`
	EntitlementID     string          `json:"entitlement_id,omitempty" db:"entitlement_id"`
	GatewayLinkID     string          `json:"gateway_link_id,omitempty" db:"gateway_link_id"`
	GatewayLinkURL    string          `json:"gateway_link_url,omitempty" db:"gateway_link_url"`
	GatewayOrderID    string          `json:"gateway_order_id,omitempty" db:"gateway_order_id"`
	CapturedPaymentID string          `json:"captured_payment_id,omitempty" db:"captured_payment_id"`
	RefundID          string          `json:"refund_id,omitempty" db:"refund_id"`
	Amount            decimal.Decimal `json:"amount" db:"amount"`
	Currency          string          `json:"currency" db:"currency"`
	Status            PaymentStatus   `json:"status" db:"status"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

// IsSettled reports whether the booking counts as paid: a completed capture
// or a consumed entitlement.
func (p *PaymentRecord) IsSettled() bool {
	if p.Status == PaymentCompleted {
		return true
	}
	return p.Method == PaymentMethodEntitlement && p.Status == PaymentCreated
}

// AwaitingGateway reports whether the record still waits on a gateway capture.
func (p *PaymentRecord) AwaitingGateway() bool {
	return p.Status == PaymentCreated && p.Method != PaymentMethodEntitlement
}

// GatewayReference returns the link or order id the gateway knows this record by.
func (p *PaymentRecord) GatewayReference() string {
	if p.GatewayLinkID != "" {
		return p.GatewayLinkID
	}
	return p.GatewayOrderID
}
