package entities

import "time"

// Entitlement is a pre-paid count of services a payer may consume.
type Entitlement struct {
	ID        string     `json:"id" db:"id"`
	PayerID   string     `json:"payer_id" db:"payer_id"`
	Category  string     `json:"category" db:"category"`
	Remaining int        `json:"remaining" db:"remaining"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// Usable checks if the entitlement is unexpired and has remaining uses
func (e *Entitlement) Usable(now time.Time) bool {
	if e.Remaining <= 0 {
		return false
	}
	if e.ExpiresAt != nil && !now.Before(*e.ExpiresAt) {
		return false
	}
	return true
}
