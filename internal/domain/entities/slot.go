package entities

// SlotKey identifies one capacity bucket.
type SlotKey struct {
	ProviderID string
	Date       string
	Time       ClockTime
}

// SlotAvailability is one entry of a day's slot grid.
type SlotAvailability struct {
	Time              ClockTime `json:"time"`
	CapacityRemaining int       `json:"capacity_remaining"`
	IsFull            bool      `json:"is_full"`
}
