package entities

// BookingStatus is a status from either booking lifecycle.
type BookingStatus string

// Appointment statuses.
const (
	StatusScheduled BookingStatus = "scheduled"
	StatusCompleted BookingStatus = "completed"
	StatusCancelled BookingStatus = "cancelled"
	StatusNoShow    BookingStatus = "no-show"
)

// Lab booking statuses.
const (
	LabRequested             BookingStatus = "Requested"
	LabConfirmed             BookingStatus = "Confirmed"
	LabSamplePickupScheduled BookingStatus = "Sample_Pickup_Scheduled"
	LabSamplePickedUp        BookingStatus = "Sample_Picked_Up"
	LabTestScheduled         BookingStatus = "Test_Scheduled"
	LabReportReady           BookingStatus = "Report_Ready"
	LabCollectionApproved    BookingStatus = "Collection_Approved"
	LabCompleted             BookingStatus = "Completed"
	LabCancelled             BookingStatus = "Cancelled"
	LabRejected              BookingStatus = "Rejected"
)

// Lifecycle is the state machine of one booking kind.
type Lifecycle interface {
	Initial() BookingStatus
	CancelStatus() BookingStatus
	Knows(s BookingStatus) bool
	IsTerminal(s BookingStatus) bool
	Allows(from, to BookingStatus) bool
	// ReleasesCapacity reports whether a booking in s no longer holds its slot.
	ReleasesCapacity(s BookingStatus) bool
}

type lifecycle struct {
	initial  BookingStatus
	cancel   BookingStatus
	edges    map[BookingStatus][]BookingStatus
	fromAny  []BookingStatus // reachable from every non-terminal status
	terminal map[BookingStatus]bool
	releases map[BookingStatus]bool
}

func (l *lifecycle) Initial() BookingStatus      { return l.initial }
func (l *lifecycle) CancelStatus() BookingStatus { return l.cancel }

func (l *lifecycle) Knows(s BookingStatus) bool {
	if s == l.initial || l.terminal[s] {
		return true
	}
	_, ok := l.edges[s]
	return ok
}

func (l *lifecycle) IsTerminal(s BookingStatus) bool {
	return l.terminal[s]
}

func (l *lifecycle) Allows(from, to BookingStatus) bool {
	if l.terminal[from] || !l.Knows(from) {
		return false
	}
	for _, s := range l.fromAny {
		if s == to {
			return true
		}
	}
	for _, s := range l.edges[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (l *lifecycle) ReleasesCapacity(s BookingStatus) bool {
	return l.releases[s]
}

var appointmentLifecycle = &lifecycle{
	initial: StatusScheduled,
	cancel:  StatusCancelled,
	edges: map[BookingStatus][]BookingStatus{
		StatusScheduled: {StatusCompleted, StatusCancelled, StatusNoShow},
	},
	terminal: map[BookingStatus]bool{
		StatusCompleted: true,
		StatusCancelled: true,
		StatusNoShow:    true,
	},
	releases: map[BookingStatus]bool{StatusCancelled: true},
}

var labLifecycle = &lifecycle{
	initial: LabRequested,
	cancel:  LabCancelled,
	edges: map[BookingStatus][]BookingStatus{
		LabRequested:             {LabConfirmed},
		LabConfirmed:             {LabSamplePickupScheduled},
		LabSamplePickupScheduled: {LabSamplePickedUp},
		LabSamplePickedUp:        {LabTestScheduled},
		LabTestScheduled:         {LabReportReady},
		LabReportReady:           {LabCollectionApproved},
		LabCollectionApproved:    {LabCompleted},
	},
	fromAny: []BookingStatus{LabCancelled, LabRejected},
	terminal: map[BookingStatus]bool{
		LabCompleted: true,
		LabCancelled: true,
		LabRejected:  true,
	},
	releases: map[BookingStatus]bool{LabCancelled: true, LabRejected: true},
}

// LifecycleFor returns the state machine for kind. Unknown kinds fall back to
// the appointment lifecycle; Booking.Validate rejects them before persistence.
func LifecycleFor(kind BookingKind) Lifecycle {
	if kind == BookingKindLab {
		return labLifecycle
	}
	return appointmentLifecycle
}

// TerminalStatuses lists every terminal status across both lifecycles.
func TerminalStatuses() []BookingStatus {
	return []BookingStatus{
		StatusCompleted, StatusCancelled, StatusNoShow,
		LabCompleted, LabCancelled, LabRejected,
	}
}

// CapacityReleasingStatuses lists the statuses in which a booking no longer holds its slot.
func CapacityReleasingStatuses() []BookingStatus {
	return []BookingStatus{StatusCancelled, LabCancelled, LabRejected}
}
