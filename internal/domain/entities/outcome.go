package entities

import "time"

// OutcomeKind describes what an uploaded outcome artifact is.
type OutcomeKind string

const (
	OutcomeClinicalRecord OutcomeKind = "clinical_record"
	OutcomeLabReport      OutcomeKind = "lab_report"
)

// OutcomeArtifact is a document produced by a booking (clinical record, lab report).
// Its presence is what distinguishes an attended appointment from a no-show.
type OutcomeArtifact struct {
	ID         string      `json:"id" db:"id"`
	BookingID  string      `json:"booking_id" db:"booking_id"`
	Kind       OutcomeKind `json:"kind" db:"kind"`
	FileName   string      `json:"file_name" db:"file_name"`
	URL        string      `json:"url" db:"url"`
	StorageID  string      `json:"storage_id" db:"storage_id"`
	UploadedBy string      `json:"uploaded_by" db:"uploaded_by"`
	UploadedAt time.Time   `json:"uploaded_at" db:"uploaded_at"`
}
