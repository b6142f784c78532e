package providers

import (
	"context"
	"io"
)

// StoredArtifact locates an uploaded file.
type StoredArtifact struct {
	URL       string
	StorageID string
}

// ArtifactStore keeps outcome documents.
type ArtifactStore interface {
	Upload(ctx context.Context, bookingID, fileName string, r io.Reader) (*StoredArtifact, error)
}
