package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
	"github.com/zatekoja/carebook/backend/internal/domain/providers"
)

// CloudinaryStore uploads outcome artifacts to Cloudinary.
type CloudinaryStore struct {
	cld    *cloudinary.Cloudinary
	folder string
}

// NewCloudinaryStore connects using a cloudinary:// URL.
func NewCloudinaryStore(cloudinaryURL, folder string) (*CloudinaryStore, error) {
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("init cloudinary: %w", err)
	}
	return &CloudinaryStore{cld: cld, folder: folder}, nil
}

// Upload stores r under <folder>/<bookingID>/ and returns its secure URL.
func (s *CloudinaryStore) Upload(ctx context.Context, bookingID, fileName string, r io.Reader) (*providers.StoredArtifact, error) {
	params := uploader.UploadParams{
		Folder:       path.Join(s.folder, bookingID),
		PublicID:     publicID(fileName),
		ResourceType: "auto",
	}
	result, err := s.cld.Upload.Upload(ctx, r, params)
	if err != nil {
		return nil, fmt.Errorf("upload artifact: %w", err)
	}
	if result.Error.Message != "" {
		return nil, fmt.Errorf("upload artifact: %s", result.Error.Message)
	}
	if result.PublicID == "" {
		return nil, fmt.Errorf("upload artifact: no public ID returned")
	}
	return &providers.StoredArtifact{URL: result.SecureURL, StorageID: result.PublicID}, nil
}

// publicID strips the extension and appends a short suffix so re-uploads do
// not overwrite earlier artifacts.
func publicID(fileName string) string {
	base := strings.TrimSuffix(path.Base(fileName), path.Ext(fileName))
	if base == "" || base == "." || base == "/" {
		base = "artifact"
	}
	return fmt.Sprintf("%s-%s", base, uuid.NewString()[:8])
}

var _ providers.ArtifactStore = (*CloudinaryStore)(nil)
