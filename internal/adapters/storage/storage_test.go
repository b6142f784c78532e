package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublicID(t *testing.T) {
	tests := []struct {
		fileName string
		prefix   string
	}{
		{"report.pdf", "report-"},
		{"dir/scan.final.png", "scan.final-"},
		{"", "artifact-"},
	}
	for _, tt := range tests {
		t.Run(tt.fileName, func(t *testing.T) {
			id := publicID(tt.fileName)
			assert.True(t, strings.HasPrefix(id, tt.prefix), id)
			assert.Len(t, id, len(tt.prefix)+8)
		})
	}
}

func TestMemoryStore_Upload(t *testing.T) {
	s := NewMemoryStore()
	stored, err := s.Upload(context.Background(), "b-1", "report.pdf", strings.NewReader("%PDF"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(stored.StorageID, "b-1/report-"))
	assert.Equal(t, "memory://"+stored.StorageID, stored.URL)

	body, ok := s.Get(stored.StorageID)
	require.True(t, ok)
	assert.Equal(t, "%PDF", string(body))
}
