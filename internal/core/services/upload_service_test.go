package services

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/pixelift/backend/internal/core/ports"
	"github.com/pixelift/backend/internal/domain"
	"github.com/pixelift/backend/internal/infrastructure/db"
	"github.com/pixelift/backend/internal/infrastructure/logger"
	"github.com/pixelift/backend/internal/infrastructure/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUploadEnv(t *testing.T, maxBytes int64) (ports.UploadService, ports.ArtifactStore, ports.ArtifactRepository) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewLocalStore(dir+"/uploads", dir+"/results")
	require.NoError(t, err)
	artifacts := db.NewMemoryArtifactRepository()

	svc := NewUploadService(UploadServiceConfig{
		Store:     store,
		Artifacts: artifacts,
		Logger:    logger.NewNop(),
		MaxBytes:  maxBytes,
	})
	return svc, store, artifacts
}

func TestUploadService_StoresImage(t *testing.T) {
	svc, store, artifacts := newUploadEnv(t, 0)
	data := pngBytes(t, 5, 3)

	artifact, err := svc.Upload(context.Background(), ports.UploadInput{
		Filename:    "Holiday.PNG",
		ContentType: "image/png",
		Body:        bytes.NewReader(data),
	})
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(artifact.Key, ".png"), artifact.Key)
	assert.Equal(t, "Holiday.PNG", artifact.OriginalName)
	assert.Equal(t, 5, artifact.Width)
	assert.Equal(t, 3, artifact.Height)
	assert.Equal(t, int64(len(data)), artifact.SizeBytes)

	stored, err := store.Read(context.Background(), domain.NamespaceUploads, artifact.Key)
	require.NoError(t, err)
	assert.Equal(t, data, stored)

	saved, err := artifacts.GetByKey(context.Background(), artifact.Key)
	require.NoError(t, err)
	assert.Equal(t, "image/png", saved.ContentType)
}

func TestUploadService_DefaultExtension(t *testing.T) {
	svc, _, _ := newUploadEnv(t, 0)

	artifact, err := svc.Upload(context.Background(), ports.UploadInput{
		Filename:    "noext",
		ContentType: "image/png",
		Body:        bytes.NewReader(pngBytes(t, 2, 2)),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(artifact.Key, ".png"), artifact.Key)
}

func TestUploadService_Rejects(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        []byte
		maxBytes    int64
		wantErr     error
	}{
		{name: "gif not allowed", contentType: "image/gif", body: []byte("GIF89a"), wantErr: ErrUnsupportedMediaType},
		{name: "empty content type", contentType: "", body: []byte("x"), wantErr: ErrUnsupportedMediaType},
		{name: "not an image", contentType: "image/png", body: []byte("definitely not a png"), wantErr: ErrInvalidImage},
		{name: "too large", contentType: "image/png", body: bytes.Repeat([]byte{0}, 64), maxBytes: 16, wantErr: ErrInvalidImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newUploadEnv(t, tt.maxBytes)
			_, err := svc.Upload(context.Background(), ports.UploadInput{
				Filename:    "file.png",
				ContentType: tt.contentType,
				Body:        bytes.NewReader(tt.body),
			})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
