package media

import (
	"context"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"

	"github.com/adiprasetyo/playtube-backend/pkg/helpers"
)

// GCSUploader pushes locally staged files to a Google Cloud Storage bucket
// and returns their public URL.
type GCSUploader struct {
	Client *storage.Client
	Bucket string
	// Prefix is prepended to object names, e.g. "media".
	Prefix string
}

func NewGCSUploader(client *storage.Client, bucket, prefix string) *GCSUploader {
	return &GCSUploader{Client: client, Bucket: bucket, Prefix: prefix}
}

// UploadFile uploads the staged file at localPath and returns its public URL.
// The staged file is removed afterward whether or not the upload succeeded.
func (g *GCSUploader) UploadFile(ctx context.Context, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = f.Close()
		_ = os.Remove(localPath)
	}()

	ext := strings.ToLower(filepath.Ext(localPath))
	contentType := mime.TypeByExtension(ext)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	objectPath := filepath.ToSlash(filepath.Join(g.Prefix, uuid.NewString()+ext))
	return helpers.UploadObject(ctx, g.Client, g.Bucket, objectPath, contentType, f)
}
