package courseload

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectSource materializes course bundles from an S3-compatible bucket.
// Bundles are laid out under a per-course prefix mirroring the directory
// layout LoadDir expects.
type ObjectSource struct {
	client  *minio.Client
	bucket  string
	destDir string
}

// NewObjectSource connects to the object store and verifies the bucket
// exists. Downloaded bundles land under destDir.
func NewObjectSource(ctx context.Context, endpoint, accessKey, secretKey, bucket, destDir string, secure bool) (*ObjectSource, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("connect object store: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %s does not exist", bucket)
	}

	return &ObjectSource{client: client, bucket: bucket, destDir: destDir}, nil
}

// Fetch downloads every object under the course prefix into a local bundle
// directory and returns its path.
func (s *ObjectSource) Fetch(ctx context.Context, prefix string) (string, error) {
	prefix = strings.TrimSuffix(prefix, "/") + "/"
	dest := filepath.Join(s.destDir, filepath.FromSlash(strings.TrimSuffix(prefix, "/")))

	found := false
	for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return "", fmt.Errorf("list bundle objects: %w", object.Err)
		}
		found = true
		rel := strings.TrimPrefix(object.Key, prefix)
		local := filepath.Join(dest, filepath.FromSlash(rel))
		if err := s.client.FGetObject(ctx, s.bucket, object.Key, local, minio.GetObjectOptions{}); err != nil {
			return "", fmt.Errorf("download %s: %w", object.Key, err)
		}
	}
	if !found {
		return "", fmt.Errorf("no bundle objects under %s%s", s.bucket, "/"+prefix)
	}
	return dest, nil
}
