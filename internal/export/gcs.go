package export

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// ObjectSink performs a durable put of one object.
type ObjectSink interface {
	Put(ctx context.Context, bucket, key, contentType string, r io.Reader) error
}

// GCSSink writes artifacts to Google Cloud Storage. It assumes Application
// Default Credentials unless options say otherwise.
type GCSSink struct {
	client *storage.Client
}

func NewGCSSink(ctx context.Context, opts ...option.ClientOption) (*GCSSink, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSSink{client: client}, nil
}

// Put streams r into bucket/key. The object only becomes visible when the
// writer closes cleanly; cancelling ctx abandons the write, so an interrupted
// export never finalizes a partial object.
func (s *GCSSink) Put(ctx context.Context, bucket, key, contentType string, r io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := s.client.Bucket(bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copy to %s/%s: %w", bucket, key, err)
	}
	if err := w.Close(); err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			return fmt.Errorf("finalize %s/%s: HTTP %d: %w", bucket, key, apiErr.Code, err)
		}
		return fmt.Errorf("finalize %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (s *GCSSink) Close() error {
	return s.client.Close()
}
