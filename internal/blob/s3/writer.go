package s3blob

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/alanyoungcy/optionsdeployer/internal/domain"
)

// minPartSize is the smallest part S3 accepts in a multipart upload.
const minPartSize int64 = 5 * 1024 * 1024

// Writer implements domain.BlobWriter. Every object is tagged with the tool
// that produced it.
type Writer struct {
	client *s3.Client
	bucket string
	meta   map[string]string
}

var _ domain.BlobWriter = (*Writer)(nil)

// NewWriter creates a Writer for the client's bucket.
func NewWriter(c *Client) *Writer {
	return &Writer{
		client: c.s3,
		bucket: c.bucket,
		meta:   map[string]string{"producer": "marketdeploy"},
	}
}

// Put uploads data in a single PutObject request.
func (w *Writer) Put(ctx context.Context, key string, data io.Reader, contentType string) error {
	_, err := w.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(key),
		Body:        data,
		ContentType: aws.String(contentType),
		Metadata:    w.meta,
	})
	if err != nil {
		return fmt.Errorf("s3blob: put %s/%s: %w", w.bucket, key, err)
	}
	return nil
}

// PutMultipart uploads data in parts of partSize bytes, raised to the S3
// minimum when smaller.
func (w *Writer) PutMultipart(ctx context.Context, key string, data io.Reader, partSize int64) error {
	uploader := manager.NewUploader(w.client, func(u *manager.Uploader) {
		u.PartSize = max(partSize, minPartSize)
	})
	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:   aws.String(w.bucket),
		Key:      aws.String(key),
		Body:     data,
		Metadata: w.meta,
	})
	if err != nil {
		return fmt.Errorf("s3blob: multipart upload %s/%s: %w", w.bucket, key, err)
	}
	return nil
}
