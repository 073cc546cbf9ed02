package backup

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Destination uploads snapshots to one object in an S3-compatible
// bucket. Keys ending in ".zst" are stored zstd-compressed. The note count,
// digest and capture time are stored as object metadata.
type S3Destination struct {
	client *s3.Client
	bucket string
	key    string
}

// NewS3Destination returns a destination for bucket/key. A non-empty
// endpoint selects path-style addressing for MinIO and similar servers.
func NewS3Destination(ctx context.Context, bucket, key, region, endpoint string) (*S3Destination, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var opts []func(*s3.Options)
	if endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}
	return &S3Destination{
		client: s3.NewFromConfig(cfg, opts...),
		bucket: bucket,
		key:    key,
	}, nil
}

func (d *S3Destination) Name() string { return "s3://" + d.bucket + "/" + d.key }

// Write replaces the object with snap.
func (d *S3Destination) Write(ctx context.Context, snap *Snapshot) error {
	body, err := encodeFor(d.key, snap.Data)
	if err != nil {
		return fmt.Errorf("compress snapshot: %w", err)
	}
	_, err = d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(d.key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentTypeFor(d.key)),
		Metadata:    snapshotMetadata(snap),
	})
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", d.Name(), err)
	}
	return nil
}

func snapshotMetadata(snap *Snapshot) map[string]string {
	return map[string]string{
		"note-count": strconv.Itoa(snap.Notes),
		"digest":     snap.DigestHex(),
		"taken-at":   snap.Taken.Format(time.RFC3339),
	}
}
