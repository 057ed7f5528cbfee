package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/stridedash/stridedash/internal/activities"
	"github.com/stridedash/stridedash/internal/config"
)

// Archive writes activity snapshots to a MinIO bucket so the local history
// survives the Strava account (or a laptop) going away.
type Archive struct {
	client *minio.Client
	bucket string
}

// New creates the archive client and ensures the bucket exists.
func New(cfg config.MinIOConfig) (*Archive, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint missing")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio new: %w", err)
	}
	a := &Archive{client: mc, bucket: cfg.Bucket}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mc.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
		exist, xerr := mc.BucketExists(ctx, a.bucket)
		if xerr != nil || !exist {
			return nil, fmt.Errorf("minio bucket ensure: %w", err)
		}
	}
	return a, nil
}

// PutSnapshot uploads the records as a timestamped JSON object and returns
// the object key.
func (a *Archive) PutSnapshot(ctx context.Context, records []activities.Record) (string, error) {
	b, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	key := fmt.Sprintf("exports/activities-%s.json", time.Now().UTC().Format("20060102T150405Z"))
	_, err = a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(b), int64(len(b)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return "", fmt.Errorf("upload snapshot: %w", err)
	}
	return key, nil
}

// GetSnapshot returns a reader for a previously written snapshot.
func (a *Archive) GetSnapshot(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := a.client.GetObject(ctx, a.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, err
	}
	return obj, nil
}
