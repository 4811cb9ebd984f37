// Package imagestore persists refined images. The generation fallback paths
// can return raw image bytes instead of a hosted URL; this package re-hosts
// them on S3 and hands back a presigned GET URL the rest of the pipeline
// treats exactly like a service-hosted result.
package imagestore

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// presignExpiry is the lifetime of presigned GET URLs. It exceeds the chain
// TTL so a chain never references an expired URL.
const presignExpiry = 36 * time.Hour

// Store uploads refined images to S3 and presigns read access.
type Store struct {
	client        *s3.Client
	presignClient *s3.PresignClient
	bucket        string
}

// NewStore creates a Store for the given bucket.
func NewStore(client *s3.Client, bucket string) *Store {
	return &Store{
		client:        client,
		presignClient: s3.NewPresignClient(client),
		bucket:        bucket,
	}
}

// Upload stores image bytes under a fresh refined/ key and returns the key
// and a presigned GET URL.
func (s *Store) Upload(ctx context.Context, data []byte, mimeType string) (string, string, error) {
	key := fmt.Sprintf("refined/%d-%s%s", time.Now().Unix(), uuid.NewString(), extensionFor(mimeType))

	log.Debug().
		Str("key", key).
		Int("bytes", len(data)).
		Str("mimeType", mimeType).
		Msg("Uploading refined image to S3")

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: &mimeType,
	})
	if err != nil {
		return "", "", fmt.Errorf("upload refined image to S3: %w", err)
	}

	url, err := s.PresignGet(ctx, key)
	if err != nil {
		return "", "", err
	}

	// A missing thumbnail must not fail the upload; the full image is the
	// deliverable, the preview is not.
	s.uploadThumbnail(ctx, key, data)

	log.Info().Str("key", key).Msg("Refined image uploaded to S3")
	return key, url, nil
}

func (s *Store) uploadThumbnail(ctx context.Context, key string, data []byte) {
	thumb, thumbMime, err := Thumbnail(data, DefaultThumbnailMaxDimension)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Thumbnail generation failed")
		return
	}
	tkey := thumbnailKey(key)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &tkey,
		Body:        bytes.NewReader(thumb),
		ContentType: &thumbMime,
	})
	if err != nil {
		log.Warn().Err(err).Str("key", tkey).Msg("Thumbnail upload failed")
		return
	}
	log.Debug().Str("key", tkey).Int("bytes", len(thumb)).Msg("Thumbnail uploaded")
}

// thumbnailKey maps a refined/ object key to its preview key. Thumbnails
// are always JPEG regardless of the source format.
func thumbnailKey(key string) string {
	base := strings.TrimPrefix(key, "refined/")
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	return "thumbnails/" + base + ".jpg"
}

// PresignGet creates a presigned GET URL for an already stored key.
func (s *Store) PresignGet(ctx context.Context, key string) (string, error) {
	result, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket, Key: &key,
	}, func(opts *s3.PresignOptions) {
		opts.Expires = presignExpiry
	})
	if err != nil {
		return "", fmt.Errorf("presign GetObject %s: %w", key, err)
	}
	return result.URL, nil
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
