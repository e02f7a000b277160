package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var Client *minio.Client
var BucketName string

func Init() error {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		endpoint = "minio:9000"
	}

	accessKey := os.Getenv("MINIO_ACCESS_KEY")
	secretKey := os.Getenv("MINIO_SECRET_KEY")

	BucketName = os.Getenv("MINIO_BUCKET")
	if BucketName == "" {
		BucketName = "uploads"
	}

	useSSL := os.Getenv("MINIO_USE_SSL") == "true"

	var err error
	Client, err = minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return fmt.Errorf("failed to create MinIO client: %w", err)
	}

	// Verify bucket exists
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := Client.BucketExists(ctx, BucketName)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", BucketName)
	}

	return nil
}

// UploadImage stores an uploaded image under a unique dated key.
// Key format: YYYY/MM/{uuid}{ext}
func UploadImage(ctx context.Context, reader io.Reader, size int64, contentType string) (string, error) {
	now := time.Now()
	objectKey := fmt.Sprintf("%d/%02d/%s%s",
		now.Year(),
		now.Month(),
		uuid.New().String(),
		GetFileExtension(contentType),
	)

	_, err := Client.PutObject(ctx, BucketName, objectKey, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}

	return objectKey, nil
}

// GetPresignedURL generates a presigned URL for viewing an image
func GetPresignedURL(ctx context.Context, objectKey string) (string, error) {
	url, err := Client.PresignedGetObject(ctx, BucketName, objectKey, 24*time.Hour, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return url.String(), nil
}

// DeleteImage removes an image from storage
func DeleteImage(ctx context.Context, objectKey string) error {
	return Client.RemoveObject(ctx, BucketName, objectKey, minio.RemoveObjectOptions{})
}

// GetFileExtension extracts file extension from content type
func GetFileExtension(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}

// Images adapts the package-level client to the HTTP layer's upload contract.
type Images struct{}

func (Images) Upload(ctx context.Context, reader io.Reader, size int64, contentType string) (string, error) {
	return UploadImage(ctx, reader, size, contentType)
}

func (Images) PresignedURL(ctx context.Context, objectKey string) (string, error) {
	return GetPresignedURL(ctx, objectKey)
}

func (Images) Delete(ctx context.Context, objectKey string) error {
	return DeleteImage(ctx, objectKey)
}

// ObjectStore adapts the MinIO client to the pipeline's raw file access
// contract: existence checks plus a local path the OCR/AI stages can read.
type ObjectStore struct{}

// Exists reports whether the raw image object is retrievable.
func (ObjectStore) Exists(ctx context.Context, objectKey string) (bool, error) {
	_, err := Client.StatObject(ctx, BucketName, objectKey, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// LocalPath downloads the object to a temp file and returns its path together
// with a cleanup func. The caller must invoke cleanup when the run finishes.
func (ObjectStore) LocalPath(ctx context.Context, objectKey string) (string, func(), error) {
	path := filepath.Join(os.TempDir(), "ocr_"+uuid.New().String()+filepath.Ext(objectKey))
	if err := Client.FGetObject(ctx, BucketName, objectKey, path, minio.GetObjectOptions{}); err != nil {
		return "", nil, fmt.Errorf("failed to fetch image %s: %w", objectKey, err)
	}
	cleanup := func() { os.Remove(path) }
	return path, cleanup, nil
}
