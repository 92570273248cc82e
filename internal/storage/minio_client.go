package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"path"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"

	"registration-service/internal/config"
)

// NewMinioClient initializes a MinIO client and ensures the bucket exists.
func NewMinioClient(cfg *config.Config) (*minio.Client, error) {
	minioClient, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioSSL,
	})
	if err != nil {
		return nil, err
	}
	// Ensure the bucket exists (create if not present)
	ctx := context.Background()
	exists, errBucket := minioClient.BucketExists(ctx, cfg.MinioBucket)
	if errBucket != nil {
		return nil, errBucket
	}
	if !exists {
		err = minioClient.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{Region: ""})
		if err != nil {
			return nil, err
		}
		log.Printf("Created bucket %s\n", cfg.MinioBucket)
	}
	return minioClient, nil
}

// ProofStore stores payment-proof images. It exists as an interface so the
// submission gate can be tested without object storage.
type ProofStore interface {
	Upload(ctx context.Context, reader io.Reader, size int64, contentType, filename string) (url, key string, err error)
	Remove(ctx context.Context, key string) error
}

// MinioProofStore stores proofs in a MinIO bucket under proofs/<uuid><ext>.
type MinioProofStore struct {
	Client     *minio.Client
	BucketName string
	PublicBase string // base URL prefix for publicly resolvable object links
}

// NewMinioProofStore creates a proof store over the given client and bucket.
func NewMinioProofStore(client *minio.Client, cfg *config.Config) *MinioProofStore {
	scheme := "http"
	if cfg.MinioSSL {
		scheme = "https"
	}
	return &MinioProofStore{
		Client:     client,
		BucketName: cfg.MinioBucket,
		PublicBase: fmt.Sprintf("%s://%s/%s", scheme, cfg.MinioEndpoint, cfg.MinioBucket),
	}
}

// Upload stores the proof bytes and returns a resolvable URL plus the
// object key needed for later removal.
func (s *MinioProofStore) Upload(ctx context.Context, reader io.Reader, size int64, contentType, filename string) (string, string, error) {
	key := "proofs/" + uuid.New().String() + path.Ext(filename)
	_, err := s.Client.PutObject(ctx, s.BucketName, key, reader, size,
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", "", errors.Wrap(err, "failed to upload proof to MinIO")
	}
	return s.PublicBase + "/" + key, key, nil
}

// Remove deletes a previously uploaded proof object.
func (s *MinioProofStore) Remove(ctx context.Context, key string) error {
	return s.Client.RemoveObject(ctx, s.BucketName, key, minio.RemoveObjectOptions{})
}
