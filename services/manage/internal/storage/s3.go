package storage

import (
	"bytes"
	"context"
	"io"

	appconfig "github.com/h-mizumoto/Dynamic-Data-Upload/services/manage/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/pkg/errors"
)

// ErrNoSuchKey indicates the blob store has no object under the requested key
var ErrNoSuchKey = errors.New("no such key")

// BlobStore abstracts the report file store
type BlobStore interface {
	Get(ctx context.Context, filename string) ([]byte, error)
	Put(ctx context.Context, filename string, body io.Reader) error
	Delete(ctx context.Context, filename string) error
}

// S3Store implements BlobStore against an S3 bucket
type S3Store struct {
	client     *s3.Client
	uploader   *manager.Uploader
	bucketName string
}

// NewS3Store creates a blob store for the configured bucket
func NewS3Store(ctx context.Context, cfg appconfig.StorageConfig) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, errors.Wrap(err, "loading AWS configuration")
	}

	client := s3.NewFromConfig(awsCfg)
	return &S3Store{
		client:     client,
		uploader:   manager.NewUploader(client),
		bucketName: cfg.BucketName,
	}, nil
}

// Get downloads a report file by key
func (s *S3Store) Get(ctx context.Context, filename string) ([]byte, error) {
	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(filename),
	})
	if err != nil {
		var notExist *types.NoSuchKey
		if errors.As(err, &notExist) {
			return nil, ErrNoSuchKey
		}
		return nil, errors.Wrap(err, "getting object from S3")
	}
	defer output.Body.Close()

	return io.ReadAll(output.Body)
}

// Put uploads a report file under the given key
func (s *S3Store) Put(ctx context.Context, filename string, body io.Reader) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(filename),
		Body:   body,
	})
	if err != nil {
		return errors.Wrap(err, "uploading object to S3")
	}
	return nil
}

// Delete removes an uploaded blob. Used as the compensating action when the
// report catalog insert fails after a successful upload.
func (s *S3Store) Delete(ctx context.Context, filename string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(filename),
	})
	if err != nil {
		return errors.Wrap(err, "deleting object from S3")
	}
	return nil
}

// memStore is an in-memory BlobStore used by tests
type memStore struct {
	objects map[string][]byte
}

// NewMemStore creates an in-memory blob store
func NewMemStore() BlobStore {
	return &memStore{objects: map[string][]byte{}}
}

func (m *memStore) Get(_ context.Context, filename string) ([]byte, error) {
	data, ok := m.objects[filename]
	if !ok {
		return nil, ErrNoSuchKey
	}
	return data, nil
}

func (m *memStore) Put(_ context.Context, filename string, body io.Reader) error {
	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, body); err != nil {
		return err
	}
	m.objects[filename] = buf.Bytes()
	return nil
}

func (m *memStore) Delete(_ context.Context, filename string) error {
	delete(m.objects, filename)
	return nil
}
