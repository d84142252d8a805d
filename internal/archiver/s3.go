package archiver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"

	"go-photos-archiver/internal/ledger"
	"go-photos-archiver/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// objectAPI is the part of *s3.Client the writer needs.
type objectAPI interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Writer stores items under <prefix>/<year>/<month>/<day>/<filename>.
// Album references are empty objects whose website redirect points at the
// canonical key.
type S3Writer struct {
	client objectAPI
	bucket string
	prefix string
}

// NewS3Client builds an S3 client from the default AWS credential chain.
func NewS3Client(ctx context.Context, region string) (*s3.Client, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return s3.NewFromConfig(awsCfg), nil
}

func NewS3Writer(client objectAPI, bucket, prefix string) *S3Writer {
	return &S3Writer{client: client, bucket: bucket, prefix: prefix}
}

// NewS3Archiver wires an S3Writer into a TaskArchiver.
func NewS3Archiver(client objectAPI, bucket, prefix string, l ledger.Ledger, fetcher Fetcher, opts Options) *TaskArchiver {
	return NewTaskArchiver(NewS3Writer(client, bucket, prefix), l, fetcher, opts)
}

func (w *S3Writer) ResolvePath(item models.MediaItem) (string, error) {
	name, err := itemFilename(item)
	if err != nil {
		return "", err
	}
	created, err := item.CreatedAt()
	if err != nil {
		return "", fmt.Errorf("%w: %s has unparseable creation time %q: %w", ErrInvalidItem, item.Filename, item.MediaMetadata.CreationTime, err)
	}
	created = created.UTC()
	return path.Join(w.prefix,
		strconv.Itoa(created.Year()),
		strconv.Itoa(int(created.Month())),
		strconv.Itoa(created.Day()),
		name,
	), nil
}

// Location returns key as an s3://bucket/key URL.
func (w *S3Writer) Location(key string) string {
	return "s3://" + w.bucket + "/" + key
}

func (w *S3Writer) Exists(ctx context.Context, key string) (bool, error) {
	_, err := w.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(w.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	return false, fmt.Errorf("%w: head %s: %w", ErrObjectStore, key, err)
}

func (w *S3Writer) Write(ctx context.Context, key string, data []byte) error {
	_, err := w.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(w.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("%w: put %s: %w", ErrObjectStore, key, err)
	}
	return nil
}

func (w *S3Writer) LinkIntoAlbum(ctx context.Context, albumPath, canonicalKey, filename string) error {
	key := path.Join(w.prefix, albumPath, path.Base(filename))
	exists, err := w.Exists(ctx, key)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = w.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:                  aws.String(w.bucket),
		Key:                     aws.String(key),
		Body:                    bytes.NewReader(nil),
		ContentLength:           aws.Int64(0),
		WebsiteRedirectLocation: aws.String("/" + canonicalKey),
	})
	if err != nil {
		return fmt.Errorf("%w: put album reference %s: %w", ErrObjectStore, key, err)
	}
	return nil
}
