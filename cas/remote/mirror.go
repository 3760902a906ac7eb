// Package remote mirrors content-addressable blobs to an S3-compatible
// bucket through explicit Push, Pull and Has calls. It is not hooked into
// cas.Store: a local put does not upload, and a local miss does not fall
// back to the mirror. Adapted from the S3/MinIO client construction pattern
// used for artifact sync.
package remote

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"forge.evalgo.org/bldrerr"
)

// Config describes the S3-compatible endpoint backing the mirror.
type Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	// PathStyle forces path-style addressing, needed for MinIO/Hetzner-style
	// endpoints rather than virtual-hosted-style AWS buckets.
	PathStyle bool
}

// s3Client is the slice of the S3 SDK client Mirror actually calls,
// abstracted so tests can inject a mock instead of a live endpoint.
// Mirrors the teacher's storage.S3Client dependency-injection interface.
type s3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// Mirror is an optional remote shadow of a cas.Store.
type Mirror struct {
	client s3Client
	bucket string
}

// New connects a Mirror using static credentials and a custom endpoint
// resolver, mirroring the teacher's MinIO/Hetzner client setup.
func New(ctx context.Context, cfg Config) (*Mirror, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		awsconfig.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL:               cfg.Endpoint,
					SigningRegion:     region,
					HostnameImmutable: true,
				}, nil
			})),
	)
	if err != nil {
		return nil, bldrerr.Wrap(bldrerr.KindConfig, err, "loading S3 mirror configuration")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
	})

	return &Mirror{client: client, bucket: cfg.Bucket}, nil
}

// key maps a content hash onto the same <2hex>/<rest> layout used locally,
// so the bucket mirrors the local CAS shard structure.
func key(hash string) string {
	if len(hash) < 2 {
		return "blobs/_short/" + hash
	}
	return "blobs/" + hash[:2] + "/" + hash[2:]
}

// Push uploads b under hash to the mirror. Errors here are Network-kind:
// the mirror is best-effort and must never block a build on its own.
func (m *Mirror) Push(ctx context.Context, hash string, b []byte) error {
	_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key(hash)),
		Body:   bytes.NewReader(b),
	})
	if err != nil {
		return bldrerr.Wrap(bldrerr.KindNetwork, err, "pushing blob to remote mirror")
	}
	return nil
}

// Pull fetches the blob for hash from the mirror. A missing blob is
// reported as a Network-kind error.
func (m *Mirror) Pull(ctx context.Context, hash string) ([]byte, error) {
	result, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key(hash)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, bldrerr.New(bldrerr.KindNetwork, "blob not present in remote mirror")
		}
		return nil, bldrerr.Wrap(bldrerr.KindNetwork, err, "pulling blob from remote mirror")
	}
	defer result.Body.Close()

	b, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, bldrerr.Wrap(bldrerr.KindNetwork, err, "reading remote mirror response")
	}
	return b, nil
}

// Has checks for hash's presence in the mirror without downloading it.
func (m *Mirror) Has(ctx context.Context, hash string) bool {
	_, err := m.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key(hash)),
	})
	return err == nil
}
