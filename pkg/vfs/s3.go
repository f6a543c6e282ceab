package vfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of the S3 client the provider uses.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Provider serves s3:// URIs.
type S3Provider struct {
	client S3API
}

// NewS3Provider wraps an S3 client.
func NewS3Provider(client S3API) *S3Provider {
	return &S3Provider{client: client}
}

// ReadFile implements FileProvider.
func (p *S3Provider) ReadFile(ctx context.Context, uri string) ([]byte, error) {
	bucket, key := SplitBucketKey(StripScheme(uri))
	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 read %s: %w", uri, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// FileExists implements FileProvider.
func (p *S3Provider) FileExists(ctx context.Context, uri string) (bool, error) {
	bucket, key := SplitBucketKey(StripScheme(uri))
	_, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("s3 head %s: %w", uri, err)
	}
	return true, nil
}

// ListFiles implements FileProvider.
func (p *S3Provider) ListFiles(ctx context.Context, dir, pattern string) ([]string, error) {
	bucket, prefix := SplitBucketKey(StripScheme(dir))
	var out []string
	var token *string
	for {
		page, err := p.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 list %s: %w", dir, err)
		}
		for _, obj := range page.Contents {
			name := path.Base(aws.ToString(obj.Key))
			ok, err := path.Match(pattern, name)
			if err != nil {
				return nil, fmt.Errorf("invalid glob %s: %w", pattern, err)
			}
			if ok {
				out = append(out, "s3://"+bucket+"/"+aws.ToString(obj.Key))
			}
		}
		if page.NextContinuationToken == nil {
			return out, nil
		}
		token = page.NextContinuationToken
	}
}
