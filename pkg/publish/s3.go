package publish

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/moumouls/aero-4g-cam/pkg/redactor"
	"github.com/pkg/errors"
)

// S3Config addresses an S3-compatible bucket such as Cloudflare R2.
type S3Config struct {
	Endpoint        string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey redactor.String
	Region          string // "auto" when empty
}

// S3Store is an ObjectStore backed by the AWS SDK S3 client.
type S3Store struct {
	client   *s3.Client
	bucket   string
	endpoint string
}

// NewS3Store creates a path-style client for cfg.Endpoint with static credentials.
func NewS3Store(cfg S3Config) *S3Store {
	region := cfg.Region
	if region == "" {
		region = "auto"
	}
	client := s3.New(s3.Options{
		Region:       region,
		BaseEndpoint: aws.String(cfg.Endpoint),
		UsePathStyle: true,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey.Reveal(), ""),
	})
	return &S3Store{
		client:   client,
		bucket:   cfg.Bucket,
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
	}
}

// Put uploads body under key.
func (s *S3Store) Put(ctx context.Context, key string, body []byte, contentType, cacheControl string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(contentType),
		CacheControl:  aws.String(cacheControl),
	})
	if err != nil {
		return "", errors.Wrapf(err, "put s3://%s/%s", s.bucket, key)
	}
	return s.URL(key), nil
}

// URL is <endpoint>/<bucket>/<key>.
func (s *S3Store) URL(key string) string {
	return s.endpoint + "/" + url.PathEscape(s.bucket) + "/" + key
}
