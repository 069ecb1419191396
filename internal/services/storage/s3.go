package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

var sseAlgorithm = "AES256"

// S3Store is a Store backed by an S3 bucket. Locators look like
// s3://<region>/<bucket>/<key>.
type S3Store struct {
	s3     s3iface.S3API
	region string
	bucket string
	prefix string
}

// NewS3Store opens a session for region and returns a store for bucket
func NewS3Store(region, bucket, prefix string) (*S3Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("storage: s3 bucket is required")
	}
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, fmt.Errorf("creating aws session: %w", err)
	}
	return NewS3StoreWithClient(s3.New(sess), region, bucket, prefix), nil
}

// NewS3StoreWithClient wraps an existing client
func NewS3StoreWithClient(client s3iface.S3API, region, bucket, prefix string) *S3Store {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &S3Store{s3: client, region: region, bucket: bucket, prefix: prefix}
}

// IDFromKey returns the locator a key is stored under
func (s *S3Store) IDFromKey(key string) string {
	return fmt.Sprintf("s3://%s/%s/%s%s", s.region, s.bucket, s.prefix, key)
}

func (s *S3Store) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	path := s.prefix + key
	_, err := s.s3.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:               &s.bucket,
		Key:                  &path,
		Body:                 bytes.NewReader(data),
		ContentLength:        aws.Int64(int64(len(data))),
		ContentType:          &contentType,
		ServerSideEncryption: &sseAlgorithm,
	})
	if err != nil {
		return "", fmt.Errorf("s3 put %s: %w", path, err)
	}
	return s.IDFromKey(key), nil
}

func (s *S3Store) Get(ctx context.Context, locator string) ([]byte, error) {
	_, bkt, key, err := parseS3Locator(locator)
	if err != nil {
		return nil, err
	}
	obj, err := s.s3.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: &bkt,
		Key:    &key,
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNoObject
		}
		return nil, fmt.Errorf("s3 get %s: %w", key, err)
	}
	defer obj.Body.Close()

	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 read %s: %w", key, err)
	}
	return data, nil
}

func (s *S3Store) Delete(ctx context.Context, locator string) error {
	_, bkt, key, err := parseS3Locator(locator)
	if err != nil {
		return err
	}
	_, err = s.s3.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: &bkt,
		Key:    &key,
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("s3 delete %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) Exists(ctx context.Context, locator string) (bool, error) {
	_, bkt, key, err := parseS3Locator(locator)
	if err != nil {
		return false, err
	}
	_, err = s.s3.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: &bkt,
		Key:    &key,
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("s3 head %s: %w", key, err)
	}
	return true, nil
}

func parseS3Locator(locator string) (region, bucket, key string, err error) {
	u, err := url.Parse(locator)
	if err != nil {
		return "", "", "", err
	}
	if u.Scheme != "s3" {
		return "", "", "", fmt.Errorf("%w: %s", ErrUnsupportedLocator, locator)
	}
	p := strings.SplitN(u.Path, "/", 3)
	if len(p) < 3 || p[1] == "" || p[2] == "" {
		return "", "", "", fmt.Errorf("storage: bad S3 path %s", u.Path)
	}
	return u.Host, p[1], p[2], nil
}

func isNotFound(err error) bool {
	if rf, ok := err.(awserr.RequestFailure); ok {
		return rf.StatusCode() == http.StatusNotFound
	}
	if ae, ok := err.(awserr.Error); ok {
		return ae.Code() == s3.ErrCodeNoSuchKey || ae.Code() == "NotFound"
	}
	return false
}
