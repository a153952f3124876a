package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type s3API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 keeps uploads in a bucket under "<user_id>/".
type S3 struct {
	client s3API
	bucket string
	now    func() time.Time
}

// NewS3 creates a bucket-backed source using the default AWS credential chain.
func NewS3(ctx context.Context, bucket, region string) (*S3, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is not set")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config for S3: %w", err)
	}
	return newS3WithClient(s3.NewFromConfig(cfg), bucket), nil
}

func newS3WithClient(client s3API, bucket string) *S3 {
	return &S3{client: client, bucket: bucket, now: time.Now}
}

// Latest returns the most recently modified object under the user's prefix.
func (s *S3) Latest(ctx context.Context, userID string) (*Object, error) {
	if err := validateUser(userID); err != nil {
		return nil, err
	}
	prefix := userID + "/"

	objects, err := s.list(ctx, prefix)
	if err != nil {
		// Some S3-compatible stores reject prefixed listings; scan everything instead.
		slog.Warn("prefixed listing failed, scanning bucket", "bucket", s.bucket, "prefix", prefix, "error", err)
		all, allErr := s.list(ctx, "")
		if allErr != nil {
			return nil, fmt.Errorf("list bucket %s: %w", s.bucket, allErr)
		}
		objects = nil
		for _, o := range all {
			if strings.HasPrefix(aws.ToString(o.Key), prefix) {
				objects = append(objects, o)
			}
		}
	}

	var latest *s3types.Object
	for i := range objects {
		o := &objects[i]
		if strings.HasSuffix(aws.ToString(o.Key), "/") {
			continue
		}
		if latest == nil || aws.ToTime(o.LastModified).After(aws.ToTime(latest.LastModified)) {
			latest = o
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("%w for user %s", ErrNotFound, userID)
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    latest.Key,
	})
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", aws.ToString(latest.Key), err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", aws.ToString(latest.Key), err)
	}
	contentType := aws.ToString(out.ContentType)
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return &Object{
		Key:         aws.ToString(latest.Key),
		Data:        data,
		ContentType: contentType,
		ModifiedAt:  aws.ToTime(latest.LastModified),
	}, nil
}

func (s *S3) list(ctx context.Context, prefix string) ([]s3types.Object, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket)}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	var objects []s3types.Object
	p := s3.NewListObjectsV2Paginator(s.client, input)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		objects = append(objects, page.Contents...)
	}
	return objects, nil
}

// Put uploads data and returns its key.
func (s *S3) Put(ctx context.Context, userID, contentType string, data []byte) (string, error) {
	if err := validateUser(userID); err != nil {
		return "", err
	}
	key := ObjectKey(userID, contentType, s.now())
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload to S3: %w", err)
	}
	return key, nil
}
