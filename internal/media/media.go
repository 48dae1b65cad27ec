// Package media issues presigned S3 upload URLs for dish images and video
// files.
package media

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/atinyakov/tavola/internal/common"
	"github.com/atinyakov/tavola/internal/config"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Upload describes where a client should PUT a file and where it will be
// served from afterwards.
type Upload struct {
	Key         string    `json:"key"`
	Method      string    `json:"method"`
	UploadURL   string    `json:"uploadUrl"`
	PublicURL   string    `json:"publicUrl"`
	ContentType string    `json:"contentType"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Presigner signs PUT requests against one bucket.
type Presigner struct {
	client    *s3.PresignClient
	bucket    string
	publicURL string
	ttl       time.Duration
	now       func() time.Time
}

// NewPresigner builds an S3 presign client from opts. Static credentials are
// used when both keys are set, the default AWS chain otherwise.
func NewPresigner(ctx context.Context, opts config.MediaOptions) (*Presigner, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(opts.Region)}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	publicURL := strings.TrimRight(opts.PublicURL, "/")
	if publicURL == "" {
		if opts.Endpoint != "" {
			publicURL = strings.TrimRight(opts.Endpoint, "/") + "/" + opts.Bucket
		} else {
			publicURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", opts.Bucket, opts.Region)
		}
	}

	ttl := opts.UploadTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &Presigner{
		client:    s3.NewPresignClient(client),
		bucket:    opts.Bucket,
		publicURL: publicURL,
		ttl:       ttl,
		now:       time.Now,
	}, nil
}

// PresignUpload returns a presigned PUT for a new object named after
// filename. Only image and video content types are accepted.
func (p *Presigner) PresignUpload(ctx context.Context, filename, contentType string) (*Upload, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if !strings.HasPrefix(contentType, "image/") && !strings.HasPrefix(contentType, "video/") {
		return nil, &common.RequestError{Reason: "contentType must be an image or video type"}
	}

	key := objectKey(p.now(), filename, uuid.NewString())
	req, err := p.client.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(p.ttl))
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}

	return &Upload{
		Key:         key,
		Method:      req.Method,
		UploadURL:   req.URL,
		PublicURL:   p.publicURL + "/" + key,
		ContentType: contentType,
		ExpiresAt:   p.now().Add(p.ttl).UTC(),
	}, nil
}

// objectKey builds uploads/<yyyy>/<mm>/<id><ext>, keeping the extension of
// filename only when it is short and alphanumeric.
func objectKey(now time.Time, filename, id string) string {
	ext := strings.ToLower(path.Ext(strings.ReplaceAll(filename, "\\", "/")))
	if !validExt(ext) {
		ext = ""
	}
	return fmt.Sprintf("uploads/%04d/%02d/%s%s", now.Year(), int(now.Month()), id, ext)
}

func validExt(ext string) bool {
	if len(ext) < 2 || len(ext) > 8 {
		return false
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
