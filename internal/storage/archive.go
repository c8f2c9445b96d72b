package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

type Config struct {
	Endpoint      string
	Region        string
	AccessKey     string
	SecretKey     string
	Bucket        string
	PublicBaseURL string
	UsePathStyle  bool
	Prefix        string
}

// ObjectPutter is the part of the S3 client the archive uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archive keeps a copy of every downloaded generation in a bucket, one
// folder per chat and day.
type Archive struct {
	cfg    Config
	client ObjectPutter
	now    func() time.Time
}

func NewArchive(cfg Config) (*Archive, error) {
	switch {
	case cfg.Bucket == "":
		return nil, fmt.Errorf("s3 bucket is required")
	case cfg.Region == "":
		return nil, fmt.Errorf("s3 region is required")
	case cfg.AccessKey == "" || cfg.SecretKey == "":
		return nil, fmt.Errorf("s3 credentials are required")
	}

	options := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: cfg.UsePathStyle,
	}
	if cfg.Endpoint != "" {
		options.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return newArchive(cfg, s3.New(options)), nil
}

func newArchive(cfg Config, client ObjectPutter) *Archive {
	if cfg.Prefix == "" {
		cfg.Prefix = "generations"
	}
	return &Archive{cfg: cfg, client: client, now: time.Now}
}

// Save stores data under the download filename and returns the object URL,
// or the bare key when no public base URL is configured.
func (a *Archive) Save(ctx context.Context, chatID int64, filename string, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("no data to archive")
	}
	if contentType == "" {
		contentType = "image/png"
	}

	key := a.objectKey(chatID, filename)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		ACL:         types.ObjectCannedACLPrivate,
	})
	if err != nil {
		return "", fmt.Errorf("archive to s3: %w", err)
	}
	if a.cfg.PublicBaseURL == "" {
		return key, nil
	}
	return strings.TrimRight(a.cfg.PublicBaseURL, "/") + "/" + key, nil
}

func (a *Archive) objectKey(chatID int64, filename string) string {
	now := a.now().UTC()
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "image" + extensionFromContentType("image/png")
	}
	return path.Join(
		strings.Trim(a.cfg.Prefix, "/"),
		fmt.Sprintf("%d", chatID),
		fmt.Sprintf("%04d/%02d/%02d", now.Year(), now.Month(), now.Day()),
		uuid.NewString()+"-"+name,
	)
}

func extensionFromContentType(contentType string) string {
	switch strings.ToLower(contentType) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}
