package archive

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Backend сохраняет готовый снимок под заданным именем и возвращает
// его расположение: путь к файлу либо s3://bucket/key.
type Backend interface {
	Store(ctx context.Context, name string, data []byte) (string, error)
}

// --- local ---

// LocalBackend пишет снимки в каталог на диске
type LocalBackend struct {
	dir string
}

// NewLocalBackend создает локальный backend. Каталог создается при
// первом сохранении.
func NewLocalBackend(dir string) *LocalBackend {
	if dir == "" {
		dir = "./archive"
	}
	return &LocalBackend{dir: dir}
}

func (b *LocalBackend) Store(ctx context.Context, name string, data []byte) (string, error) {
	if err := os.MkdirAll(b.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}
	full := filepath.Join(b.dir, name)
	if err := os.WriteFile(full, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}
	return full, nil
}

// --- S3 ---

// S3Config описывает подключение к S3-совместимому хранилищу.
// Endpoint задается для on-premise хранилищ (MinIO, Ceph RGW);
// пустой Endpoint означает AWS.
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"` // пустой = цепочка провайдеров SDK
}

// S3Backend загружает снимки в бакет через multipart uploader
type S3Backend struct {
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// NewS3Backend создает S3 backend и проверяет конфигурацию
func NewS3Backend(ctx context.Context, cfg S3Config) (*S3Backend, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required for S3 backend")
	}

	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 configuration: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			// MinIO и Ceph ожидают bucket в пути, не в hostname
			o.UsePathStyle = true
		}
	})

	return &S3Backend{
		uploader: manager.NewUploader(client),
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
	}, nil
}

func (b *S3Backend) Store(ctx context.Context, name string, data []byte) (string, error) {
	key := name
	if b.prefix != "" {
		key = path.Join(b.prefix, name)
	}

	_, err := b.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload snapshot to S3: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", b.bucket, key), nil
}
