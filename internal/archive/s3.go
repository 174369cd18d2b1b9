package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/LJTian/NewsHub/internal/logger"
	"github.com/LJTian/NewsHub/internal/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// Config S3 兼容存储（AWS S3 / Cloudflare R2 / MinIO）
type Config struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// PutObjectAPI 归档只需要 PutObject，便于测试替换
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver 把待清理文章写成一个 JSON Lines 对象
type S3Archiver struct {
	client PutObjectAPI
	bucket string
	prefix string
	now    func() time.Time
	log    zerolog.Logger
}

func NewS3(ctx context.Context, cfg Config) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("archive bucket is required")
	}
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3WithClient(client, cfg.Bucket, cfg.Prefix), nil
}

func NewS3WithClient(client PutObjectAPI, bucket, prefix string) *S3Archiver {
	return &S3Archiver{
		client: client,
		bucket: bucket,
		prefix: prefix,
		now:    time.Now,
		log:    logger.Component("archive"),
	}
}

func (a *S3Archiver) Archive(ctx context.Context, articles []storage.Article) error {
	if len(articles) == 0 {
		return nil
	}
	body, err := encodeJSONL(articles)
	if err != nil {
		return err
	}
	key := a.key(a.now().UTC())
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	a.log.Info().Str("key", key).Int("articles", len(articles)).Msg("articles archived")
	return nil
}

// key 形如 prefix/2026/10/19/20261019T000000Z.jsonl
func (a *S3Archiver) key(t time.Time) string {
	return path.Join(a.prefix, t.Format("2006/01/02"), t.Format("20060102T150405Z")+".jsonl")
}

func encodeJSONL(articles []storage.Article) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range articles {
		if err := enc.Encode(&articles[i]); err != nil {
			return nil, fmt.Errorf("encode article %s: %w", articles[i].ID, err)
		}
	}
	return buf.Bytes(), nil
}
