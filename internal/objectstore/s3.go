// Package objectstore удаляет пользовательские изображения из
// S3-совместимого хранилища: по префиксу ключа и по публичной ссылке.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/magabrotheeeer/journal-accounts/internal/config"
	"github.com/magabrotheeeer/journal-accounts/internal/lib/sl"
)

// deleteChunk — максимальное число ключей в одном DeleteObjects.
const deleteChunk = 1000

// ErrNotManaged возвращается для ссылок, не принадлежащих бакету сервиса.
var ErrNotManaged = errors.New("url is not managed by object store")

var urlPattern = regexp.MustCompile(`https?://[^\s"'<>()\]]+`)

// API — подмножество клиента S3, используемое хранилищем.
type API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Store удаляет объекты одного бакета.
type Store struct {
	client        API
	bucket        string
	publicBaseURL string
	log           *slog.Logger
}

// New создаёт клиент S3 по настройкам и возвращает Store.
func New(ctx context.Context, cfg config.ObjectStorage, log *slog.Logger) (*Store, error) {
	const op = "objectstore.New"

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewWithClient(client, cfg.Bucket, cfg.PublicBaseURL, log), nil
}

// NewWithClient собирает Store поверх готового клиента.
func NewWithClient(client API, bucket, publicBaseURL string, log *slog.Logger) *Store {
	return &Store{
		client:        client,
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		log:           log,
	}
}

// DeleteByPrefix удаляет все объекты с ключами, начинающимися с prefix.
// Возвращает число удалённых объектов. Пустой префикс не удаляет ничего.
func (s *Store) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	const op = "objectstore.DeleteByPrefix"
	log := s.log.With(slog.String("op", op), slog.String("prefix", prefix))

	if prefix == "" {
		return 0, fmt.Errorf("%s: empty prefix", op)
	}

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	var toDelete []types.ObjectIdentifier
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, fmt.Errorf("%s: list: %w", op, err)
		}
		for _, obj := range page.Contents {
			toDelete = append(toDelete, types.ObjectIdentifier{Key: obj.Key})
		}
	}

	deleted := 0
	for start := 0; start < len(toDelete); start += deleteChunk {
		end := min(start+deleteChunk, len(toDelete))
		out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: toDelete[start:end], Quiet: aws.Bool(true)},
		})
		if err != nil {
			return deleted, fmt.Errorf("%s: delete: %w", op, err)
		}
		if len(out.Errors) > 0 {
			first := out.Errors[0]
			log.Warn("some objects were not deleted", slog.Int("failed", len(out.Errors)))
			deleted += end - start - len(out.Errors)
			return deleted, fmt.Errorf("%s: %d objects not deleted, first %s: %s",
				op, len(out.Errors), aws.ToString(first.Key), aws.ToString(first.Message))
		}
		deleted += end - start
	}

	log.Debug("objects deleted", slog.Int("count", deleted))
	return deleted, nil
}

// DeleteByURL удаляет объект по публичной ссылке. Отсутствие объекта
// ошибкой не считается.
func (s *Store) DeleteByURL(ctx context.Context, rawURL string) error {
	const op = "objectstore.DeleteByURL"

	key, err := s.KeyFromURL(rawURL)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NoSuchKey" || apiErr.ErrorCode() == "NotFound") {
			s.log.Debug("object already absent", slog.String("op", op), slog.String("key", key), sl.Err(err))
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// KeyFromURL возвращает ключ объекта по публичной ссылке.
func (s *Store) KeyFromURL(rawURL string) (string, error) {
	if s.publicBaseURL == "" || !strings.HasPrefix(rawURL, s.publicBaseURL+"/") {
		return "", ErrNotManaged
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNotManaged, err)
	}
	base, err := url.Parse(s.publicBaseURL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNotManaged, err)
	}
	key := strings.TrimPrefix(u.Path, strings.TrimRight(base.Path, "/")+"/")
	// ключи с ".", ".." и пустыми сегментами не принимаются
	if key == "" || path.Clean(key) != key {
		return "", ErrNotManaged
	}
	return key, nil
}

// ManagedURLs извлекает из текстов ссылки на объекты бакета без повторов.
// Возвращаются только ссылки, ключ которых лежит под одним из префиксов
// owned; ссылки на чужие объекты пропускаются.
func (s *Store) ManagedURLs(owned []string, texts ...string) []string {
	seen := make(map[string]struct{})
	var result []string
	for _, text := range texts {
		for _, candidate := range urlPattern.FindAllString(text, -1) {
			if _, ok := seen[candidate]; ok {
				continue
			}
			seen[candidate] = struct{}{}
			key, err := s.KeyFromURL(candidate)
			if err != nil || !hasAnyPrefix(key, owned) {
				continue
			}
			result = append(result, candidate)
		}
	}
	return result
}

func hasAnyPrefix(key string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}
