// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package storage issues presigned S3 uploads for infographic images.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"codeberg.org/oliverandrich/infographic-api/internal/apierror"
	"codeberg.org/oliverandrich/infographic-api/internal/config"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// UploadTTL is how long a presigned upload URL stays valid.
const UploadTTL = 15 * time.Minute

// ErrUnsupportedType is returned for content types other than images.
var ErrUnsupportedType = apierror.BadRequest("Not an image! Please upload only JPEG, PNG or GIF images.")

var imageTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
}

// Upload describes a presigned PUT the client performs itself.
type Upload struct {
	Method      string    `json:"method"`
	UploadURL   string    `json:"uploadUrl"`
	Key         string    `json:"key"`
	FileURL     string    `json:"fileUrl"`
	ContentType string    `json:"contentType"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

type Service struct {
	presign *s3.PresignClient
	cfg     *config.StorageConfig
	now     func() time.Time
}

// NewService builds a presign client with static credentials. A custom
// endpoint (MinIO and friends) switches to path-style addressing.
func NewService(ctx context.Context, cfg *config.StorageConfig) (*Service, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Service{
		presign: s3.NewPresignClient(client),
		cfg:     cfg,
		now:     time.Now,
	}, nil
}

// PresignImageUpload returns a PUT URL for one image owned by userID.
func (s *Service) PresignImageUpload(ctx context.Context, userID, contentType string) (*Upload, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	ext, ok := imageTypes[contentType]
	if !ok {
		return nil, ErrUnsupportedType
	}

	now := s.now().UTC()
	key := fmt.Sprintf("infographics/%s/%d/%02d/%s.%s", userID, now.Year(), now.Month(), uuid.NewString(), ext)

	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(UploadTTL))
	if err != nil {
		return nil, fmt.Errorf("presigning upload: %w", err)
	}

	return &Upload{
		Method:      req.Method,
		UploadURL:   req.URL,
		Key:         key,
		FileURL:     s.objectURL(key),
		ContentType: contentType,
		ExpiresAt:   now.Add(UploadTTL),
	}, nil
}

func (s *Service) objectURL(key string) string {
	if s.cfg.Endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(s.cfg.Endpoint, "/"), s.cfg.Bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, key)
}
