package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// SpacesService resolves fumo artwork stored in a DigitalOcean Spaces
// bucket (S3 compatible).
type SpacesService struct {
	client   *s3.Client
	bucket   string
	region   string
	fumoRoot string
}

func NewSpacesService(spacesKey, spacesSecret, region, bucket, fumoRoot string) (*SpacesService, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL: fmt.Sprintf("https://%s.digitaloceanspaces.com", region),
		}, nil
	})

	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithEndpointResolverWithOptions(resolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(spacesKey, spacesSecret, "")),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load spaces config: %w", err)
	}

	return &SpacesService{
		client:   s3.NewFromConfig(cfg),
		bucket:   bucket,
		region:   region,
		fumoRoot: strings.Trim(fumoRoot, "/"),
	}, nil
}

// ImageURL builds the public URL for a fumo image key.
func (s *SpacesService) ImageURL(imageKey string) string {
	key := strings.TrimPrefix(imageKey, "/")
	if s.fumoRoot != "" {
		key = s.fumoRoot + "/" + key
	}
	return fmt.Sprintf("https://%s.%s.digitaloceanspaces.com/%s", s.bucket, s.region, key)
}

// ImageExists checks whether the image object is actually in the bucket,
// so embeds can skip broken thumbnails.
func (s *SpacesService) ImageExists(ctx context.Context, imageKey string) bool {
	key := strings.TrimPrefix(imageKey, "/")
	if s.fumoRoot != "" {
		key = s.fumoRoot + "/" + key
	}
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	return err == nil
}

func (s *SpacesService) GetBucket() string {
	return s.bucket
}

func (s *SpacesService) GetRegion() string {
	return s.region
}
