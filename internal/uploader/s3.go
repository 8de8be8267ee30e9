package uploader

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// S3Config configures the S3-compatible media bucket.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string
}

// S3Uploader stores media objects in an S3-compatible bucket.
type S3Uploader struct {
	client        *s3.Client
	bucket        string
	publicBaseURL string
}

// NewS3Uploader builds the client. A custom endpoint switches the client to
// path-style addressing for MinIO-style backends.
func NewS3Uploader(ctx context.Context, configuration S3Config) (*S3Uploader, error) {
	if strings.TrimSpace(configuration.Bucket) == "" {
		return nil, fmt.Errorf("uploader.s3.config: bucket must be provided")
	}

	loadOptions := []func(*awsconfig.LoadOptions) error{}
	if configuration.Region != "" {
		loadOptions = append(loadOptions, awsconfig.WithRegion(configuration.Region))
	}
	if configuration.AccessKeyID != "" {
		loadOptions = append(loadOptions, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(configuration.AccessKeyID, configuration.SecretAccessKey, ""),
		))
	}
	awsConfiguration, loadErr := awsconfig.LoadDefaultConfig(ctx, loadOptions...)
	if loadErr != nil {
		return nil, fmt.Errorf("uploader.s3.load_config: %w", loadErr)
	}

	client := s3.NewFromConfig(awsConfiguration, func(options *s3.Options) {
		if configuration.Endpoint != "" {
			options.BaseEndpoint = aws.String(configuration.Endpoint)
			options.UsePathStyle = true
		}
	})

	publicBaseURL := strings.TrimSuffix(configuration.PublicBaseURL, "/")
	if publicBaseURL == "" {
		if configuration.Endpoint != "" {
			publicBaseURL = strings.TrimSuffix(configuration.Endpoint, "/") + "/" + configuration.Bucket
		} else {
			publicBaseURL = fmt.Sprintf("https://%s.s3.amazonaws.com", configuration.Bucket)
		}
	}

	return &S3Uploader{
		client:        client,
		bucket:        configuration.Bucket,
		publicBaseURL: publicBaseURL,
	}, nil
}

// Upload writes the stream under a collision-free key and returns its URL.
func (store *S3Uploader) Upload(ctx context.Context, filename string, contentType string, reader io.Reader) (Asset, error) {
	key := objectKey(filename)
	_, putErr := store.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(store.bucket),
		Key:         aws.String(key),
		Body:        reader,
		ContentType: aws.String(contentType),
	})
	if putErr != nil {
		return Asset{}, fmt.Errorf("uploader.s3.put_object: %w", putErr)
	}
	return Asset{URL: store.publicBaseURL + "/" + key}, nil
}

func objectKey(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	base = strings.Map(func(character rune) rune {
		switch {
		case character >= 'a' && character <= 'z',
			character >= 'A' && character <= 'Z',
			character >= '0' && character <= '9',
			character == '.', character == '-', character == '_':
			return character
		default:
			return '-'
		}
	}, base)
	return uuid.NewString() + "-" + base
}
