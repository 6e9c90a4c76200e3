package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client used to read catalog files.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Source reads catalog documents from local paths or s3://bucket/key URLs.
type Source struct {
	s3Client S3API
}

// NewSource creates a Source. A nil client disables s3:// locations.
func NewSource(s3Client S3API) *Source {
	return &Source{s3Client: s3Client}
}

// Open returns a reader for location.
func (s *Source) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	if bucket, key, ok := parseS3URL(location); ok {
		if s.s3Client == nil {
			return nil, errors.New("catalog: s3 location given but no s3 client configured")
		}
		out, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return nil, fmt.Errorf("catalog: s3 get %s: %w", location, err)
		}
		return out.Body, nil
	}

	f, err := os.Open(location)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", location, err)
	}
	return f, nil
}

// LoadProducts decodes a JSON array of products.
func (s *Source) LoadProducts(ctx context.Context, location string) ([]Product, error) {
	var products []Product
	if err := s.decode(ctx, location, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// LoadPersonas decodes a JSON array of user personas.
func (s *Source) LoadPersonas(ctx context.Context, location string) ([]Persona, error) {
	var personas []Persona
	if err := s.decode(ctx, location, &personas); err != nil {
		return nil, err
	}
	return personas, nil
}

func (s *Source) decode(ctx context.Context, location string, v any) error {
	rc, err := s.Open(ctx, location)
	if err != nil {
		return err
	}
	defer rc.Close()
	if err := json.NewDecoder(rc).Decode(v); err != nil {
		return fmt.Errorf("catalog: decode %s: %w", location, err)
	}
	return nil
}

func parseS3URL(location string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(location, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}
