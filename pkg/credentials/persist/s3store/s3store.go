// Package s3store persists the credential table as a single S3 object.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/marmos91/dittosh/pkg/credentials"
)

// DefaultKey is the object key used when Config.Key is empty.
const DefaultKey = "dittosh/users.json"

// Config holds bucket and client settings.
type Config struct {
	Bucket string `mapstructure:"bucket" yaml:"bucket" json:"bucket"`
	Key    string `mapstructure:"key" yaml:"key" json:"key"`

	// Region is optional; the SDK default chain applies when empty.
	Region string `mapstructure:"region" yaml:"region" json:"region"`

	// Endpoint targets S3-compatible services (MinIO, Localstack).
	Endpoint       string `mapstructure:"endpoint" yaml:"endpoint" json:"endpoint"`
	ForcePathStyle bool   `mapstructure:"force_path_style" yaml:"force_path_style" json:"force_path_style"`

	// Static keys; leave empty to use the default credential chain.
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id" json:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key" json:"secret_access_key"`
}

// API is the subset of *s3.Client the persister needs.
type API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Persister implements credentials.Persister on S3.
type Persister struct {
	client API
	bucket string
	key    string
}

var _ credentials.Persister = (*Persister)(nil)

// New wraps an existing client.
func New(client API, cfg Config) (*Persister, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3store: bucket is required")
	}
	if cfg.Key == "" {
		cfg.Key = DefaultKey
	}
	return &Persister{client: client, bucket: cfg.Bucket, key: cfg.Key}, nil
}

// NewFromConfig builds an S3 client from cfg and the default AWS chain.
func NewFromConfig(ctx context.Context, cfg Config) (*Persister, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			awscreds.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3store: load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})
	return New(client, cfg)
}

// Load fetches and decodes the object. A missing object is an empty table.
func (p *Persister) Load(ctx context.Context) (map[string]*credentials.Credential, error) {
	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(p.key),
	})
	if err != nil {
		if isNotFound(err) {
			return map[string]*credentials.Credential{}, nil
		}
		return nil, fmt.Errorf("s3store: get s3://%s/%s: %w", p.bucket, p.key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3store: read body: %w", err)
	}
	return credentials.UnmarshalTable(data)
}

// Save uploads the whole table.
func (p *Persister) Save(ctx context.Context, creds map[string]*credentials.Credential) error {
	data, err := credentials.MarshalTable(creds)
	if err != nil {
		return err
	}
	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(p.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3store: put s3://%s/%s: %w", p.bucket, p.key, err)
	}
	return nil
}

// Close is a no-op; the SDK client holds no resources needing release.
func (p *Persister) Close() error { return nil }

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "NoSuchKey") || strings.Contains(msg, "StatusCode: 404")
}
