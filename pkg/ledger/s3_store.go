package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3LedgerStore persists a full ledger snapshot as a single JSON object in
// S3, at bucket/key. It offers the same round-trip seam as
// Ledger.SaveToFile/LoadFromFile, so a deployment can point LEDGER_BACKEND
// at S3 without changing anything above this layer.
type S3LedgerStore struct {
	client *s3.Client
	bucket string
	key    string
}

// S3LedgerStoreConfig configures an S3LedgerStore.
type S3LedgerStoreConfig struct {
	Bucket   string
	Key      string
	Region   string
	Endpoint string // optional custom endpoint (MinIO, LocalStack)
}

// NewS3LedgerStore builds an S3LedgerStore from cfg, loading AWS
// credentials the standard SDK way (environment, shared config, IAM role).
func NewS3LedgerStore(ctx context.Context, cfg S3LedgerStoreConfig) (*S3LedgerStore, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	key := cfg.Key
	if key == "" {
		key = "ledger.json"
	}

	return &S3LedgerStore{client: client, bucket: cfg.Bucket, key: key}, nil
}

// Save uploads the ledger's current snapshot, overwriting any prior object
// at bucket/key.
func (s *S3LedgerStore) Save(ctx context.Context, l *Ledger) error {
	l.mu.Lock()
	doc := fileFormat{CreatedAt: l.createdAt, Entries: l.entries}
	l.mu.Unlock()

	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling ledger: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(b),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3 put failed for ledger %s/%s: %w", s.bucket, s.key, err)
	}
	return nil
}

// Load downloads and decodes the ledger snapshot at bucket/key. A missing
// object is treated as an empty, freshly-created ledger rather than an
// error; LoadFromFile, by contrast, returns an error for a missing path.
func (s *S3LedgerStore) Load(ctx context.Context, now func() time.Time) (*Ledger, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return New(now()), nil
		}
		return nil, fmt.Errorf("s3 get failed for ledger %s/%s: %w", s.bucket, s.key, err)
	}
	defer func() { _ = result.Body.Close() }()

	b, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("reading ledger object body: %w", err)
	}

	var doc fileFormat
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("unmarshaling ledger object: %w", err)
	}

	entries := doc.Entries
	if entries == nil {
		entries = make([]LedgerEntry, 0)
	}
	return &Ledger{
		createdAt: doc.CreatedAt,
		entries:   entries,
		clock:     now,
		schemas:   make(map[string]PayloadValidator),
	}, nil
}
