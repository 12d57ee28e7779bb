// Package writer archives each run's price observations as parquet files
// in S3, partitioned by date.
package writer

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	pqwriter "github.com/xitongsys/parquet-go/writer"

	appconfig "auctionflow/config"
	"auctionflow/logger"
	"auctionflow/models"
)

// ObservationRow is the parquet layout of one price observation.
type ObservationRow struct {
	RunID      string `parquet:"name=run_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Realm      string `parquet:"name=realm, type=BYTE_ARRAY, convertedtype=UTF8"`
	ItemID     int64  `parquet:"name=item_id, type=INT64"`
	Variant    string `parquet:"name=variant, type=BYTE_ARRAY, convertedtype=UTF8"`
	MinBuyout  int64  `parquet:"name=min_buyout, type=INT64"`
	ObservedAt int64  `parquet:"name=observed_at, type=INT64"`
}

// memoryFileWriter implements ParquetFile for in-memory writing.
type memoryFileWriter struct {
	buffer *bytes.Buffer
}

func newMemoryFileWriter() *memoryFileWriter {
	return &memoryFileWriter{buffer: &bytes.Buffer{}}
}

func (mfw *memoryFileWriter) Create(name string) (source.ParquetFile, error) { return mfw, nil }
func (mfw *memoryFileWriter) Open(name string) (source.ParquetFile, error)  { return mfw, nil }

func (mfw *memoryFileWriter) Seek(offset int64, whence int) (int64, error) {
	// Write-only use; seeking is never exercised.
	return int64(mfw.buffer.Len()), nil
}

func (mfw *memoryFileWriter) Read(b []byte) (int, error)  { return mfw.buffer.Read(b) }
func (mfw *memoryFileWriter) Write(b []byte) (int, error) { return mfw.buffer.Write(b) }
func (mfw *memoryFileWriter) Close() error                { return nil }
func (mfw *memoryFileWriter) Bytes() []byte               { return mfw.buffer.Bytes() }

// ObservationArchiver uploads one parquet object per run. Archive failures
// are logged, never escalated: S3 is a cold copy of data SQLite already
// holds.
type ObservationArchiver struct {
	cfg      appconfig.S3Config
	version  string
	s3Client *s3.Client
	log      *logger.Entry
}

// NewObservationArchiver builds the S3 client from the storage config.
// Returns nil (disabled) when the archive is turned off.
func NewObservationArchiver(ctx context.Context, cfg appconfig.S3Config, version string, log *logger.Log) (*ObservationArchiver, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS configuration: %w", err)
	}
	creds, err := awsConfig.Credentials.Retrieve(ctx)
	if err != nil || !creds.HasKeys() {
		return nil, fmt.Errorf("aws credentials not found")
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	entry := log.WithComponent("archive")
	entry.WithFields(logger.Fields{
		"bucket":     cfg.Bucket,
		"region":     cfg.Region,
		"endpoint":   cfg.Endpoint,
		"path_style": cfg.PathStyle,
	}).Info("observation archiver initialized")

	return &ObservationArchiver{cfg: cfg, version: version, s3Client: s3Client, log: entry}, nil
}

// Archive writes one run's observations to
// <prefix>/observations/date=YYYY-MM-DD/run-<id>.parquet.
func (a *ObservationArchiver) Archive(ctx context.Context, runID string, observations []models.PriceObservation, runAt time.Time) error {
	if len(observations) == 0 {
		return nil
	}

	log := a.log.WithRun(runID).WithFields(logger.Fields{"observations": len(observations)})

	data, err := a.createParquetFile(observations)
	if err != nil {
		return fmt.Errorf("create parquet file: %w", err)
	}

	key := a.objectKey(runID, runAt)
	if err := a.upload(ctx, key, data); err != nil {
		return err
	}

	logger.IncrementArchiveWrite()
	log.WithFields(logger.Fields{"s3_key": key, "file_size": len(data)}).Info("run observations archived")
	return nil
}

func (a *ObservationArchiver) objectKey(runID string, runAt time.Time) string {
	key := path.Join(
		"observations",
		fmt.Sprintf("date=%s", runAt.UTC().Format("2006-01-02")),
		fmt.Sprintf("run-%s.parquet", runID),
	)
	if a.cfg.Prefix != "" {
		key = path.Join(a.cfg.Prefix, key)
	}
	return key
}

func (a *ObservationArchiver) createParquetFile(observations []models.PriceObservation) ([]byte, error) {
	fw := newMemoryFileWriter()
	pw, err := pqwriter.NewParquetWriter(fw, new(ObservationRow), 4)
	if err != nil {
		return nil, fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, obs := range observations {
		row := ObservationRow{
			RunID:      obs.RunID,
			Realm:      obs.Realm,
			ItemID:     obs.ItemID,
			Variant:    obs.Variant,
			MinBuyout:  obs.MinBuyout,
			ObservedAt: obs.ObservedAt.UnixMilli(),
		}
		if err := pw.Write(row); err != nil {
			pw.WriteStop()
			return nil, fmt.Errorf("write parquet row: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("finalize parquet file: %w", err)
	}
	return fw.Bytes(), nil
}

func (a *ObservationArchiver) upload(ctx context.Context, key string, data []byte) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(a.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
		Metadata: map[string]string{
			"content-type":        "parquet",
			"auctionflow-version": a.version,
		},
	}
	if _, err := a.s3Client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("upload to S3 bucket %s: %w", a.cfg.Bucket, err)
	}
	return nil
}
