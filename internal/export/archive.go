package export

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"xfive/internal/config"
	"xfive/internal/tournament"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ObjectPutter is the part of the S3 client used by Archiver.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archiver uploads standings workbooks to S3-compatible storage.
type Archiver struct {
	client ObjectPutter
	bucket string
	prefix string
	games  int
	now    func() time.Time
}

// NewArchiver builds an S3 client from cfg. Static credentials and a custom endpoint (R2, MinIO)
// are used when set; otherwise the default AWS credential chain applies.
func NewArchiver(ctx context.Context, cfg config.ArchiveConfig, games int) (*Archiver, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load archive config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewArchiverWithClient(client, cfg.Bucket, cfg.Prefix, games), nil
}

// NewArchiverWithClient creates an archiver over an existing client.
func NewArchiverWithClient(client ObjectPutter, bucket, prefix string, games int) *Archiver {
	return &Archiver{
		client: client,
		bucket: bucket,
		prefix: prefix,
		games:  games,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Archive uploads the standings of snap and returns the object key.
func (a *Archiver) Archive(ctx context.Context, snap tournament.Snapshot) (string, error) {
	buf := new(bytes.Buffer)
	if err := WriteStandings(buf, snap, a.games); err != nil {
		return "", err
	}
	key := fmt.Sprintf("%s%s-%s.xlsx", a.prefix, a.now().Format("20060102T150405Z"), snap.State.Stage)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String(xlsxContentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return key, nil
}
