package sink

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/sirupsen/logrus"
)

type S3Config struct {
	Bucket        string
	Region        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
}

// S3Sink uploads to a bucket under a date-prefixed key. Unlike the HTTP
// sink there is no response shape to normalize; the public URL is
// deterministic.
type S3Sink struct {
	uploader *s3manager.Uploader
	cfg      S3Config
	log      *logrus.Entry
	now      func() time.Time
}

func NewS3Sink(logger *logrus.Logger, cfg S3Config) *S3Sink {
	awsConfig := &aws.Config{
		Region:           aws.String(cfg.Region),
		Credentials:      credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""),
		S3ForcePathStyle: aws.Bool(true),
	}
	if cfg.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.Endpoint)
	}

	sess := session.Must(session.NewSession(awsConfig))

	return &S3Sink{
		uploader: s3manager.NewUploader(sess),
		cfg:      cfg,
		log:      logger.WithField("component", "s3_sink"),
		now:      time.Now,
	}
}

func (s *S3Sink) Upload(ctx context.Context, req UploadRequest) (*Result, error) {
	key := fmt.Sprintf("%s/%s", s.now().Format("2006/01/02"), req.FileName)

	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(req.Data),
		ContentType: aws.String(req.MIMEType),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 upload failed: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"key":  key,
		"size": len(req.Data),
	}).Info("Object stored")

	return &Result{
		Link: &ExtractedLink{
			URL:      s.publicURL(key),
			FileName: req.FileName,
			FileSize: int64(len(req.Data)),
		},
	}, nil
}

func (s *S3Sink) publicURL(key string) string {
	if s.cfg.PublicBaseURL != "" {
		return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + key
	}
	if s.cfg.Endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.cfg.Endpoint, "/"), s.cfg.Bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, key)
}
