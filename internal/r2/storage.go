package r2

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"
	conf "github.com/trunov/convo/internal/config"
)

var ErrQueueFull = errors.New("upload queue is full")

type uploadReq struct {
	ctx      context.Context
	key      string
	fileType string
	payload  []byte

	onSuccess func()
	onFailure func(error)
}

// uploader is the part of manager.Uploader the pool needs.
type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type S3 struct {
	AccountID          string
	Bucket             string
	Region             string // usually "auto" for R2
	Endpoint           string
	AwsAccessKeyId     string
	AwsSecretAccessKey string

	Workers        int
	QueueSize      int
	MaxRetries     int
	RetryBaseDelay time.Duration

	queue     chan uploadReq
	wg        sync.WaitGroup
	closeOnce sync.Once

	S3Client *s3.Client
	Uploader uploader
}

func NewStorage(cfg *conf.R2Config) (*S3, error) {
	r2c := &S3{
		AccountID:          cfg.AccountID,
		Bucket:             cfg.BucketName,
		Region:             "auto",
		Endpoint:           cfg.Endpoint,
		AwsAccessKeyId:     cfg.AccessKeyID,
		AwsSecretAccessKey: cfg.SecretKey,
		Workers:            cfg.Workers,
		QueueSize:          cfg.QueueSize,
		MaxRetries:         cfg.MaxRetries,
		RetryBaseDelay:     cfg.RetryBaseDelay,
	}
	if err := r2c.Run(); err != nil {
		return nil, err
	}

	return r2c, nil
}

func (s *S3) endpoint() string {
	if s.Endpoint != "" {
		return s.Endpoint
	}
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", s.AccountID)
}

func (s *S3) Run() error {
	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.AwsAccessKeyId, s.AwsSecretAccessKey, "",
		)),
		config.WithRegion(s.Region),
	)
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}

	s.S3Client = s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.endpoint())
		o.UsePathStyle = true
	})
	s.Uploader = manager.NewUploader(s.S3Client)

	s.start()

	log.Info().Str("component", "r2").Str("bucket", s.Bucket).Int("workers", s.Workers).Msg("client and worker pool initialized")
	return nil
}

func (s *S3) start() {
	if s.Workers <= 0 {
		s.Workers = 1
	}
	s.queue = make(chan uploadReq, s.QueueSize)
	for i := 0; i < s.Workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
}

// Close waits for all queued tasks to be processed.
func (s *S3) Close() {
	s.closeOnce.Do(func() {
		close(s.queue)
		s.wg.Wait()
	})
}

// UploadWithHook tries to put an upload on the queue without blocking.
// If the queue is full, it returns ErrQueueFull immediately. Exactly one of
// the hooks runs once the upload settles; either may be nil.
func (s *S3) UploadWithHook(ctx context.Context, key string, fileType string, payload []byte, onSuccess func(), onFailure func(error)) error {
	req := uploadReq{ctx: ctx, key: key, fileType: fileType, payload: payload, onSuccess: onSuccess, onFailure: onFailure}
	select {
	case s.queue <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Upload stores payload under key, retrying on the caller's goroutine.
func (s *S3) Upload(ctx context.Context, key string, fileType string, payload []byte) error {
	return s.put(uploadReq{ctx: ctx, key: key, fileType: fileType, payload: payload})
}

func (s *S3) worker() {
	defer s.wg.Done()
	for req := range s.queue {
		err := s.put(req)
		if err == nil {
			if req.onSuccess != nil {
				req.onSuccess()
			}
			continue
		}

		sentry.CaptureException(err)
		log.Error().Str("component", "r2").Str("key", req.key).Err(err).Msg("upload failed")
		if req.onFailure != nil {
			req.onFailure(err)
		}
	}
}

func (s *S3) put(req uploadReq) error {
	var err error
	attempt := 0

	for {
		attempt++
		_, err = s.Uploader.Upload(req.ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.Bucket),
			Key:         aws.String(req.key),
			Body:        bytes.NewReader(req.payload),
			ContentType: aws.String(req.fileType),
		})
		if err == nil {
			return nil
		}

		if attempt > s.MaxRetries {
			return fmt.Errorf("upload %q after %d attempts: %w", req.key, attempt, err)
		}

		// backoff with jitter
		timer := time.NewTimer(s.backoffDelay(attempt))
		select {
		case <-timer.C:
		case <-req.ctx.Done():
			timer.Stop()
			return fmt.Errorf("upload %q: %w", req.key, req.ctx.Err())
		}
	}
}

func (s *S3) backoffDelay(attempt int) time.Duration {
	delay := s.RetryBaseDelay << (attempt - 1)
	jitter := int64(delay) / 10
	if jitter <= 0 {
		return delay
	}
	return delay - time.Duration(jitter/2) + time.Duration(rand.Int64N(jitter))
}

func (s *S3) Download(ctx context.Context, key string) ([]byte, string, error) {
	out, err := s.S3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to download %q: %w", key, err)
	}
	defer out.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(out.Body); err != nil {
		return nil, "", fmt.Errorf("failed to read body for %q: %w", key, err)
	}

	return buf.Bytes(), aws.ToString(out.ContentType), nil
}
