package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/trunov/convo/internal/config"
	"github.com/trunov/convo/internal/entities"
	"github.com/trunov/convo/internal/processor"
	"github.com/trunov/convo/internal/redisholder"
	"golang.org/x/sync/errgroup"
)

type Storage interface {
	Download(ctx context.Context, key string) ([]byte, string, error)
	Upload(ctx context.Context, key, contentType string, payload []byte) error
}

type Converter interface {
	Reencode(ctx context.Context, src entities.SourceFile, target string) (entities.ConvertedArtifact, error)
}

type JobRepository interface {
	MarkProcessing(ctx context.Context, id string) error
	MarkDone(ctx context.Context, id string, resultKey string) error
	MarkFailed(ctx context.Context, id string, reason string) error
}

type Worker struct {
	rc      *redisholder.Holder
	cfg     config.JobsConfig
	storage Storage
	conv    Converter
	jobs    JobRepository
}

// Init starts the consumer group in the background and returns a producer
// bound to the same stream.
func Init(ctx context.Context, rc *redisholder.Holder, cfg config.JobsConfig, storage Storage, conv Converter, jobs JobRepository) *Producer {
	producer := NewProducer(rc, cfg.Stream, cfg.MaxLen)
	worker := NewWorker(rc, cfg, storage, conv, jobs)

	go func() {
		if err := worker.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Str("component", "job-worker").Err(err).Msg("stopped")
		}
	}()

	return producer
}

func NewWorker(rc *redisholder.Holder, cfg config.JobsConfig, storage Storage, conv Converter, jobs JobRepository) *Worker {
	return &Worker{
		rc:      rc,
		cfg:     cfg,
		storage: storage,
		conv:    conv,
		jobs:    jobs,
	}
}

func (w *Worker) EnsureGroup(ctx context.Context) error {
	// MkStream lets the group exist before the first message does.
	err := w.rc.Get().XGroupCreateMkStream(ctx, w.cfg.Stream, w.cfg.Group, "0").Err()
	// BUSYGROUP means the group already exists
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

func (w *Worker) Start(ctx context.Context) error {
	if err := w.EnsureGroup(ctx); err != nil {
		return fmt.Errorf("failed to ensure Redis group: %w", err)
	}

	logger := log.With().Str("component", "job-worker").Logger()
	logger.Info().
		Str("group", w.cfg.Group).
		Str("stream", w.cfg.Stream).
		Int("workers", w.cfg.Workers).
		Msg("starting consumer group")

	w.autoClaim(ctx)
	logger.Debug().Msg("auto-claim complete, entering loop")

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < w.cfg.Workers; i++ {
		id := i
		g.Go(func() error {
			logger.Debug().Int("worker", id).Msg("worker started")
			err := w.loop(gctx)
			if err != nil {
				logger.Error().Int("worker", id).Err(err).Msg("worker stopped with error")
			}
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("worker loop exited with error: %w", err)
	}
	return ctx.Err()
}

// autoClaim takes over messages another consumer of the group received but
// never acknowledged (crash before XACK) and processes them.
func (w *Worker) autoClaim(ctx context.Context) {
	next := "0-0"

	// Idle threshold grows with the block timeout so messages still owned by
	// slow workers are left alone.
	minIdle := 30 * time.Second
	if w.cfg.BlockTimeout > 0 {
		t := w.cfg.BlockTimeout * 6
		if t > minIdle {
			minIdle = t
		}
	}

	for {
		msgs, start, err := w.rc.Get().XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   w.cfg.Stream,
			Group:    w.cfg.Group,
			Consumer: w.cfg.Consumer,
			MinIdle:  minIdle,
			Start:    next,
			Count:    100,
		}).Result()
		if err != nil || len(msgs) == 0 {
			return
		}
		for _, m := range msgs {
			w.handle(ctx, m)
		}
		if start == "0-0" {
			return
		}
		next = start
	}
}

func (w *Worker) loop(ctx context.Context) error {
	for {
		// Messages stay in the group's pending list until handle acks them.
		streams, err := w.rc.Get().XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    w.cfg.Group,
			Consumer: w.cfg.Consumer,
			Streams:  []string{w.cfg.Stream, ">"},
			Count:    1,
			Block:    w.cfg.BlockTimeout,
		}).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn().Str("component", "job-worker").Err(err).Msg("read failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		for _, s := range streams {
			for _, m := range s.Messages {
				w.handle(ctx, m)
			}
		}
	}
}

func (w *Worker) handle(ctx context.Context, m redis.XMessage) {
	job, raw, attempt, err := decodeMessage(m)
	if err != nil {
		sentry.CaptureException(err)
		log.Error().Str("component", "job-worker").Str("message", m.ID).Err(err).Msg("dropping malformed message")
		w.ack(ctx, m.ID)
		return
	}

	if !w.run(ctx, job, attempt) {
		w.ack(ctx, m.ID)
		return
	}

	// The delivery stays pending until its replacement is on the stream, so
	// a crash during the backoff leaves it for autoClaim.
	backoff := w.cfg.BackoffBase << attempt
	time.AfterFunc(backoff, func() {
		if err := w.requeue(context.Background(), m.ID, raw, attempt+1); err != nil {
			log.Error().Str("component", "job-worker").Str("job", job.JobID).Err(err).Msg("requeue failed")
		}
	})
}

// requeue appends the next attempt of a delivery and only then acks it.
func (w *Worker) requeue(ctx context.Context, id, raw string, attempt int) error {
	rc := w.rc.Get()
	err := rc.XAdd(ctx, &redis.XAddArgs{
		Stream: w.cfg.Stream,
		MaxLen: w.cfg.MaxLen,
		Approx: true,
		Values: map[string]any{
			"payload": raw,
			"attempt": attempt,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd: %w", err)
	}
	if err := rc.XAck(ctx, w.cfg.Stream, w.cfg.Group, id).Err(); err != nil {
		return fmt.Errorf("xack %s: %w", id, err)
	}
	return nil
}

func (w *Worker) ack(ctx context.Context, id string) {
	if err := w.rc.Get().XAck(ctx, w.cfg.Stream, w.cfg.Group, id).Err(); err != nil {
		log.Warn().Str("component", "job-worker").Str("message", id).Err(err).Msg("ack failed")
	}
}

// run executes one delivery of job and reports whether it should be retried.
func (w *Worker) run(ctx context.Context, job ConvertJob, attempt int) bool {
	logger := log.With().Str("component", "job-worker").Str("job", job.JobID).Int("attempt", attempt).Logger()

	if err := w.jobs.MarkProcessing(ctx, job.JobID); err != nil {
		logger.Warn().Err(err).Msg("could not mark job processing")
	}

	resultKey, err := w.process(ctx, job)
	if err == nil {
		if err := w.jobs.MarkDone(ctx, job.JobID, resultKey); err != nil {
			logger.Error().Err(err).Msg("could not mark job done")
		}
		logger.Info().Str("result_key", resultKey).Msg("job done")
		return false
	}

	if isTerminal(err) || attempt+1 >= w.cfg.MaxAttempts {
		logger.Error().Err(err).Msg("job failed")
		if !isTerminal(err) {
			sentry.CaptureException(err)
		}
		if err := w.jobs.MarkFailed(ctx, job.JobID, err.Error()); err != nil {
			logger.Error().Err(err).Msg("could not mark job failed")
		}
		return false
	}

	logger.Warn().Err(err).Msg("job attempt failed, retrying")
	return true
}

func (w *Worker) process(ctx context.Context, job ConvertJob) (string, error) {
	orig, contentType, err := w.storage.Download(ctx, job.ObjectKey)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", job.ObjectKey, err)
	}
	if job.ContentType != "" {
		contentType = job.ContentType
	}

	out, err := w.conv.Reencode(ctx, entities.SourceFile{
		Name:     job.Filename,
		MIMEType: contentType,
		Data:     orig,
	}, job.Target)
	if err != nil {
		return "", fmt.Errorf("convert to %s: %w", job.Target, err)
	}

	target := job.resultKey()
	if err := w.storage.Upload(ctx, target, out.MIMEType, out.Data); err != nil {
		return "", fmt.Errorf("upload %s: %w", target, err)
	}
	return target, nil
}

// isTerminal reports errors that retrying cannot fix.
func isTerminal(err error) bool {
	return errors.Is(err, processor.ErrInvalidInput) ||
		errors.Is(err, processor.ErrDecode) ||
		errors.Is(err, processor.ErrEncode)
}

func decodeMessage(m redis.XMessage) (ConvertJob, string, int, error) {
	var job ConvertJob

	raw, ok := m.Values["payload"].(string)
	if !ok {
		return job, "", 0, errors.New("message has no payload")
	}
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return job, "", 0, fmt.Errorf("decode payload: %w", err)
	}
	return job, raw, toInt(m.Values["attempt"]), nil
}

func toInt(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case string:
		var x int
		fmt.Sscanf(t, "%d", &x)
		return x
	default:
		return 0
	}
}
