package use_case

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog/log"
	"github.com/trunov/convo/internal/artifact"
	"github.com/trunov/convo/internal/entities"
	"github.com/trunov/convo/internal/formats"
	"github.com/trunov/convo/internal/passthrough"
	"github.com/trunov/convo/internal/processor"
	"github.com/trunov/convo/internal/queue"
)

// ErrJobsDisabled is returned by the job operations when no queue is wired.
var ErrJobsDisabled = errors.New("async jobs are disabled")

type Reencoder interface {
	Reencode(ctx context.Context, src entities.SourceFile, target string) (entities.ConvertedArtifact, error)
}

type Artifacts interface {
	Acquire(ctx context.Context, blob entities.Blob) (artifact.Handle, error)
	Consume(ctx context.Context, id string) (entities.Blob, error)
	Release(ctx context.Context, id string) error
}

type JobStore interface {
	InsertJob(ctx context.Context, job entities.Job) (entities.Job, error)
	GetJob(ctx context.Context, id string) (entities.Job, error)
	MarkFailed(ctx context.Context, id string, reason string) error
}

type R2Storage interface {
	UploadWithHook(ctx context.Context, key string, fileType string, payload []byte, onSuccess func(), onFailure func(error)) error
}

type JobQueue interface {
	EnqueueConvert(ctx context.Context, job queue.ConvertJob) error
}

type useCase struct {
	reencoder Reencoder
	artifacts Artifacts

	jobs      JobStore
	r2Storage R2Storage
	wqueue    JobQueue
}

func New(reencoder Reencoder, artifacts Artifacts) *useCase {
	return &useCase{
		reencoder: reencoder,
		artifacts: artifacts,
	}
}

// WithJobs enables the async job operations.
func (c *useCase) WithJobs(jobs JobStore, r2Storage R2Storage, wqueue JobQueue) *useCase {
	c.jobs = jobs
	c.r2Storage = r2Storage
	c.wqueue = wqueue
	return c
}

// Convert re-encodes src to target and returns a handle to the result.
func (c *useCase) Convert(ctx context.Context, src entities.SourceFile, target string) (entities.ConversionResult, error) {
	out, err := c.reencoder.Reencode(ctx, src, target)
	if err != nil {
		return entities.ConversionResult{}, err
	}

	h, err := c.artifacts.Acquire(ctx, out.Blob)
	if err != nil {
		return entities.ConversionResult{}, err
	}

	log.Info().
		Str("component", "use-case").
		Str("source", src.Name).
		Str("target", target).
		Int("in_bytes", len(src.Data)).
		Int("out_bytes", out.Size()).
		Msg("converted")

	res := result(h, out.Blob)
	res.Width = out.Width
	res.Height = out.Height
	return res, nil
}

// Passthrough hands back src renamed to target without touching its bytes.
func (c *useCase) Passthrough(ctx context.Context, src entities.SourceFile, target string) (entities.ConversionResult, error) {
	out, err := passthrough.Rename(src, target)
	if err != nil {
		return entities.ConversionResult{}, err
	}

	h, err := c.artifacts.Acquire(ctx, out.Blob)
	if err != nil {
		return entities.ConversionResult{}, err
	}

	return result(h, out.Blob), nil
}

// Download returns the payload behind a handle and releases it.
func (c *useCase) Download(ctx context.Context, id string) (entities.Blob, error) {
	return c.artifacts.Consume(ctx, id)
}

func (c *useCase) Release(ctx context.Context, id string) error {
	return c.artifacts.Release(ctx, id)
}

// SubmitJob uploads src and queues its conversion once the upload lands.
// Inputs the re-encoder would reject are refused up front.
func (c *useCase) SubmitJob(ctx context.Context, src entities.SourceFile, target string) (entities.Job, error) {
	if c.wqueue == nil {
		return entities.Job{}, ErrJobsDisabled
	}
	if err := processor.Validate(src.MIMEType, target); err != nil {
		return entities.Job{}, err
	}

	id, err := uuid.NewV4()
	if err != nil {
		return entities.Job{}, fmt.Errorf("failed to generate job id: %w", err)
	}

	token := formats.Normalize(target)
	key := "sources/" + id.String()

	job, err := c.jobs.InsertJob(ctx, entities.Job{
		ID:             id.String(),
		Filename:       src.Name,
		SourceMimeType: src.MIMEType,
		TargetFormat:   token,
		Status:         entities.JobQueued,
		SourceKey:      key,
	})
	if err != nil {
		return entities.Job{}, err
	}

	// The upload outlives the request.
	bg := context.WithoutCancel(ctx)
	logger := log.With().Str("component", "use-case").Str("job", job.ID).Logger()

	onSuccess := func() {
		err := c.wqueue.EnqueueConvert(bg, queue.ConvertJob{
			JobID:       job.ID,
			ObjectKey:   key,
			ContentType: src.MIMEType,
			Filename:    src.Name,
			Target:      token,
		})
		if err != nil {
			logger.Error().Err(err).Msg("could not enqueue job")
			c.fail(bg, job.ID, err)
		}
	}
	onFailure := func(err error) {
		c.fail(bg, job.ID, err)
	}

	if err := c.r2Storage.UploadWithHook(bg, key, src.MIMEType, src.Data, onSuccess, onFailure); err != nil {
		c.fail(bg, job.ID, err)
		return entities.Job{}, fmt.Errorf("failed to schedule upload: %w", err)
	}

	return job, nil
}

func (c *useCase) Job(ctx context.Context, id string) (entities.Job, error) {
	if c.jobs == nil {
		return entities.Job{}, ErrJobsDisabled
	}
	return c.jobs.GetJob(ctx, id)
}

func (c *useCase) fail(ctx context.Context, id string, cause error) {
	if err := c.jobs.MarkFailed(ctx, id, cause.Error()); err != nil {
		log.Error().Str("component", "use-case").Str("job", id).Err(err).Msg("could not mark job failed")
	}
}

func result(h artifact.Handle, blob entities.Blob) entities.ConversionResult {
	return entities.ConversionResult{
		Handle:    h.ID,
		URL:       h.URL,
		ExpiresAt: h.ExpiresAt,
		Filename:  blob.Filename,
		MimeType:  blob.MIMEType,
		Size:      blob.Size(),
	}
}
