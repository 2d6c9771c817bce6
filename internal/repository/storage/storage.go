package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/trunov/convo/internal/entities"
)

const jobColumns = `id, filename, source_mime_type, target_format, status, source_key,
	result_key, error, attempts, created_timestamp, updated_timestamp`

type dbStorage struct {
	dbpool *pgxpool.Pool
}

func New(ctx context.Context, databaseDSN string) (*dbStorage, error) {
	pool, err := pgxpool.New(ctx, databaseDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	return &dbStorage{dbpool: pool}, nil
}

func (s *dbStorage) Ping(ctx context.Context) error {
	return s.dbpool.Ping(ctx)
}

func (s *dbStorage) Close() {
	s.dbpool.Close()
}

func (s *dbStorage) InsertJob(ctx context.Context, job entities.Job) (entities.Job, error) {
	row := s.dbpool.QueryRow(ctx, `
		INSERT INTO jobs (id, filename, source_mime_type, target_format, status, source_key)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+jobColumns,
		job.ID, job.Filename, job.SourceMimeType, job.TargetFormat, string(job.Status), job.SourceKey,
	)

	out, err := scanJob(row)
	if err != nil {
		return entities.Job{}, fmt.Errorf("failed to insert job: %w", err)
	}
	return out, nil
}

func (s *dbStorage) GetJob(ctx context.Context, id string) (entities.Job, error) {
	row := s.dbpool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)

	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return entities.Job{}, entities.ErrJobNotFound
	}
	if err != nil {
		return entities.Job{}, fmt.Errorf("failed to get job %s: %w", id, err)
	}
	return job, nil
}

// MarkProcessing bumps the attempt counter alongside the status change.
func (s *dbStorage) MarkProcessing(ctx context.Context, id string) error {
	return s.exec(ctx, `
		UPDATE jobs SET status = $2, attempts = attempts + 1, updated_timestamp = now()
		WHERE id = $1`, id, string(entities.JobProcessing))
}

func (s *dbStorage) MarkDone(ctx context.Context, id string, resultKey string) error {
	return s.exec(ctx, `
		UPDATE jobs SET status = $2, result_key = $3, error = NULL, updated_timestamp = now()
		WHERE id = $1`, id, string(entities.JobDone), resultKey)
}

func (s *dbStorage) MarkFailed(ctx context.Context, id string, reason string) error {
	return s.exec(ctx, `
		UPDATE jobs SET status = $2, error = $3, updated_timestamp = now()
		WHERE id = $1`, id, string(entities.JobFailed), reason)
}

func (s *dbStorage) exec(ctx context.Context, sql string, args ...any) error {
	tag, err := s.dbpool.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return entities.ErrJobNotFound
	}
	return nil
}

func scanJob(row pgx.Row) (entities.Job, error) {
	var j entities.Job
	var status string
	err := row.Scan(
		&j.ID, &j.Filename, &j.SourceMimeType, &j.TargetFormat, &status, &j.SourceKey,
		&j.ResultKey, &j.Error, &j.Attempts, &j.CreatedTimestamp, &j.UpdatedTimestamp,
	)
	j.Status = entities.JobStatus(status)
	return j, err
}
