package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	streamzip "github.com/SpicychieF05/StreamZip"
	"github.com/SpicychieF05/StreamZip/id"
	"github.com/SpicychieF05/StreamZip/job"
)

const jobColumns = `id, type, status, progress, url, output_path, filename, error, created_at, updated_at`

// CreateJob persists a new job record.
func (s *Store) CreateJob(ctx context.Context, j *job.Job) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO streamzip_jobs (`+jobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		j.ID.String(), string(j.Type), string(j.Status), j.Progress,
		j.URL, j.OutputPath, j.Filename, j.Error,
		j.CreatedAt, j.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return streamzip.ErrJobExists
		}
		return fmt.Errorf("streamzip/postgres: create job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+jobColumns+`
		FROM streamzip_jobs
		WHERE id = $1`,
		jobID.String(),
	)

	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, streamzip.ErrJobNotFound
		}
		return nil, fmt.Errorf("streamzip/postgres: get job: %w", err)
	}
	return j, nil
}

// UpdateJob merges the partial update into the stored record and bumps
// updated_at in the same statement.
func (s *Store) UpdateJob(ctx context.Context, jobID id.JobID, u job.Update) (*job.Job, error) {
	sets := []string{"updated_at = NOW()"}
	args := []any{jobID.String()}

	addSet := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, column+" = $"+strconv.Itoa(len(args)))
	}
	if u.Status != nil {
		addSet("status", string(*u.Status))
	}
	if u.Progress != nil {
		addSet("progress", *u.Progress)
	}
	if u.OutputPath != nil {
		addSet("output_path", *u.OutputPath)
	}
	if u.Filename != nil {
		addSet("filename", *u.Filename)
	}
	if u.Error != nil {
		addSet("error", *u.Error)
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE streamzip_jobs SET `+strings.Join(sets, ", ")+`
		WHERE id = $1
		RETURNING `+jobColumns,
		args...,
	)

	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, streamzip.ErrJobNotFound
		}
		return nil, fmt.Errorf("streamzip/postgres: update job: %w", err)
	}
	return j, nil
}

// EvictJob removes the record. Absent records are a no-op.
func (s *Store) EvictJob(ctx context.Context, jobID id.JobID) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM streamzip_jobs WHERE id = $1`,
		jobID.String(),
	)
	if err != nil {
		return fmt.Errorf("streamzip/postgres: evict job: %w", err)
	}
	return nil
}

// EvictExpired removes every record created before the cutoff and reports
// how many were evicted.
func (s *Store) EvictExpired(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM streamzip_jobs WHERE created_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("streamzip/postgres: evict expired: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanJob(row pgx.Row) (*job.Job, error) {
	var (
		j         job.Job
		rawID     string
		rawType   string
		rawStatus string
	)
	err := row.Scan(
		&rawID, &rawType, &rawStatus, &j.Progress,
		&j.URL, &j.OutputPath, &j.Filename, &j.Error,
		&j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	j.ID, err = id.ParseJobID(rawID)
	if err != nil {
		return nil, fmt.Errorf("corrupt id %q: %w", rawID, err)
	}
	j.Type = job.Type(rawType)
	j.Status = job.Status(rawStatus)
	return &j, nil
}

// isDuplicateKey checks if a PostgreSQL error is a unique_violation (23505).
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
