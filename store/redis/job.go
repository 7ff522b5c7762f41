package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	streamzip "github.com/SpicychieF05/StreamZip"
	"github.com/SpicychieF05/StreamZip/id"
	"github.com/SpicychieF05/StreamZip/job"
)

// CreateJob stores the record as a Hash and indexes it by creation time.
func (s *Store) CreateJob(ctx context.Context, j *job.Job) error {
	jID := j.ID.String()
	key := s.jobKey(jID)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("streamzip/redis: create check exists: %w", err)
	}
	if exists > 0 {
		return streamzip.ErrJobExists
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, jobToMap(j))
	pipe.ZAdd(ctx, s.jobsByCreatedKey(), goredis.Z{
		Score:  float64(j.CreatedAt.UnixMilli()),
		Member: jID,
	})
	if _, err = pipe.Exec(ctx); err != nil {
		return fmt.Errorf("streamzip/redis: create job: %w", err)
	}
	return nil
}

// GetJob retrieves a record by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	return s.getJobByKey(ctx, s.jobKey(jobID.String()))
}

// UpdateJob applies the partial update to the stored record and returns the
// result. Only the fields the update sets are written; concurrent updates
// against the same record are last-writer-wins per field.
func (s *Store) UpdateJob(ctx context.Context, jobID id.JobID, u job.Update) (*job.Job, error) {
	key := s.jobKey(jobID.String())

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("streamzip/redis: update check exists: %w", err)
	}
	if exists == 0 {
		return nil, streamzip.ErrJobNotFound
	}

	fields := updateToMap(u)
	fields["updated_at"] = time.Now().UTC().Format(time.RFC3339Nano)

	if _, err = s.client.HSet(ctx, key, fields).Result(); err != nil {
		return nil, fmt.Errorf("streamzip/redis: update job: %w", err)
	}
	return s.getJobByKey(ctx, key)
}

// EvictJob removes the record for the given id. Removing an absent record
// is not an error.
func (s *Store) EvictJob(ctx context.Context, jobID id.JobID) error {
	jID := jobID.String()

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.jobKey(jID))
	pipe.ZRem(ctx, s.jobsByCreatedKey(), jID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("streamzip/redis: evict job: %w", err)
	}
	return nil
}

// EvictExpired removes every record created strictly before cutoff and
// returns the number removed. The creation-time index keeps this a range
// query rather than a keyspace scan.
func (s *Store) EvictExpired(ctx context.Context, cutoff time.Time) (int, error) {
	idxKey := s.jobsByCreatedKey()
	max := strconv.FormatInt(cutoff.UnixMilli()-1, 10)

	ids, err := s.client.ZRangeByScore(ctx, idxKey, &goredis.ZRangeBy{
		Min: "-inf",
		Max: max,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("streamzip/redis: evict expired range: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pipe := s.client.TxPipeline()
	for _, jID := range ids {
		pipe.Del(ctx, s.jobKey(jID))
		pipe.ZRem(ctx, idxKey, jID)
	}
	if _, err = pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("streamzip/redis: evict expired: %w", err)
	}

	s.logger.Debug("expired job records evicted",
		slog.Int("count", len(ids)),
	)
	return len(ids), nil
}

// ── helpers ──

func jobToMap(j *job.Job) map[string]interface{} {
	return map[string]interface{}{
		"id":          j.ID.String(),
		"type":        string(j.Type),
		"status":      string(j.Status),
		"progress":    strconv.Itoa(j.Progress),
		"url":         j.URL,
		"output_path": j.OutputPath,
		"filename":    j.Filename,
		"error":       j.Error,
		"created_at":  j.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":  j.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func updateToMap(u job.Update) map[string]interface{} {
	m := make(map[string]interface{}, 5)
	if u.Status != nil {
		m["status"] = string(*u.Status)
	}
	if u.Progress != nil {
		m["progress"] = strconv.Itoa(*u.Progress)
	}
	if u.OutputPath != nil {
		m["output_path"] = *u.OutputPath
	}
	if u.Filename != nil {
		m["filename"] = *u.Filename
	}
	if u.Error != nil {
		m["error"] = *u.Error
	}
	return m
}

func (s *Store) getJobByKey(ctx context.Context, key string) (*job.Job, error) {
	vals, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, streamzip.ErrJobNotFound
		}
		return nil, fmt.Errorf("streamzip/redis: get job: %w", err)
	}
	if len(vals) == 0 {
		return nil, streamzip.ErrJobNotFound
	}
	return mapToJob(vals)
}

func mapToJob(m map[string]string) (*job.Job, error) {
	jID, err := id.ParseJobID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("streamzip/redis: parse job id: %w", err)
	}

	progress, _ := strconv.Atoi(m["progress"])                    //nolint:errcheck // best-effort parse from trusted Redis data
	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"]) //nolint:errcheck // best-effort parse from trusted Redis data
	updatedAt, _ := time.Parse(time.RFC3339Nano, m["updated_at"]) //nolint:errcheck // best-effort parse from trusted Redis data

	return &job.Job{
		Entity: streamzip.Entity{
			CreatedAt: createdAt,
			UpdatedAt: updatedAt,
		},
		ID:         jID,
		Type:       job.Type(m["type"]),
		Status:     job.Status(m["status"]),
		Progress:   progress,
		URL:        m["url"],
		OutputPath: m["output_path"],
		Filename:   m["filename"],
		Error:      m["error"],
	}, nil
}
