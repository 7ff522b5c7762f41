package redis

// Redis key naming conventions. All keys share a configurable prefix to
// avoid collisions with other tenants of the same Redis instance.

const defaultKeyPrefix = "streamzip:"

// jobKey returns the Hash key for a job record: streamzip:job:{id}
func (s *Store) jobKey(id string) string { return s.prefix + "job:" + id }

// jobsByCreatedKey is the Sorted Set indexing job IDs by creation time.
// Score is the record's CreatedAt in Unix milliseconds.
func (s *Store) jobsByCreatedKey() string { return s.prefix + "jobs_by_created" }
