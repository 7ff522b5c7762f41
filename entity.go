package streamzip

import "time"

// Entity carries the timestamps shared by all persisted records.
// UpdatedAt is bumped by the store on every mutation and is always
// greater than or equal to CreatedAt.
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEntity returns an Entity with both timestamps set to the current
// UTC time.
func NewEntity() Entity {
	now := time.Now().UTC()
	return Entity{CreatedAt: now, UpdatedAt: now}
}
