package streamzip

import "errors"

var (
	// Store errors.
	ErrNoStore  = errors.New("streamzip: no store configured")
	ErrNoBroker = errors.New("streamzip: no broker configured")

	// Not found errors.
	ErrJobNotFound = errors.New("streamzip: job not found")

	// Conflict errors.
	ErrJobExists = errors.New("streamzip: job already exists")

	// Queue errors.
	ErrQueueClosed = errors.New("streamzip: queue closed")

	// Input errors.
	ErrInvalidJobType = errors.New("streamzip: invalid job type")
)
