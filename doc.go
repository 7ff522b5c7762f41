// Package streamzip provides the job orchestration core for the StreamZip
// media-retrieval service. Clients submit a download request, receive a
// tracking identifier immediately, and poll for completion while a worker
// performs the retrieval in the background.
//
// The module is split into small subsystem packages, each with a narrow
// contract: job defines the record and its store interface, queue defines
// the broker hand-off between producer and worker, worker drives records
// through the state machine, and cleanup evicts stale records and expired
// output artifacts. Store backends cover memory, Redis, and PostgreSQL;
// broker backends cover memory and Redis.
//
// # Quick Start
//
//	s := memorystore.New()
//	b := memoryqueue.New()
//	eng, err := engine.New(s, b, fetcher)
//
// All job IDs use TypeID, a type-prefixed, K-sortable, UUIDv7-based
// identifier.
package streamzip
