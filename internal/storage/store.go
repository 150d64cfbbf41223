// Package storage defines the persistent store contract (spec §4.A) that
// the Read Saver, Sightings Processor, Remote Uploader, and operator
// control surface all depend on. The embedded implementation lives in
// internal/storage/sqlite.
package storage

import (
	"context"

	"github.com/chronokeeptiming/portal/internal/types"
)

// Store is the durable, linearizable persistence contract for the portal.
// Implementations serialize concurrent callers behind a single exclusive
// lock so that, for example, a Sightings Processor cycle never interleaves
// with an operator's participant bulk-load.
type Store interface {
	// Setup creates the settings table if missing, reads the schema
	// version row, and runs any pending forward migrations. It fails with
	// types.ErrDatabaseTooNew if the stored version exceeds what this
	// build knows, or types.ErrInvalidVersion if no migration path exists.
	Setup(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error

	GetSetting(ctx context.Context, name string) (types.Setting, error)
	SetSetting(ctx context.Context, s types.Setting) error

	SaveReader(ctx context.Context, r types.Reader) (types.Reader, error)
	GetReaders(ctx context.Context) ([]types.Reader, error)
	DeleteReader(ctx context.Context, nickname string) error

	SaveAPI(ctx context.Context, a types.ResultsApi) (types.ResultsApi, error)
	GetAPIs(ctx context.Context) ([]types.ResultsApi, error)
	DeleteAPI(ctx context.Context, nickname string) error

	// SaveReads persists a batch in a single transaction and returns the
	// count actually inserted; rows colliding on (chip, seconds,
	// milliseconds) are silently dropped per the schema's IGNORE rule.
	SaveReads(ctx context.Context, reads []types.Read) (int, error)

	// GetUsefulReads returns all reads with status Unused or Used.
	GetUsefulReads(ctx context.Context) ([]types.Read, error)

	// GetNotUploadedReads returns all reads with Uploaded == false.
	GetNotUploadedReads(ctx context.Context) ([]types.Read, error)

	// UpdateReadsStatus batches an update of Status and Uploaded by id.
	UpdateReadsStatus(ctx context.Context, reads []types.Read) error

	AddParticipants(ctx context.Context, parts []types.Participant) error
	GetParticipants(ctx context.Context) ([]types.Participant, error)
	DeleteParticipant(ctx context.Context, bib string) error
	DeleteParticipants(ctx context.Context) error

	SaveSightings(ctx context.Context, sightings []types.Sighting) error
}
