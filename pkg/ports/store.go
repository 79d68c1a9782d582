package ports

import (
	"context"

	"github.com/aretw0/steward/pkg/domain"
)

// ReportStore persists the outcome of converge and audit runs so they can be
// inspected after the fact (CLI `report`, HTTP API, MCP tools).
type ReportStore interface {
	// Save persists the record under record.ID, replacing any previous one.
	Save(ctx context.Context, record *domain.RunRecord) error

	// Load retrieves a record by run ID.
	// Returns domain.ErrReportNotFound if the run does not exist.
	Load(ctx context.Context, id string) (*domain.RunRecord, error)

	// List returns the IDs of all stored runs, oldest first.
	List(ctx context.Context) ([]string, error)

	// Delete removes a record. Deleting an unknown ID is not an error.
	Delete(ctx context.Context, id string) error
}
