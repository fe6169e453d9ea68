// Package jobs keeps a short-lived record of submitted vendor jobs so that
// status checks can be traced back to the submission that created them.
// Nothing here is needed to serve a request; a lost entry only loses the trace.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/bobarin/auctioneer/internal/models"
)

// DefaultTTL bounds how long an entry is kept after its last update.
const DefaultTTL = time.Hour

var ErrNotFound = errors.New("job not found")

type Ledger interface {
	// Record notes a freshly submitted job.
	Record(ctx context.Context, jobID string, mode models.Mode) error
	// Observe notes one status check and the vendor label it returned.
	Observe(ctx context.Context, jobID, status string) error
	Get(ctx context.Context, jobID string) (*models.LedgerEntry, error)
	Close() error
}
