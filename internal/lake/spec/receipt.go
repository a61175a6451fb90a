package spec

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/xtxerr/pricelake/internal/lake/types"
)

// Receipt is the immutable outcome of one write attempt. RunID is unique per
// physical execution; IdempotencyKey identifies the logical request. One
// receipt is recorded per unique key and reused verbatim on replays.
//
// Invariant: Rows == Inserted + Updated + Skipped, including Rows == 0.
type Receipt struct {
	RunID          string          `json:"run_id"`
	IdempotencyKey string          `json:"idempotency_key"`
	Engine         types.Engine    `json:"engine"`
	Source         types.Source    `json:"source"`
	Location       string          `json:"location"`
	Symbol         string          `json:"symbol"`
	PrimaryKey     []string        `json:"primary_key"`
	LayoutVersion  int             `json:"layout_version"`
	WriteMode      types.WriteMode `json:"write_mode"`
	Rows           int             `json:"rows"`
	Inserted       int             `json:"inserted"`
	Updated        int             `json:"updated"`
	Skipped        int             `json:"skipped"`
	TS             time.Time       `json:"ts"`
}

// NewRunID returns a fresh run identifier for one physical execution.
func NewRunID() string {
	return uuid.New().String()
}

// Validate checks the count invariant and required identity fields.
func (r *Receipt) Validate() error {
	if r.RunID == "" {
		return fmt.Errorf("receipt: run_id is required")
	}
	if r.IdempotencyKey == "" {
		return fmt.Errorf("receipt: idempotency_key is required")
	}
	if r.Rows < 0 || r.Inserted < 0 || r.Updated < 0 || r.Skipped < 0 {
		return fmt.Errorf("receipt: negative counts (rows=%d inserted=%d updated=%d skipped=%d)",
			r.Rows, r.Inserted, r.Updated, r.Skipped)
	}
	if total := r.Inserted + r.Updated + r.Skipped; r.Rows != total {
		return fmt.Errorf("receipt: rows (%d) != inserted+updated+skipped (%d)", r.Rows, total)
	}
	return nil
}
