package upstream

import (
	"context"
	"time"

	"groundwatch/internal/types"
)

// Fetcher retrieves the historical observation series and recharge summaries
// for a station as of a given date. The fetch is the pipeline's only
// suspension point and must honor context cancellation.
type Fetcher interface {
	Fetch(ctx context.Context, stationID string, asOf time.Time) (*types.StationData, error)
}
