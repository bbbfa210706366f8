package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"groundwatch/internal/types"
)

// MaxBatchPoints is the maximum number of points in one batch request.
const MaxBatchPoints = 50

// batchConcurrencyLimit bounds concurrent pipeline runs in a batch.
const batchConcurrencyLimit = 8

// BatchPoint is one query point in a batch request. ID keys the result maps.
type BatchPoint struct {
	ID  string  `json:"id" validate:"required"`
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `json:"lon" validate:"gte=-180,lte=180"`
}

// BatchRequest analyzes multiple points as of one date.
type BatchRequest struct {
	Points []BatchPoint `json:"points" validate:"required,max=50,dive"`
	AsOf   time.Time    `json:"as_of"`
}

// ErrorDetail is the lightweight error structure used in batch error maps.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// BatchResult separates successes from failures per point.
type BatchResult struct {
	Results map[string]*AnalysisResult `json:"results"`
	Errors  map[string]ErrorDetail     `json:"errors,omitempty"`
}

// ComputeBatch runs the analysis pipeline for every point concurrently with
// per-point error isolation: one point failing never aborts the others.
func (e *Engine) ComputeBatch(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	if len(req.Points) > MaxBatchPoints {
		return nil, types.NewAppError(types.ErrCodeValidationBatchSize,
			fmt.Sprintf("batch size %d exceeds maximum of %d points", len(req.Points), MaxBatchPoints), nil)
	}

	out := &BatchResult{Results: make(map[string]*AnalysisResult)}
	if len(req.Points) == 0 {
		return out, nil
	}

	var mu sync.Mutex
	errorMap := make(map[string]ErrorDetail)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrencyLimit)

	for _, p := range req.Points {
		p := p
		g.Go(func() error {
			result, err := e.ComputeAnalysis(gCtx, types.Location{Lat: p.Lat, Lon: p.Lon}, req.AsOf)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errorMap[p.ID] = ErrorDetail{
					Code:    string(types.CodeOf(err)),
					Message: err.Error(),
				}
				// Isolate the failure; let the other points proceed.
				return nil
			}
			out.Results[p.ID] = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected,
			fmt.Sprintf("batch analysis error: %v", err), err)
	}

	if len(errorMap) > 0 {
		out.Errors = errorMap
	}
	return out, nil
}
