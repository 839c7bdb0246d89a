package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"collectibles-market/config"
	"collectibles-market/models"
	"collectibles-market/utils"
)

// ErrNotScheduled marks batch items skipped because the batch was cancelled
// before they started.
var ErrNotScheduled = errors.New("batch cancelled before item started")

// BatchPublisher publishes many listing requests with bounded concurrency.
// One item failing never affects the others.
type BatchPublisher struct {
	publisher   *Publisher
	concurrency int
	pacer       *utils.Pacer
	logger      *utils.Logger
}

func NewBatchPublisher(publisher *Publisher, cfg config.Publishing, logger *utils.Logger) *BatchPublisher {
	return &BatchPublisher{
		publisher:   publisher,
		concurrency: cfg.MaxConcurrency,
		pacer:       publisher.Pacer(),
		logger:      logger,
	}
}

// PublishBatch publishes every request and reports one result per request,
// in input order. Cancelling ctx stops new items from starting; those are
// reported with ErrNotScheduled.
func (b *BatchPublisher) PublishBatch(ctx context.Context, userID string, reqs []models.ListingRequest) models.BatchResult {
	result := models.BatchResult{
		ID:    uuid.NewString(),
		Items: make([]models.BatchItemResult, len(reqs)),
	}
	pool := utils.NewPacedWorkerPool(b.concurrency, b.pacer)

	b.logger.Info("[batch] %s: publishing %d listings (concurrency %d)", result.ID, len(reqs), b.concurrency)

	for i := range reqs {
		req := reqs[i]
		if req.UserID == "" {
			req.UserID = userID
		}
		slot := &result.Items[i]
		slot.Index = i
		if len(req.Items) > 0 {
			slot.ItemRef = req.Items[0].Ref
		}

		submitted := pool.Submit(ctx, func() {
			rec, err := b.publisher.Publish(ctx, req)
			if err != nil {
				slot.Err = err
				slot.Error = err.Error()
				slot.Record = rec
				return
			}
			slot.Record = rec
		})
		if !submitted {
			slot.Err = fmt.Errorf("%w: %v", ErrNotScheduled, context.Cause(ctx))
			slot.Error = slot.Err.Error()
		}
	}
	pool.Wait()

	failed := result.Failed()
	for _, f := range failed {
		b.logger.Warn("[batch] %s: item %d (%s) failed: %s", result.ID, f.Index, f.ItemRef, f.Error)
	}
	b.logger.Info("[batch] %s: %d published, %d failed", result.ID, result.Succeeded(), len(failed))
	return result
}
