package report

import (
	"context"
	"log/slog"
)

// BatchArchiver uploads a sealed journal batch and returns where it went.
type BatchArchiver interface {
	PutBatch(ctx context.Context, b Batch) (string, error)
}

type ShipResult struct {
	Batches int
	Entries int
	Failed  int
}

// Ship seals the journal and uploads every pending batch. A batch is removed
// only after its upload succeeded; failures are left for the next run.
func Ship(ctx context.Context, j *Journal, archive BatchArchiver, logger *slog.Logger) (ShipResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var res ShipResult
	batches, err := j.Seal()
	if err != nil {
		return res, err
	}
	for _, b := range batches {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if len(b.Entries) == 0 {
			if err := j.Ack(b); err != nil {
				logger.Warn("drop empty batch failed", "path", b.Path, "err", err)
			}
			continue
		}
		key, err := archive.PutBatch(ctx, b)
		if err != nil {
			res.Failed++
			logger.Error("batch upload failed", "path", b.Path, "entries", len(b.Entries), "err", err)
			continue
		}
		if err := j.Ack(b); err != nil {
			logger.Error("batch ack failed", "path", b.Path, "key", key, "err", err)
			res.Failed++
			continue
		}
		res.Batches++
		res.Entries += len(b.Entries)
		logger.Info("batch archived", "key", key, "entries", len(b.Entries))
	}
	return res, nil
}
