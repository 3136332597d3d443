package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/keydeck/keydeck-backend/internal/delivery"
	"github.com/keydeck/keydeck-backend/pkg/logger"
)

const stockRetryBatchSize = 100

type waitingStockRetrier interface {
	RetryWaitingStock(ctx context.Context, limit int) (delivery.RetrySummary, error)
}

// StockRetryJobParams configure the waiting-stock retry sweep.
type StockRetryJobParams struct {
	Logger   *logger.Logger
	Retrier  waitingStockRetrier
	Interval time.Duration
}

// NewStockRetryJob builds the job that replays orders parked on a stock
// shortage. Restocked orders deliver on the next tick without any manual
// action.
func NewStockRetryJob(params StockRetryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Retrier == nil {
		return nil, fmt.Errorf("retrier required")
	}
	return &stockRetryJob{
		logg:     params.Logger,
		retrier:  params.Retrier,
		interval: params.Interval,
	}, nil
}

type stockRetryJob struct {
	logg     *logger.Logger
	retrier  waitingStockRetrier
	interval time.Duration
}

func (j *stockRetryJob) Name() string { return "stock-retry" }

func (j *stockRetryJob) Interval() time.Duration { return j.interval }

func (j *stockRetryJob) Run(ctx context.Context) error {
	summary, err := j.retrier.RetryWaitingStock(ctx, stockRetryBatchSize)
	if summary.Delivered > 0 || summary.StillWaiting > 0 || summary.Failed > 0 {
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"delivered":     summary.Delivered,
			"still_waiting": summary.StillWaiting,
			"failed":        summary.Failed,
		})
		j.logg.Info(logCtx, "waiting-stock sweep finished")
	}
	return err
}
