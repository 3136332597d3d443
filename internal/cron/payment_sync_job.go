package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/keydeck/keydeck-backend/pkg/logger"
)

const paymentSyncBatchSize = 200

type paymentSweeper interface {
	Sweep(ctx context.Context, limit int) error
}

// PaymentSyncJobParams configure the gateway reconciliation sweep.
type PaymentSyncJobParams struct {
	Logger   *logger.Logger
	Sweeper  paymentSweeper
	Interval time.Duration
}

// NewPaymentSyncJob builds the job that polls the PIX gateway for every
// order still awaiting payment.
func NewPaymentSyncJob(params PaymentSyncJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sweeper == nil {
		return nil, fmt.Errorf("sweeper required")
	}
	return &paymentSyncJob{
		logg:     params.Logger,
		sweeper:  params.Sweeper,
		interval: params.Interval,
	}, nil
}

type paymentSyncJob struct {
	logg     *logger.Logger
	sweeper  paymentSweeper
	interval time.Duration
}

func (j *paymentSyncJob) Name() string { return "payment-sync" }

func (j *paymentSyncJob) Interval() time.Duration { return j.interval }

func (j *paymentSyncJob) Run(ctx context.Context) error {
	return j.sweeper.Sweep(ctx, paymentSyncBatchSize)
}
