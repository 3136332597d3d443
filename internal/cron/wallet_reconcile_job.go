package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/keydeck/keydeck-backend/pkg/logger"
)

const walletReconcileBatchSize = 100

type walletReconciler interface {
	ReconcileUncredited(ctx context.Context, limit int) error
}

// WalletReconcileJobParams configure the uncredited-order sweep.
type WalletReconcileJobParams struct {
	Logger     *logger.Logger
	Reconciler walletReconciler
	Interval   time.Duration
}

// NewWalletReconcileJob builds the job that repairs wallet credits lost to
// crashes between delivery and ledger write.
func NewWalletReconcileJob(params WalletReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	return &walletReconcileJob{
		logg:       params.Logger,
		reconciler: params.Reconciler,
		interval:   params.Interval,
	}, nil
}

type walletReconcileJob struct {
	logg       *logger.Logger
	reconciler walletReconciler
	interval   time.Duration
}

func (j *walletReconcileJob) Name() string { return "wallet-reconcile" }

func (j *walletReconcileJob) Interval() time.Duration { return j.interval }

func (j *walletReconcileJob) Run(ctx context.Context) error {
	return j.reconciler.ReconcileUncredited(ctx, walletReconcileBatchSize)
}
