// Package worker runs the background cascade sweeper: it consumes
// wallet-cascade jobs from the queue and replays unfinished cascades
// left behind by a crash.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/pocketbook/ledger-engine/ledger"
	"github.com/pocketbook/ledger-engine/queue"
)

// CascadeWorker drains cascade jobs until its context is canceled.
type CascadeWorker struct {
	Deleter        *ledger.CascadeDeleter
	ResumeInterval time.Duration
}

func NewCascadeWorker(deleter *ledger.CascadeDeleter) *CascadeWorker {
	return &CascadeWorker{
		Deleter:        deleter,
		ResumeInterval: 5 * time.Minute,
	}
}

// HandleCascadeMessage processes one queued cascade job. Returning an
// error requeues the job.
func (w *CascadeWorker) HandleCascadeMessage(ctx context.Context, msg *queue.CascadeMessage) error {
	slog.InfoContext(ctx, "processing cascade job", "wallet_id", msg.WalletID)
	return w.Deleter.Cascade(ctx, msg.WalletID)
}

// RunResumeLoop replays unfinished cascades at startup and then on a
// timer, so jobs lost between marker write and publish are not orphaned.
func (w *CascadeWorker) RunResumeLoop(ctx context.Context) error {
	interval := w.ResumeInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	if err := w.Deleter.Resume(ctx); err != nil {
		slog.ErrorContext(ctx, "initial cascade resume failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Deleter.Resume(ctx); err != nil {
				slog.ErrorContext(ctx, "cascade resume failed", "error", err)
			}
		}
	}
}
