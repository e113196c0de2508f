package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ricevute/internal/amqp"
	"ricevute/internal/services"
)

// ExportWorker drives receipt exports from two sources: AMQP messages for
// freshly saved receipts and a periodic sweep over receipts still pending.
// The sweep is the backup mechanism in case AMQP messages are lost.
type ExportWorker struct {
	processor *services.ExportProcessor
	batchSize int
	interval  time.Duration
}

func NewExportWorker(processor *services.ExportProcessor, batchSize int, interval time.Duration) *ExportWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &ExportWorker{
		processor: processor,
		batchSize: batchSize,
		interval:  interval,
	}
}

// HandleExportMessage processes a single receipt export message from AMQP
func (w *ExportWorker) HandleExportMessage(ctx context.Context, msg *amqp.ReceiptExportMessage) error {
	slog.InfoContext(ctx, "Processing export message",
		"receipt_id", msg.ReceiptID)

	if err := w.processor.ProcessReceipt(ctx, msg.ReceiptID); err != nil {
		return fmt.Errorf("process receipt %s: %w", msg.ReceiptID, err)
	}
	return nil
}

// StartupCheck exports any receipts left pending while the worker was down.
func (w *ExportWorker) StartupCheck(ctx context.Context) error {
	if err := w.processor.EnsureHeader(ctx); err != nil {
		slog.WarnContext(ctx, "Failed to ensure sheet header", "error", err)
	}

	// A larger batch for startup, the backlog may have grown
	n, err := w.processor.ProcessPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup export check: %w", err)
	}

	if n == 0 {
		slog.InfoContext(ctx, "No pending receipts found on startup")
	} else {
		slog.InfoContext(ctx, "Startup export completed", "exported", n)
	}
	return nil
}

// RunPendingSweep periodically exports pending receipts until the context is
// cancelled.
func (w *ExportWorker) RunPendingSweep(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping pending sweep", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			n, err := w.processor.ProcessPending(ctx, w.batchSize)
			if err != nil {
				slog.ErrorContext(ctx, "Pending sweep failed", "error", err)
				continue
			}
			if n > 0 {
				slog.InfoContext(ctx, "Pending sweep exported receipts", "count", n)
			}
		}
	}
}
