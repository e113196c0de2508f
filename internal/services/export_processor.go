package services

import (
	"context"
	"fmt"
	"log/slog"

	"ricevute/internal/export"
	"ricevute/internal/sheets"
	"ricevute/internal/storage"
)

// ExportProcessor turns saved receipts into spreadsheet rows. It is driven
// both by AMQP messages and by the worker's pending-receipt sweep.
type ExportProcessor struct {
	storage      *storage.SQLiteRepository
	rows         sheets.RowAppender
	participants []string
}

func NewExportProcessor(storage *storage.SQLiteRepository, rows sheets.RowAppender, participants []string) *ExportProcessor {
	return &ExportProcessor{
		storage:      storage,
		rows:         rows,
		participants: participants,
	}
}

// EnsureHeader writes the sheet header when the appender supports it.
func (p *ExportProcessor) EnsureHeader(ctx context.Context) error {
	hw, ok := p.rows.(sheets.HeaderWriter)
	if !ok {
		return nil
	}
	if err := hw.EnsureHeader(ctx, export.Header(p.participants)); err != nil {
		return fmt.Errorf("ensure sheet header: %w", err)
	}
	return nil
}

// ProcessReceipt exports one receipt and records the outcome on its row.
func (p *ExportProcessor) ProcessReceipt(ctx context.Context, id string) error {
	receipt, err := p.storage.GetReceipt(ctx, id)
	if err != nil {
		return fmt.Errorf("get receipt %s: %w", id, err)
	}

	rows, err := export.BuildRows(*receipt, p.participants, receipt.FileRef)
	if err != nil {
		p.markError(ctx, id)
		return fmt.Errorf("build rows for receipt %s: %w", id, err)
	}

	ref, err := p.rows.AppendRows(ctx, rows)
	if err != nil {
		p.markError(ctx, id)
		return fmt.Errorf("append rows for receipt %s: %w", id, err)
	}

	if err := p.storage.MarkSynced(ctx, id, ref); err != nil {
		// The rows landed in the sheet, keep going but surface the problem.
		slog.WarnContext(ctx, "Failed to mark receipt as synced",
			"receipt_id", id, "error", err)
		return nil
	}

	slog.InfoContext(ctx, "Exported receipt to sheet",
		"receipt_id", id,
		"rows", len(rows),
		"sheets_ref", ref)

	return nil
}

// ProcessPending exports every receipt still marked pending, oldest first.
// It returns how many were exported successfully.
func (p *ExportProcessor) ProcessPending(ctx context.Context, batchSize int) (int, error) {
	ids, err := p.storage.GetPendingExports(ctx, batchSize)
	if err != nil {
		return 0, fmt.Errorf("get pending exports: %w", err)
	}

	processed := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}
		if err := p.ProcessReceipt(ctx, id); err != nil {
			slog.ErrorContext(ctx, "Failed to export pending receipt",
				"receipt_id", id, "error", err)
			continue
		}
		processed++
	}

	return processed, nil
}

func (p *ExportProcessor) markError(ctx context.Context, id string) {
	if err := p.storage.MarkSyncError(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to mark receipt sync error",
			"receipt_id", id, "error", err)
	}
}
