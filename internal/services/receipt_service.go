package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"ricevute/internal/core"
	"ricevute/internal/export"
	"ricevute/internal/storage"

	"github.com/google/uuid"
)

// ExportPublisher enqueues a receipt for background export.
type ExportPublisher interface {
	PublishReceiptExport(ctx context.Context, receiptID string) error
}

// ValidationError carries the per-field problems that block saving a receipt.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("receipt not valid: %s", strings.Join(keys, ", "))
}

// ReceiptService orchestrates receipt operations across SQLite and AMQP
type ReceiptService struct {
	storage      *storage.SQLiteRepository
	publisher    ExportPublisher
	participants []string
}

func NewReceiptService(storage *storage.SQLiteRepository, publisher ExportPublisher, participants []string) *ReceiptService {
	return &ReceiptService{
		storage:      storage,
		publisher:    publisher,
		participants: participants,
	}
}

// SaveReceipt validates and stores a receipt, then publishes an export
// message. A publish failure does not fail the save, the worker picks up
// pending receipts on its own schedule.
func (s *ReceiptService) SaveReceipt(ctx context.Context, receipt *core.Receipt) (string, error) {
	if fields := core.ValidateForExport(*receipt); len(fields) > 0 {
		return "", &ValidationError{Fields: fields}
	}

	if receipt.ID == "" {
		receipt.ID = uuid.NewString()
	}
	if receipt.ExpenseType == "" {
		receipt.ExpenseType = core.ExpenseOther
	}
	receipt.SavedAt = time.Now().UTC()

	// Save to SQLite first (fast, reliable)
	if err := s.storage.SaveReceipt(ctx, receipt); err != nil {
		return "", fmt.Errorf("save receipt: %w", err)
	}

	// Publish async export message (non-blocking)
	if err := s.publishExportMessage(ctx, receipt.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to publish export message",
			"receipt_id", receipt.ID, "error", err)
		// Don't fail the request - receipt is saved locally
	}

	return receipt.ID, nil
}

// GetReceipt returns a single saved receipt
func (s *ReceiptService) GetReceipt(ctx context.Context, id string) (*core.Receipt, error) {
	return s.storage.GetReceipt(ctx, id)
}

// ListReceipts returns the most recent saved receipts
func (s *ReceiptService) ListReceipts(ctx context.Context, limit int) ([]storage.ReceiptSummary, error) {
	return s.storage.ListReceipts(ctx, limit)
}

// Clipboard renders a saved receipt as tab-separated rows ready to paste
// into the spreadsheet.
func (s *ReceiptService) Clipboard(ctx context.Context, id string) (string, error) {
	receipt, err := s.storage.GetReceipt(ctx, id)
	if err != nil {
		return "", err
	}

	rows, err := export.BuildRows(*receipt, s.participants, receipt.FileRef)
	if err != nil {
		return "", fmt.Errorf("build rows for receipt %s: %w", id, err)
	}

	return export.TSV(rows), nil
}

// SyncStatus reports how many receipts sit in each export sync state.
func (s *ReceiptService) SyncStatus(ctx context.Context) (map[string]int64, error) {
	return s.storage.CountByStatus(ctx)
}

// Participants returns the configured household roster.
func (s *ReceiptService) Participants() []string {
	return s.participants
}

func (s *ReceiptService) publishExportMessage(ctx context.Context, id string) error {
	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP publisher not available, skipping export message")
		return nil
	}
	return s.publisher.PublishReceiptExport(ctx, id)
}

// Close closes the underlying storage
func (s *ReceiptService) Close() error {
	if s.storage != nil {
		return s.storage.Close()
	}
	return nil
}
