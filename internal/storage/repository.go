package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"ricevute/internal/core"

	_ "modernc.org/sqlite"
)

// Sync status values for the receipts table.
const (
	SyncPending = "pending"
	SyncSynced  = "synced"
	SyncError   = "error"
)

var ErrNotFound = errors.New("receipt not found")

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SaveReceipt stores a receipt with sync_status pending. The full receipt is
// kept as a JSON payload, a few columns are denormalized for listing.
func (r *SQLiteRepository) SaveReceipt(ctx context.Context, receipt *core.Receipt) error {
	payload, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("marshal receipt: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO receipts (id, vendor, date, total, paid_by, expense_type, payload, sync_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		receipt.ID, receipt.Vendor, receipt.Date, receipt.Total,
		receipt.PaidBy, string(receipt.ExpenseType), string(payload), SyncPending)
	if err != nil {
		return fmt.Errorf("insert receipt: %w", err)
	}

	slog.InfoContext(ctx, "Receipt saved to SQLite",
		"receipt_id", receipt.ID,
		"vendor", receipt.Vendor,
		"total", receipt.Total,
		"items", len(receipt.Items))

	return nil
}

// GetReceipt retrieves a single receipt by ID
func (r *SQLiteRepository) GetReceipt(ctx context.Context, id string) (*core.Receipt, error) {
	var payload string
	err := r.db.QueryRowContext(ctx,
		`SELECT payload FROM receipts WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get receipt %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get receipt %s: %w", id, err)
	}

	var receipt core.Receipt
	if err := json.Unmarshal([]byte(payload), &receipt); err != nil {
		return nil, fmt.Errorf("unmarshal receipt %s: %w", id, err)
	}
	return &receipt, nil
}

// ReceiptSummary is the listing view of a saved receipt.
type ReceiptSummary struct {
	ID          string    `json:"id"`
	Vendor      string    `json:"vendor"`
	Date        string    `json:"date"`
	Total       float64   `json:"total"`
	PaidBy      string    `json:"paid_by"`
	ExpenseType string    `json:"expense_type"`
	SyncStatus  string    `json:"sync_status"`
	SheetsRef   string    `json:"sheets_ref,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ListReceipts returns the most recent receipts, newest first.
func (r *SQLiteRepository) ListReceipts(ctx context.Context, limit int) ([]ReceiptSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, vendor, date, total, paid_by, expense_type, sync_status, sheets_ref, created_at
		FROM receipts
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	defer rows.Close()

	var out []ReceiptSummary
	for rows.Next() {
		var s ReceiptSummary
		if err := rows.Scan(&s.ID, &s.Vendor, &s.Date, &s.Total, &s.PaidBy,
			&s.ExpenseType, &s.SyncStatus, &s.SheetsRef, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan receipt row: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate receipt rows: %w", err)
	}
	return out, nil
}

// GetPendingExports returns receipts that still need to be exported to the
// spreadsheet, oldest first.
func (r *SQLiteRepository) GetPendingExports(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id FROM receipts
		WHERE sync_status = ?
		ORDER BY created_at ASC
		LIMIT ?`, SyncPending, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending exports: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan pending export row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending export rows: %w", err)
	}
	return ids, nil
}

// MarkSynced marks a receipt as successfully exported and records the
// spreadsheet range it landed in.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id, sheetsRef string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE receipts
		SET sync_status = ?, sheets_ref = ?, synced_at = CURRENT_TIMESTAMP
		WHERE id = ?`, SyncSynced, sheetsRef, id)
	if err != nil {
		return fmt.Errorf("mark receipt synced: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("mark receipt synced %s: %w", id, ErrNotFound)
	}

	slog.InfoContext(ctx, "Receipt marked as synced", "receipt_id", id, "sheets_ref", sheetsRef)
	return nil
}

// MarkSyncError marks a receipt as having failed export
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE receipts SET sync_status = ? WHERE id = ?`, SyncError, id)
	if err != nil {
		return fmt.Errorf("mark receipt sync error: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("mark receipt sync error %s: %w", id, ErrNotFound)
	}

	slog.WarnContext(ctx, "Receipt marked with sync error", "receipt_id", id)
	return nil
}

// CountByStatus returns how many receipts carry each sync status.
func (r *SQLiteRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT sync_status, COUNT(*) FROM receipts GROUP BY sync_status`)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	counts := map[string]int64{}
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}
	return counts, nil
}
