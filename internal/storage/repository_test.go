package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"ricevute/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "receipts.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testReceipt(id string) *core.Receipt {
	return &core.Receipt{
		ID:     id,
		Vendor: "FreshMart",
		Date:   "2024-03-15",
		Items: []core.ReceiptItem{
			{Description: "Milk", Price: 4.99, UnitPrice: 4.99, Quantity: 1, Taxable: true},
		},
		Subtotal:    4.99,
		Tax:         0.65,
		Total:       5.64,
		PaidBy:      "Anna",
		ExpenseType: core.ExpenseGroceries,
		Involved:    map[string]bool{"Anna": true, "Ben": true},
	}
}

func TestSaveAndGetReceipt(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	want := testReceipt("r-1")
	if err := repo.SaveReceipt(ctx, want); err != nil {
		t.Fatalf("SaveReceipt: %v", err)
	}

	got, err := repo.GetReceipt(ctx, "r-1")
	if err != nil {
		t.Fatalf("GetReceipt: %v", err)
	}
	if got.Vendor != want.Vendor || got.Total != want.Total {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if len(got.Items) != 1 || got.Items[0].Description != "Milk" {
		t.Errorf("items not round-tripped: %+v", got.Items)
	}
	if !got.Involved["Ben"] {
		t.Errorf("involvement not round-tripped: %+v", got.Involved)
	}
}

func TestGetReceipt_NotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetReceipt(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestListReceipts(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, id := range []string{"r-1", "r-2", "r-3"} {
		if err := repo.SaveReceipt(ctx, testReceipt(id)); err != nil {
			t.Fatalf("SaveReceipt(%s): %v", id, err)
		}
	}

	list, err := repo.ListReceipts(ctx, 2)
	if err != nil {
		t.Fatalf("ListReceipts: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d receipts, want 2", len(list))
	}
	for _, s := range list {
		if s.SyncStatus != SyncPending {
			t.Errorf("receipt %s sync_status = %q, want pending", s.ID, s.SyncStatus)
		}
	}
}

func TestPendingExportsAndMarkSynced(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.SaveReceipt(ctx, testReceipt("r-1")); err != nil {
		t.Fatalf("SaveReceipt: %v", err)
	}
	if err := repo.SaveReceipt(ctx, testReceipt("r-2")); err != nil {
		t.Fatalf("SaveReceipt: %v", err)
	}

	pending, err := repo.GetPendingExports(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingExports: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("got %d pending, want 2", len(pending))
	}

	if err := repo.MarkSynced(ctx, "r-1", "Receipts!A5:K5"); err != nil {
		t.Fatalf("MarkSynced: %v", err)
	}
	if err := repo.MarkSyncError(ctx, "r-2"); err != nil {
		t.Fatalf("MarkSyncError: %v", err)
	}

	pending, err = repo.GetPendingExports(ctx, 10)
	if err != nil {
		t.Fatalf("GetPendingExports: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("got %d pending after marking, want 0", len(pending))
	}

	counts, err := repo.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if counts[SyncSynced] != 1 || counts[SyncError] != 1 {
		t.Errorf("counts = %v", counts)
	}

	list, err := repo.ListReceipts(ctx, 10)
	if err != nil {
		t.Fatalf("ListReceipts: %v", err)
	}
	for _, s := range list {
		if s.ID == "r-1" && s.SheetsRef != "Receipts!A5:K5" {
			t.Errorf("sheets_ref = %q", s.SheetsRef)
		}
	}
}

func TestMarkSynced_NotFound(t *testing.T) {
	repo := newTestRepo(t)

	if err := repo.MarkSynced(context.Background(), "missing", "ref"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if err := repo.MarkSyncError(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}
