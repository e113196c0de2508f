package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"ricevute/internal/core"
	"ricevute/internal/services"
	"ricevute/internal/storage"
)

type fakeScanner struct {
	result map[string]any
	err    error
}

func (f *fakeScanner) ScanReceipt(_ context.Context, _ string, _ io.Reader) (map[string]any, error) {
	return f.result, f.err
}

func newTestServer(t *testing.T, scanner ReceiptScanner) *Server {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "receipts.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	participants := []string{"Anna", "Ben", "Carla"}
	svc := services.NewReceiptService(repo, nil, participants)
	cfg := core.SanitizeConfig{DefaultTaxRate: 13, Participants: participants}
	return NewServer(":0", svc, scanner, nil, cfg)
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func validReceiptBody() core.Receipt {
	return core.Receipt{
		Vendor: "FreshMart",
		Date:   "2024-03-15",
		Items: []core.ReceiptItem{
			{Description: "Milk", Price: 4.99, Quantity: 1, Taxable: true},
			{Description: "Bread", Price: 3.50, Quantity: 1, Taxable: true},
		},
		TaxConfig: core.TaxConfig{Mode: core.TaxPreset, Rate: 13},
		Involved:  map[string]bool{"Anna": true, "Ben": true},
		PaidBy:    "Anna",
	}
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, nil)
	rec := doJSON(t, s, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestPreview(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doJSON(t, s, http.MethodPost, "/api/receipts/preview", validReceiptBody())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp previewResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Totals.Subtotal != 8.49 {
		t.Errorf("subtotal = %v, want 8.49", resp.Totals.Subtotal)
	}
	if resp.Totals.Tax != 1.10 {
		t.Errorf("tax = %v, want 1.10", resp.Totals.Tax)
	}
	if resp.Totals.Total != 9.59 {
		t.Errorf("total = %v, want 9.59", resp.Totals.Total)
	}
	// 9.59 split two ways
	if resp.Shares["Anna"] != 4.80 || resp.Shares["Ben"] != 4.80 {
		t.Errorf("shares = %v", resp.Shares)
	}
	if len(resp.Problems) != 0 {
		t.Errorf("unexpected problems: %v", resp.Problems)
	}
}

func TestPreview_NoParticipants(t *testing.T) {
	s := newTestServer(t, nil)

	body := validReceiptBody()
	body.Involved = map[string]bool{}

	rec := doJSON(t, s, http.MethodPost, "/api/receipts/preview", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp previewResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Shares != nil {
		t.Errorf("shares should be omitted, got %v", resp.Shares)
	}
	if _, ok := resp.Problems["involved"]; !ok {
		t.Errorf("problems should flag involvement: %v", resp.Problems)
	}
}

func TestReconcile(t *testing.T) {
	s := newTestServer(t, nil)

	req := reconcileRequest{
		Item:    core.ReceiptItem{Description: "Eggs", UnitPrice: 2.50, Quantity: 3},
		Changed: core.FieldUnitPrice,
	}
	rec := doJSON(t, s, http.MethodPost, "/api/receipts/reconcile", req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Item core.ReceiptItem `json:"item"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Item.Price != 7.50 {
		t.Errorf("price = %v, want 7.50", resp.Item.Price)
	}
}

func TestReconcile_UnknownField(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doJSON(t, s, http.MethodPost, "/api/receipts/reconcile", map[string]any{
		"item":    core.ReceiptItem{},
		"changed": "vendor",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSaveGetListClipboard(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doJSON(t, s, http.MethodPost, "/api/receipts", validReceiptBody())
	if rec.Code != http.StatusCreated {
		t.Fatalf("save status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode save response: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected receipt ID")
	}

	rec = doJSON(t, s, http.MethodGet, "/api/receipts/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var got core.Receipt
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode receipt: %v", err)
	}
	if got.Vendor != "FreshMart" {
		t.Errorf("vendor = %q", got.Vendor)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/receipts?limit=10", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var list struct {
		Receipts []storage.ReceiptSummary `json:"receipts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Receipts) != 1 {
		t.Fatalf("got %d receipts, want 1", len(list.Receipts))
	}

	rec = doJSON(t, s, http.MethodGet, "/api/receipts/"+created.ID+"/clipboard", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("clipboard status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "tab-separated") {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "FreshMart") {
		t.Errorf("clipboard body = %q", rec.Body.String())
	}
}

func TestSaveReceipt_Invalid(t *testing.T) {
	s := newTestServer(t, nil)

	body := validReceiptBody()
	body.Vendor = ""

	rec := doJSON(t, s, http.MethodPost, "/api/receipts", body)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if _, ok := resp.Fields["vendor"]; !ok {
		t.Errorf("fields = %v, want vendor entry", resp.Fields)
	}
}

func TestGetReceipt_NotFound(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doJSON(t, s, http.MethodGet, "/api/receipts/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestParticipants(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doJSON(t, s, http.MethodGet, "/api/participants", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Participants []string `json:"participants"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Participants) != 3 || resp.Participants[0] != "Anna" {
		t.Errorf("participants = %v", resp.Participants)
	}
}

func TestScan(t *testing.T) {
	scanner := &fakeScanner{result: map[string]any{
		"merchant_name": "FreshMart",
		"date":          "2024-03-15",
		"items": []any{
			map[string]any{"name": "Milk", "price": "4.99", "qty": 1},
		},
		"total": "5.64",
	}}
	s := newTestServer(t, scanner)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "receipt.jpg")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	part.Write([]byte("fake image"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/scan", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp previewResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Receipt.Vendor != "FreshMart" {
		t.Errorf("vendor = %q", resp.Receipt.Vendor)
	}
	if len(resp.Receipt.Items) != 1 {
		t.Fatalf("items = %v", resp.Receipt.Items)
	}
	// The sanitizer backfills the 13% preset on the scanned item.
	if resp.Receipt.TaxConfig.Mode != core.TaxPreset {
		t.Errorf("tax mode = %q", resp.Receipt.TaxConfig.Mode)
	}
}

func TestPreview_TaxableDefaultsTrue(t *testing.T) {
	s := newTestServer(t, nil)

	// Items posted without a taxable field must still be taxed
	body := map[string]any{
		"vendor": "FreshMart",
		"date":   "2024-03-15",
		"items": []map[string]any{
			{"description": "Milk", "price": 10.00, "quantity": 1},
		},
		"tax_config": map[string]any{"mode": "preset", "rate": 13},
		"involved":   map[string]bool{"Anna": true, "Ben": true},
		"paid_by":    "Anna",
	}

	rec := doJSON(t, s, http.MethodPost, "/api/receipts/preview", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp previewResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Totals.Tax != 1.30 {
		t.Errorf("tax = %v, want 1.30", resp.Totals.Tax)
	}
	if len(resp.Receipt.Items) != 1 || !resp.Receipt.Items[0].Taxable {
		t.Errorf("items = %+v, want taxable item", resp.Receipt.Items)
	}
}

func TestStatus(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doJSON(t, s, http.MethodPost, "/api/receipts", validReceiptBody())
	if rec.Code != http.StatusCreated {
		t.Fatalf("save status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, s, http.MethodGet, "/api/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Sync          map[string]int64 `json:"sync"`
		ActiveClients int              `json:"active_clients"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Sync[storage.SyncPending] != 1 {
		t.Errorf("pending count = %d, want 1", resp.Sync[storage.SyncPending])
	}
	// The POST above went through the rate limiter
	if resp.ActiveClients != 1 {
		t.Errorf("active clients = %d, want 1", resp.ActiveClients)
	}
}

func TestScan_NotConfigured(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/scan", strings.NewReader(""))
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}
