package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"ricevute/internal/core"
	"ricevute/internal/export"
	"ricevute/internal/services"
	"ricevute/internal/storage"
)

const maxUploadBytes = 10 << 20

// previewResponse is the full derived view of a receipt: recomputed figures,
// per-participant shares and anything that would block saving.
type previewResponse struct {
	Receipt  core.Receipt       `json:"receipt"`
	Totals   core.Totals        `json:"totals"`
	Shares   map[string]float64 `json:"shares,omitempty"`
	Problems map[string]string  `json:"problems,omitempty"`
}

// handleScan accepts a receipt image, runs it through OCR and returns the
// sanitized receipt ready for editing.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if s.scanner == nil {
		writeError(w, http.StatusServiceUnavailable, "receipt scanning is not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing receipt file")
		return
	}
	defer file.Close()

	raw, err := s.scanner.ScanReceipt(ctx, header.Filename, file)
	if err != nil {
		slog.ErrorContext(ctx, "OCR scan failed", "filename", header.Filename, "error", err)
		writeError(w, http.StatusBadGateway, "receipt scan failed")
		return
	}

	receipt := core.Sanitize(raw, s.sanitizeCfg)

	// Back up the original image when a Drive uploader is wired in. A backup
	// failure degrades to a receipt without a file reference.
	if s.uploader != nil {
		if _, err := file.Seek(0, 0); err == nil {
			name := export.BackupFilename(time.Now(), backupExt(header.Filename))
			mimeType := header.Header.Get("Content-Type")
			fileRef, err := s.uploader.Upload(ctx, name, mimeType, file)
			if err != nil {
				slog.WarnContext(ctx, "Receipt backup upload failed",
					"filename", header.Filename, "error", err)
			} else {
				receipt.FileRef = fileRef
			}
		}
	}

	writeJSON(w, http.StatusOK, s.buildPreview(receipt))
}

// handlePreview recomputes tax, totals and shares for an edited receipt
// without saving anything.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var receipt core.Receipt
	if err := json.NewDecoder(r.Body).Decode(&receipt); err != nil {
		writeError(w, http.StatusBadRequest, "invalid receipt JSON")
		return
	}
	writeJSON(w, http.StatusOK, s.buildPreview(receipt))
}

// buildPreview derives every figure the UI shows from the receipt state: tax
// from its configuration, totals from the items, shares from involvement.
func (s *Server) buildPreview(receipt core.Receipt) previewResponse {
	if receipt.TaxConfig.Mode != "" {
		receipt.Tax = core.ComputeTax(receipt.Items, receipt.TaxConfig)
	}

	var reported *float64
	if receipt.Total > 0 {
		t := receipt.Total
		reported = &t
	}
	totals := core.VerifyTotals(receipt.Items, receipt.Tax, receipt.Tip, reported)
	receipt.Subtotal = totals.Subtotal
	receipt.Total = totals.Total

	resp := previewResponse{Receipt: receipt, Totals: totals}

	shares, err := core.ComputeShares(receipt)
	if err == nil {
		resp.Shares = shares
	}

	problems := core.ValidateForExport(receipt)
	if errors.Is(err, core.ErrNoParticipants) {
		problems["involved"] = "at least one participant must be involved"
	}
	if len(problems) > 0 {
		resp.Problems = problems
	}
	return resp
}

type reconcileRequest struct {
	Item    core.ReceiptItem `json:"item"`
	Changed core.Field       `json:"changed"`
}

// handleReconcile applies the three-way price/unit-price/quantity rule to a
// single edited item.
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid reconcile request")
		return
	}
	switch req.Changed {
	case core.FieldPrice, core.FieldUnitPrice, core.FieldQuantity:
	default:
		writeError(w, http.StatusBadRequest, "changed must be one of price, unit_price, quantity")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Item core.ReceiptItem `json:"item"`
	}{Item: core.ReconcileItem(req.Item, req.Changed)})
}

func (s *Server) handleSaveReceipt(w http.ResponseWriter, r *http.Request) {
	var receipt core.Receipt
	if err := json.NewDecoder(r.Body).Decode(&receipt); err != nil {
		writeError(w, http.StatusBadRequest, "invalid receipt JSON")
		return
	}

	id, err := s.receipts.SaveReceipt(r.Context(), &receipt)
	if err != nil {
		var verr *services.ValidationError
		if errors.As(err, &verr) {
			writeFieldErrors(w, http.StatusUnprocessableEntity, "receipt not valid", verr.Fields)
			return
		}
		slog.ErrorContext(r.Context(), "Failed to save receipt", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save receipt")
		return
	}

	// Invalidate cached listings
	s.listGen.Add(1)

	writeJSON(w, http.StatusCreated, struct {
		ID string `json:"id"`
	}{ID: id})
}

func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	cacheKey := fmt.Sprintf("%d:%d", s.listGen.Load(), limit)
	list, cached := s.listCache.Get(cacheKey)
	if !cached {
		var err error
		list, err = s.receipts.ListReceipts(r.Context(), limit)
		if err != nil {
			slog.ErrorContext(r.Context(), "Failed to list receipts", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to list receipts")
			return
		}
		s.listCache.Set(cacheKey, list)
	}
	if list == nil {
		list = []storage.ReceiptSummary{}
	}

	writeJSON(w, http.StatusOK, struct {
		Receipts []storage.ReceiptSummary `json:"receipts"`
	}{Receipts: list})
}

func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	receipt, err := s.receipts.GetReceipt(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "receipt not found")
			return
		}
		slog.ErrorContext(r.Context(), "Failed to get receipt", "receipt_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get receipt")
		return
	}

	writeJSON(w, http.StatusOK, receipt)
}

// handleClipboard returns the receipt as tab-separated plain text, ready to
// paste into the spreadsheet.
func (s *Server) handleClipboard(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	tsv, err := s.receipts.Clipboard(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			writeError(w, http.StatusNotFound, "receipt not found")
		case errors.Is(err, core.ErrNoParticipants):
			writeError(w, http.StatusUnprocessableEntity, "receipt has no involved participants")
		default:
			slog.ErrorContext(r.Context(), "Failed to build clipboard", "receipt_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to build clipboard payload")
		}
		return
	}

	w.Header().Set("Content-Type", "text/tab-separated-values; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(tsv))
}

func (s *Server) handleParticipants(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Participants []string `json:"participants"`
	}{Participants: s.receipts.Participants()})
}

// handleStatus reports export sync counts and rate limiter activity for
// operational checks.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := s.receipts.SyncStatus(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to count sync states", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read sync status")
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Sync          map[string]int64 `json:"sync"`
		ActiveClients int              `json:"active_clients"`
	}{Sync: counts, ActiveClients: s.limiter.ActiveClients()})
}

func backupExt(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" {
		return "jpg"
	}
	return ext
}
