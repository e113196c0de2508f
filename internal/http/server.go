// Package http exposes the receipt workflow as a JSON API: scan an image,
// preview the derived figures, save, and export.
package http

import (
	"context"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"ricevute/internal/cache"
	"ricevute/internal/core"
	"ricevute/internal/drive"
	"ricevute/internal/middleware/ratelimit"
	"ricevute/internal/services"
	"ricevute/internal/storage"
)

// ReceiptScanner is the OCR boundary. The result is untrusted JSON that goes
// straight through the sanitizer.
type ReceiptScanner interface {
	ScanReceipt(ctx context.Context, filename string, image io.Reader) (map[string]any, error)
}

type Server struct {
	http.Server

	receipts    *services.ReceiptService
	scanner     ReceiptScanner
	uploader    drive.Uploader
	sanitizeCfg core.SanitizeConfig

	limiter *ratelimit.Limiter

	// listCache keeps recent receipt listings; listGen is bumped on every
	// save so stale entries just age out of the LRU.
	listCache    *cache.LRUCache[[]storage.ReceiptSummary]
	listGen      atomic.Uint64
	cacheManager *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and returns a ready-to-run server. scanner and
// uploader may be nil; the scan endpoint then reports the capability as
// unavailable rather than failing at startup.
func NewServer(addr string, receipts *services.ReceiptService, scanner ReceiptScanner, uploader drive.Uploader, sanitizeCfg core.SanitizeConfig) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		receipts:     receipts,
		scanner:      scanner,
		uploader:     uploader,
		sanitizeCfg:  sanitizeCfg,
		limiter:      ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		listCache:    cache.NewLRUCache[[]storage.ReceiptSummary](16, 30*time.Second),
		cacheManager: cache.NewManager(),
	}

	s.cacheManager.Register(s.listCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("POST /api/scan", s.withAPIMiddleware(s.handleScan))
	mux.HandleFunc("POST /api/receipts/preview", s.withAPIMiddleware(s.handlePreview))
	mux.HandleFunc("POST /api/receipts/reconcile", s.withAPIMiddleware(s.handleReconcile))
	mux.HandleFunc("POST /api/receipts", s.withAPIMiddleware(s.handleSaveReceipt))
	mux.HandleFunc("GET /api/receipts", s.withAPIMiddleware(s.handleListReceipts))
	mux.HandleFunc("GET /api/receipts/{id}", s.withAPIMiddleware(s.handleGetReceipt))
	mux.HandleFunc("GET /api/receipts/{id}/clipboard", s.withAPIMiddleware(s.handleClipboard))
	mux.HandleFunc("GET /api/participants", s.withAPIMiddleware(s.handleParticipants))
	mux.HandleFunc("GET /api/status", s.withAPIMiddleware(s.handleStatus))

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		if s.cacheManager != nil {
			s.cacheManager.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
