package http

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/ramodal61/n8n/internal/catalog"
	"github.com/ramodal61/n8n/internal/remote"
	"github.com/ramodal61/n8n/internal/table"
)

// AdminHandler handles the operational endpoints: remote sync, single-table
// download, catalog prune, and orphan cleanup.
type AdminHandler struct {
	syncer   *remote.Syncer // may be nil when no remote drive is configured
	dataDir  string
	metaPath string
	exclude  []string
}

// NewAdminHandler creates an admin handler. exclude lists file names in
// dataDir that cleanup must never touch (the progress ledger, for one).
func NewAdminHandler(syncer *remote.Syncer, dataDir, metaPath string, exclude []string) *AdminHandler {
	return &AdminHandler{
		syncer:   syncer,
		dataDir:  dataDir,
		metaPath: metaPath,
		exclude:  exclude,
	}
}

// HandleSync handles POST /v1/sync: one full remote sync pass.
func (h *AdminHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}
	if h.syncer == nil {
		writeError(w, http.StatusNotImplemented, "no remote storage configured", requestID)
		return
	}

	result, err := h.syncer.SyncWithResult(r.Context())
	if err != nil {
		writeFailure(w, err, requestID)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleDownload handles POST /v1/tables/{name}/download: fetch a single
// table from the remote drive if it is not already present locally.
func (h *AdminHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}
	if h.syncer == nil {
		writeError(w, http.StatusNotImplemented, "no remote storage configured", requestID)
		return
	}

	// Path shape: /v1/tables/{name}/download
	trimmed := strings.TrimPrefix(r.URL.Path, "/v1/tables/")
	name := strings.TrimSuffix(trimmed, "/download")
	if name == "" || name == trimmed || strings.Contains(name, "/") {
		writeError(w, http.StatusBadRequest, "table name is required", requestID)
		return
	}

	saved, err := h.syncer.DownloadTable(r.Context(), name)
	if err != nil {
		writeFailure(w, err, requestID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"table":      name,
		"file":       saved,
		"request_id": requestID,
	})
}

// HandlePrune handles POST /v1/meta/prune: drop catalog entries whose
// status, suffix, or on-disk backing no longer qualifies.
func (h *AdminHandler) HandlePrune(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}

	result, err := catalog.Prune(r.Context(), h.metaPath, h.dataDir, catalog.PruneOptions{
		Suffix: table.DataFileSuffix,
	})
	if err != nil {
		writeFailure(w, err, requestID)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleCleanup handles POST /v1/meta/cleanup: delete data-directory files
// that no catalog references.
func (h *AdminHandler) HandleCleanup(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}

	result, err := catalog.CleanupOrphans(r.Context(), h.dataDir,
		[]string{h.metaPath}, h.exclude)
	if err != nil {
		writeFailure(w, err, requestID)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HealthHandler handles GET /v1/health.
type HealthHandler struct {
	version string
	dataDir string
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(version, dataDir string) *HealthHandler {
	return &HealthHandler{version: version, dataDir: dataDir}
}

// ServeHTTP reports liveness and the configured data directory.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"version":  h.version,
		"data_dir": filepath.Clean(h.dataDir),
	})
}
