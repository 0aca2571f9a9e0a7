package http

import (
	"net/http"
	"strconv"

	"github.com/ramodal61/n8n/internal/ledger"
	"github.com/ramodal61/n8n/internal/progress"
)

// ProgressResponse is the body of a progress query.
type ProgressResponse struct {
	Progress     ledger.Ledger `json:"progress"`
	TotalRecords int64         `json:"total_records"`
	AllProcessed int64         `json:"all_processed"`
	RequestID    string        `json:"request_id"`
}

// ProgressHandler handles GET /v1/progress requests.
// Query parameters: file (single record), estimated (filter by flag).
type ProgressHandler struct {
	manager *progress.Manager
}

// NewProgressHandler creates a new progress handler.
func NewProgressHandler(manager *progress.Manager) *ProgressHandler {
	return &ProgressHandler{manager: manager}
}

// ServeHTTP serves the current progress snapshot.
func (h *ProgressHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}

	query := r.URL.Query()

	if file := query.Get("file"); file != "" {
		rec, err := h.manager.FileProgress(r.Context(), file)
		if err != nil {
			writeFailure(w, err, requestID)
			return
		}
		writeJSON(w, http.StatusOK, ProgressResponse{
			Progress:     ledger.Ledger{file: rec},
			TotalRecords: rec.Total,
			AllProcessed: rec.Processed,
			RequestID:    requestID,
		})
		return
	}

	led, err := h.manager.AllProgress(r.Context())
	if err != nil {
		writeFailure(w, err, requestID)
		return
	}

	if v := query.Get("estimated"); v != "" {
		want, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "estimated must be a boolean", requestID)
			return
		}
		filtered := ledger.Ledger{}
		for name, rec := range led {
			if rec.IsEstimated == want {
				filtered[name] = rec
			}
		}
		led = filtered
	}

	writeJSON(w, http.StatusOK, ProgressResponse{
		Progress:     led,
		TotalRecords: led.TotalRows(),
		AllProcessed: led.TotalProcessed(),
		RequestID:    requestID,
	})
}
