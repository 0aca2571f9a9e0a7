package http

import (
	"net/http"

	"github.com/ramodal61/n8n/internal/batch"
)

// BatchHandler handles POST /v1/batch/run requests: one allocation round.
type BatchHandler struct {
	allocator *batch.Allocator
}

// NewBatchHandler creates a new batch handler.
func NewBatchHandler(allocator *batch.Allocator) *BatchHandler {
	return &BatchHandler{allocator: allocator}
}

// ServeHTTP runs one allocation round and returns its result.
func (h *BatchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}

	result, err := h.allocator.Run(r.Context())
	if err != nil {
		writeFailure(w, err, requestID)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
