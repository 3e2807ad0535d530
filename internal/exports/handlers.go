package exports

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/fdg312/menu-batches/internal/batches"
)

// Handlers handles HTTP requests for exports
type Handlers struct {
	service *Service
}

func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// HandleExport handles GET /v1/batches/{id}/export?format=pdf|csv
func (h *Handlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	batchID, err := strconv.ParseInt(strings.TrimSpace(r.PathValue("id")), 10, 64)
	if err != nil || batchID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_id", "Invalid batch id")
		return
	}

	res, err := h.service.Export(r.Context(), batchID, r.URL.Query().Get("format"))
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidFormat):
			writeError(w, http.StatusBadRequest, "invalid_format", "Format must be 'pdf' or 'csv'")
		case errors.Is(err, batches.ErrBatchNotFound):
			writeError(w, http.StatusNotFound, "batch_not_found", "Batch not found")
		case errors.Is(err, batches.ErrForbidden):
			writeError(w, http.StatusForbidden, "forbidden", "Forbidden")
		case errors.Is(err, batches.ErrUnauthorized):
			writeError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		}
		return
	}

	if res.URL != "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(batches.ExportResponse{URL: res.URL, ExpiresAt: res.ExpiresAt})
		return
	}

	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, res.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(res.Data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(batches.ErrorResponse{
		Error: batches.ErrorDetail{Code: code, Message: message},
	})
}
