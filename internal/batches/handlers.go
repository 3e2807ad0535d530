package batches

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// HandleCreate handles POST /v1/batches
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid request body")
		return
	}

	resp, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// HandleUpdate handles PUT /v1/batches/{id}
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	batchID, ok := pathBatchID(w, r)
	if !ok {
		return
	}

	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid request body")
		return
	}

	resp, err := h.service.Update(r.Context(), batchID, req)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleSubmit handles PATCH /v1/batches/{id}/submit
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	batchID, ok := pathBatchID(w, r)
	if !ok {
		return
	}

	if _, err := h.service.Submit(r.Context(), batchID); err != nil {
		h.handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetItems handles GET /v1/batches/{id}/items
func (h *Handler) HandleGetItems(w http.ResponseWriter, r *http.Request) {
	batchID, ok := pathBatchID(w, r)
	if !ok {
		return
	}

	resp, err := h.service.GetItems(r.Context(), batchID)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleGetRejectionReason handles GET /v1/batches/{id}/rejection-reason
func (h *Handler) HandleGetRejectionReason(w http.ResponseWriter, r *http.Request) {
	batchID, ok := pathBatchID(w, r)
	if !ok {
		return
	}

	resp, err := h.service.GetRejectionReason(r.Context(), batchID)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleApprove handles POST /v1/batches/approve
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	var req ApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid request body")
		return
	}

	if _, err := h.service.Approve(r.Context(), req); err != nil {
		h.handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleReject handles POST /v1/batches/{id}/reject
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	batchID, ok := pathBatchID(w, r)
	if !ok {
		return
	}

	var req RejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid request body")
		return
	}

	if _, err := h.service.Reject(r.Context(), batchID, req.Reason); err != nil {
		h.handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleEvent handles POST /v1/batches/{id}/events
func (h *Handler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	batchID, ok := pathBatchID(w, r)
	if !ok {
		return
	}

	var req EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid request body")
		return
	}

	resp, err := h.service.Advance(r.Context(), batchID, Event(strings.ToLower(strings.TrimSpace(string(req.Event)))))
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleDeleteContent handles DELETE /v1/batches/{id}/content?day=&meal_type=
func (h *Handler) HandleDeleteContent(w http.ResponseWriter, r *http.Request) {
	batchID, ok := pathBatchID(w, r)
	if !ok {
		return
	}

	var day *int
	if raw := strings.TrimSpace(r.URL.Query().Get("day")); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid day")
			return
		}
		day = &d
	}

	var mealType *MealType
	if raw := strings.TrimSpace(r.URL.Query().Get("meal_type")); raw != "" {
		mt, err := ParseMealType(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid meal_type")
			return
		}
		mealType = &mt
	}

	resp, err := h.service.DeleteContent(r.Context(), batchID, day, mealType)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleGetMonthlyMenu handles GET /v1/menus/{consumerId}?year=&month=
func (h *Handler) HandleGetMonthlyMenu(w http.ResponseWriter, r *http.Request) {
	consumerID, err := strconv.ParseInt(strings.TrimSpace(r.PathValue("consumerId")), 10, 64)
	if err != nil || consumerID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid consumer id")
		return
	}
	year, errY := strconv.Atoi(r.URL.Query().Get("year"))
	month, errM := strconv.Atoi(r.URL.Query().Get("month"))
	if errY != nil || errM != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "year and month are required")
		return
	}

	resp, err := h.service.GetMonthlyMenu(r.Context(), consumerID, year, month)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleList handles GET /v1/batches?consumer_id=&status=&limit=&offset=
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var consumerID int64
	if raw := strings.TrimSpace(q.Get("consumer_id")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid consumer_id")
			return
		}
		consumerID = parsed
	}

	limit, ok := queryInt(w, q.Get("limit"), "limit")
	if !ok {
		return
	}
	offset, ok := queryInt(w, q.Get("offset"), "offset")
	if !ok {
		return
	}

	resp, err := h.service.List(r.Context(), consumerID, strings.TrimSpace(q.Get("status")), limit, offset)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleMine handles GET /v1/me/batches
func (h *Handler) HandleMine(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r.URL.Query().Get("limit"), "limit")
	if !ok {
		return
	}

	resp, err := h.service.Mine(r.Context(), limit)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleStats handles GET /v1/batches/stats
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Stats(r.Context())
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleCalendar handles GET /v1/batches/{id}/calendar
func (h *Handler) HandleCalendar(w http.ResponseWriter, r *http.Request) {
	batchID, ok := pathBatchID(w, r)
	if !ok {
		return
	}

	cal, _, err := h.service.Calendar(r.Context(), batchID)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cal)
}

func (h *Handler) handleError(w http.ResponseWriter, err error) {
	var reqErr *RequestError
	var trErr *TransitionError
	switch {
	case errors.As(err, &reqErr):
		writeError(w, http.StatusBadRequest, "validation_failed", reqErr.Message)
	case errors.Is(err, ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request")
	case errors.Is(err, ErrEmptyBatch):
		writeError(w, http.StatusBadRequest, "empty_batch", "Batch has no items")
	case errors.Is(err, ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
	case errors.Is(err, ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", "Forbidden")
	case errors.Is(err, ErrBatchNotFound):
		writeError(w, http.StatusNotFound, "batch_not_found", "Batch not found")
	case errors.As(err, &trErr):
		writeError(w, http.StatusConflict, "invalid_transition", trErr.Error())
	case errors.Is(err, ErrStatusChanged):
		writeError(w, http.StatusConflict, "status_conflict", "Batch status changed, reload and retry")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

func pathBatchID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(r.PathValue("id")), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid batch id")
		return 0, false
	}
	return id, true
}

func queryInt(w http.ResponseWriter, raw, name string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid "+name)
		return 0, false
	}
	return v, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}
