package batches

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/fdg312/menu-batches/internal/calendar"
	"github.com/fdg312/menu-batches/internal/config"
	"github.com/fdg312/menu-batches/internal/storage"
	"github.com/fdg312/menu-batches/internal/userctx"
)

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrInvalidRequest = errors.New("invalid request")
	ErrBatchNotFound  = errors.New("batch not found")
	ErrEmptyBatch     = errors.New("batch has no items")
	ErrStatusChanged  = errors.New("batch status changed")
)

// RequestError is a validation failure with a client-facing message.
type RequestError struct {
	Message string
}

func (e *RequestError) Error() string { return e.Message }

func (e *RequestError) Unwrap() error { return ErrInvalidRequest }

func invalid(format string, args ...any) error {
	return &RequestError{Message: fmt.Sprintf(format, args...)}
}

// Service handles batch business logic. It is the authority for status changes.
type Service struct {
	storage          storage.BatchesStorage
	listMaxLimit     int
	deliveryNotesMax int
}

// NewService creates a new batches service.
func NewService(st storage.BatchesStorage, cfg *config.Config) *Service {
	s := &Service{
		storage:          st,
		listMaxLimit:     100,
		deliveryNotesMax: DeliveryNotesMaxLen,
	}
	if cfg != nil {
		if cfg.BatchListMaxLimit > 0 {
			s.listMaxLimit = cfg.BatchListMaxLimit
		}
		if cfg.DeliveryNotesMax > 0 {
			s.deliveryNotesMax = cfg.DeliveryNotesMax
		}
	}
	return s
}

// Create stores a new DRAFT batch (createBatch).
func (s *Service) Create(ctx context.Context, req BatchRequest) (*BatchDetails, error) {
	a := actorFromContext(ctx)
	if !a.is(userctx.RoleProducer) {
		return nil, ErrForbidden
	}

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, &RequestError{Message: err.Error()}
	}

	batch, items, err := s.storage.CreateBatch(ctx, storage.BatchCreate{
		ConsumerID:   req.ConsumerID,
		ProducerID:   a.userID,
		Year:         req.Year,
		Month:        req.Month,
		DietaryNotes: req.DietaryNotes,
		Status:       string(StatusDraft),
	}, toUpserts(req.Items))
	if err != nil {
		return nil, mapStorageError(err)
	}

	log.Printf("INFO batches: created batch=%d consumer=%d %04d-%02d items=%d", batch.ID, batch.ConsumerID, batch.Year, batch.Month, len(items))
	return toDetails(batch, items), nil
}

// Update replaces all items of an editable batch (updateBatch).
func (s *Service) Update(ctx context.Context, batchID int64, req BatchRequest) (*BatchDetails, error) {
	batch, err := s.getForProducer(ctx, batchID)
	if err != nil {
		return nil, err
	}

	req.Normalize()
	if req.ConsumerID == 0 {
		req.ConsumerID = batch.ConsumerID
	}
	if req.Year == 0 && req.Month == 0 {
		req.Year, req.Month = batch.Year, batch.Month
	}
	if req.ConsumerID != batch.ConsumerID || req.Year != batch.Year || req.Month != batch.Month {
		return nil, invalid("consumer_id, year and month of a batch cannot change")
	}
	if err := req.Validate(); err != nil {
		return nil, &RequestError{Message: err.Error()}
	}

	from := Status(batch.Status)
	to, err := Apply(from, EventEdit)
	if err != nil {
		return nil, err
	}

	updated, items, err := s.storage.ReplaceItems(ctx, batchID, string(from), string(to), req.DietaryNotes, toUpserts(req.Items))
	if err != nil {
		return nil, mapStorageError(err)
	}

	return toDetails(updated, items), nil
}

// Submit sends a batch to the consumer (submitBatch).
func (s *Service) Submit(ctx context.Context, batchID int64) (*BatchDTO, error) {
	batch, err := s.getForProducer(ctx, batchID)
	if err != nil {
		return nil, err
	}

	from := Status(batch.Status)
	to, err := Apply(from, EventSubmit)
	if err != nil {
		return nil, err
	}
	if batch.ItemCount == 0 {
		return nil, ErrEmptyBatch
	}

	updated, err := s.storage.TransitionStatus(ctx, batchID, string(from), string(to), storage.StatusFields{ClearRejectionReason: true, RequireItems: true})
	if err != nil {
		return nil, mapStorageError(err)
	}

	log.Printf("INFO batches: submitted batch=%d from=%s", batchID, from)
	dto := toDTO(updated)
	return &dto, nil
}

// GetItems returns the batch with its items (fetchBatchItems).
func (s *Service) GetItems(ctx context.Context, batchID int64) (*BatchDetails, error) {
	batch, err := s.getReadable(ctx, batchID)
	if err != nil {
		return nil, err
	}

	items, err := s.storage.ListItems(ctx, batchID)
	if err != nil {
		return nil, mapStorageError(err)
	}

	return toDetails(batch, items), nil
}

// GetRejectionReason returns the stored reason, nil when never rejected.
func (s *Service) GetRejectionReason(ctx context.Context, batchID int64) (*RejectionReasonResponse, error) {
	batch, err := s.getReadable(ctx, batchID)
	if err != nil {
		return nil, err
	}

	return &RejectionReasonResponse{
		BatchID: batch.ID,
		Status:  Status(batch.Status),
		Reason:  batch.RejectionReason,
	}, nil
}

// Approve is the consumer accepting the batch (approveBatch).
func (s *Service) Approve(ctx context.Context, req ApproveRequest) (*BatchDTO, error) {
	if req.BatchID <= 0 {
		return nil, invalid("batch_id is required")
	}

	notes := trimmedOrNil(req.DeliveryNotes)
	if err := ValidateDeliveryNotes(notes, s.deliveryNotesMax); err != nil {
		return nil, &RequestError{Message: err.Error()}
	}

	batch, err := s.getForConsumer(ctx, req.BatchID)
	if err != nil {
		return nil, err
	}

	from := Status(batch.Status)
	to, err := Apply(from, EventApprove)
	if err != nil {
		return nil, err
	}

	updated, err := s.storage.TransitionStatus(ctx, batch.ID, string(from), string(to), storage.StatusFields{DeliveryNotes: notes})
	if err != nil {
		return nil, mapStorageError(err)
	}

	log.Printf("INFO batches: approved batch=%d from=%s", batch.ID, from)
	dto := toDTO(updated)
	return &dto, nil
}

// Reject is the consumer sending the batch back with a reason (rejectBatch).
func (s *Service) Reject(ctx context.Context, batchID int64, reason string) (*BatchDTO, error) {
	if err := ValidateRejectionReason(reason); err != nil {
		return nil, &RequestError{Message: err.Error()}
	}
	reason = strings.TrimSpace(reason)

	batch, err := s.getForConsumer(ctx, batchID)
	if err != nil {
		return nil, err
	}

	from := Status(batch.Status)
	to, err := Apply(from, EventReject)
	if err != nil {
		return nil, err
	}

	updated, err := s.storage.TransitionStatus(ctx, batchID, string(from), string(to), storage.StatusFields{RejectionReason: &reason})
	if err != nil {
		return nil, mapStorageError(err)
	}

	log.Printf("INFO batches: rejected batch=%d from=%s", batchID, from)
	dto := toDTO(updated)
	return &dto, nil
}

// Advance applies a fulfillment event (queue, prepare, ready, cancel).
func (s *Service) Advance(ctx context.Context, batchID int64, event Event) (*BatchDTO, error) {
	a := actorFromContext(ctx)
	if !a.is(userctx.RoleOperator) {
		return nil, ErrForbidden
	}
	if !OperatorEvent(event) {
		return nil, invalid("unsupported event %q", event)
	}

	batch, found, err := s.storage.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrBatchNotFound
	}

	from := Status(batch.Status)
	to, err := Apply(from, event)
	if err != nil {
		return nil, err
	}

	updated, err := s.storage.TransitionStatus(ctx, batchID, string(from), string(to), storage.StatusFields{})
	if err != nil {
		return nil, mapStorageError(err)
	}

	log.Printf("INFO batches: event=%s batch=%d %s -> %s", event, batchID, from, to)
	dto := toDTO(updated)
	return &dto, nil
}

// DeleteContent removes the items of one day and/or one meal type.
func (s *Service) DeleteContent(ctx context.Context, batchID int64, day *int, mealType *MealType) (*DeleteContentResponse, error) {
	if day == nil && mealType == nil {
		return nil, invalid("day or meal_type is required")
	}

	batch, err := s.getForProducer(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if day != nil && !calendar.ValidDay(batch.Year, batch.Month, *day) {
		return nil, invalid("day must be 1-%d", calendar.DaysInMonth(batch.Year, batch.Month))
	}
	var mt *string
	if mealType != nil {
		if !mealType.Valid() {
			return nil, invalid("invalid meal_type")
		}
		v := string(*mealType)
		mt = &v
	}

	from := Status(batch.Status)
	to, err := Apply(from, EventEdit)
	if err != nil {
		return nil, err
	}

	n, err := s.storage.DeleteItems(ctx, batchID, string(from), string(to), day, mt)
	if err != nil {
		return nil, mapStorageError(err)
	}

	return &DeleteContentResponse{Deleted: n}, nil
}

// GetMonthlyMenu returns all batches of a consumer's month; Menu is nil when none exist.
func (s *Service) GetMonthlyMenu(ctx context.Context, consumerID int64, year, month int) (*GetMonthlyMenuResponse, error) {
	if consumerID <= 0 || !calendar.ValidMonth(month) {
		return nil, invalid("consumer_id, year and month are required")
	}

	a := actorFromContext(ctx)
	if a.enforced() && a.role == userctx.RoleConsumer && !a.ownsAsConsumer(consumerID) {
		return nil, ErrForbidden
	}

	menu, batches, found, err := s.storage.GetMonthlyMenu(ctx, consumerID, year, month)
	if err != nil {
		return nil, err
	}
	if !found {
		return &GetMonthlyMenuResponse{Menu: nil}, nil
	}

	dto := &MonthlyMenuDTO{
		ID:           menu.ID,
		ConsumerID:   menu.ConsumerID,
		Year:         menu.Year,
		Month:        menu.Month,
		DietaryNotes: menu.DietaryNotes,
		CreatedAt:    menu.CreatedAt,
		Batches:      []MenuBatchDTO{},
	}
	for _, b := range batches {
		if !a.canRead(b) {
			continue
		}
		items, err := s.storage.ListItems(ctx, b.ID)
		if err != nil {
			return nil, mapStorageError(err)
		}
		dto.Batches = append(dto.Batches, MenuBatchDTO{
			BatchID: b.ID,
			Status:  Status(b.Status),
			Items:   toItems(items),
		})
	}

	return &GetMonthlyMenuResponse{Menu: dto}, nil
}

// List returns batches visible to the caller, newest first.
func (s *Service) List(ctx context.Context, consumerID int64, status string, limit, offset int) (*ListBatchesResponse, error) {
	a := actorFromContext(ctx)

	filter := storage.BatchFilter{ConsumerID: consumerID}
	if status != "" {
		st, err := ParseStatus(status)
		if err != nil {
			return nil, invalid("invalid status")
		}
		filter.Status = string(st)
	}

	switch {
	case !a.enforced(), a.role == userctx.RoleOperator:
	case a.role == userctx.RoleProducer:
		filter.ProducerID = a.userID
	case a.role == userctx.RoleConsumer:
		id, ok := a.consumerID()
		if !ok || (consumerID != 0 && consumerID != id) {
			return nil, ErrForbidden
		}
		filter.ConsumerID = id
	default:
		return nil, ErrForbidden
	}

	if limit <= 0 {
		limit = 20
	}
	if limit > s.listMaxLimit {
		limit = s.listMaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	filter.Limit, filter.Offset = limit, offset

	rows, total, err := s.storage.ListBatches(ctx, filter)
	if err != nil {
		return nil, err
	}

	dtos := make([]BatchDTO, 0, len(rows))
	for _, b := range rows {
		dtos = append(dtos, toDTO(b))
	}

	return &ListBatchesResponse{Batches: dtos, Total: total, Limit: limit, Offset: offset}, nil
}

// Mine returns the caller's recent batches with items (consumer "my menu").
func (s *Service) Mine(ctx context.Context, limit int) (*MyBatchesResponse, error) {
	a := actorFromContext(ctx)
	id, ok := a.consumerID()
	if a.enforced() && (a.role != userctx.RoleConsumer || !ok) {
		return nil, ErrForbidden
	}
	if !ok {
		return &MyBatchesResponse{Batches: []BatchDetails{}}, nil
	}
	if limit <= 0 || limit > s.listMaxLimit {
		limit = 12
	}

	rows, _, err := s.storage.ListBatches(ctx, storage.BatchFilter{ConsumerID: id, Limit: limit})
	if err != nil {
		return nil, err
	}

	resp := &MyBatchesResponse{Batches: make([]BatchDetails, 0, len(rows))}
	for _, b := range rows {
		items, err := s.storage.ListItems(ctx, b.ID)
		if err != nil {
			return nil, mapStorageError(err)
		}
		resp.Batches = append(resp.Batches, *toDetails(b, items))
	}
	return resp, nil
}

// Stats returns the producer dashboard counters.
func (s *Service) Stats(ctx context.Context) (*StatsResponse, error) {
	a := actorFromContext(ctx)
	producerID := ""
	switch {
	case !a.enforced(), a.role == userctx.RoleOperator:
	case a.role == userctx.RoleProducer:
		producerID = a.userID
	default:
		return nil, ErrForbidden
	}

	counts, err := s.storage.CountByStatus(ctx, producerID)
	if err != nil {
		return nil, err
	}

	resp := &StatsResponse{ByStatus: make(map[Status]int, len(AllStatuses))}
	for _, st := range AllStatuses {
		n := counts[string(st)]
		resp.ByStatus[st] = n
		resp.Total += n
		switch {
		case st == StatusDraft:
			resp.Draft += n
		case st == StatusRejected:
			resp.Rejected += n
		case CanApprove(st):
			resp.Pending += n
		case st == StatusApproved || st == StatusPreparing:
			resp.Active += n
		}
	}
	return resp, nil
}

// Calendar returns the grouped view of a batch.
func (s *Service) Calendar(ctx context.Context, batchID int64) (*Calendar, *BatchDTO, error) {
	details, err := s.GetItems(ctx, batchID)
	if err != nil {
		return nil, nil, err
	}
	cal := GroupItemsByDay(details.Batch.Year, details.Batch.Month, Inputs(details.Items))
	return &cal, &details.Batch, nil
}

func (s *Service) getBatch(ctx context.Context, batchID int64) (storage.MenuBatch, error) {
	if batchID <= 0 {
		return storage.MenuBatch{}, invalid("invalid batch id")
	}
	batch, found, err := s.storage.GetBatch(ctx, batchID)
	if err != nil {
		return storage.MenuBatch{}, err
	}
	if !found {
		return storage.MenuBatch{}, ErrBatchNotFound
	}
	return batch, nil
}

func (s *Service) getReadable(ctx context.Context, batchID int64) (storage.MenuBatch, error) {
	batch, err := s.getBatch(ctx, batchID)
	if err != nil {
		return storage.MenuBatch{}, err
	}
	if !actorFromContext(ctx).canRead(batch) {
		return storage.MenuBatch{}, ErrBatchNotFound
	}
	return batch, nil
}

func (s *Service) getForProducer(ctx context.Context, batchID int64) (storage.MenuBatch, error) {
	a := actorFromContext(ctx)
	if !a.is(userctx.RoleProducer) {
		return storage.MenuBatch{}, ErrForbidden
	}
	batch, err := s.getBatch(ctx, batchID)
	if err != nil {
		return storage.MenuBatch{}, err
	}
	if !a.ownsAsProducer(batch) {
		return storage.MenuBatch{}, ErrBatchNotFound
	}
	return batch, nil
}

func (s *Service) getForConsumer(ctx context.Context, batchID int64) (storage.MenuBatch, error) {
	a := actorFromContext(ctx)
	if !a.is(userctx.RoleConsumer) {
		return storage.MenuBatch{}, ErrForbidden
	}
	batch, err := s.getBatch(ctx, batchID)
	if err != nil {
		return storage.MenuBatch{}, err
	}
	if !a.ownsAsConsumer(batch.ConsumerID) {
		return storage.MenuBatch{}, ErrBatchNotFound
	}
	return batch, nil
}

func mapStorageError(err error) error {
	switch {
	case errors.Is(err, storage.ErrBatchNotFound):
		return ErrBatchNotFound
	case errors.Is(err, storage.ErrStatusConflict):
		return ErrStatusChanged
	case errors.Is(err, storage.ErrNoItems):
		return ErrEmptyBatch
	case errors.Is(err, storage.ErrDuplicateItem):
		return invalid("duplicate (day, meal_type)")
	}
	return err
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func toUpserts(items []ItemInput) []storage.MenuItemUpsert {
	out := make([]storage.MenuItemUpsert, len(items))
	for i, it := range items {
		out[i] = storage.MenuItemUpsert{
			Day:         it.Day,
			MealType:    string(it.MealType),
			Description: it.Description,
			Calories:    it.Calories,
			Protein:     it.Protein,
			Carbs:       it.Carbs,
			Fats:        it.Fats,
		}
	}
	return out
}

func toDTO(b storage.MenuBatch) BatchDTO {
	return BatchDTO{
		ID:              b.ID,
		MenuID:          b.MenuID,
		ConsumerID:      b.ConsumerID,
		ProducerID:      b.ProducerID,
		Year:            b.Year,
		Month:           b.Month,
		DietaryNotes:    b.DietaryNotes,
		Status:          Status(b.Status),
		RejectionReason: b.RejectionReason,
		DeliveryNotes:   b.DeliveryNotes,
		ItemCount:       b.ItemCount,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

func toItems(items []storage.MenuItem) []Item {
	out := make([]Item, len(items))
	for i, it := range items {
		out[i] = Item{
			ID:      it.ID,
			BatchID: it.BatchID,
			ItemInput: ItemInput{
				Day:         it.Day,
				MealType:    MealType(it.MealType),
				Description: it.Description,
				Calories:    it.Calories,
				Protein:     it.Protein,
				Carbs:       it.Carbs,
				Fats:        it.Fats,
			},
		}
	}
	return out
}

func toDetails(b storage.MenuBatch, items []storage.MenuItem) *BatchDetails {
	return &BatchDetails{Batch: toDTO(b), Items: toItems(items)}
}
