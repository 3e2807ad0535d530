package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fdg312/menu-batches/internal/storage"
)

type menuKey struct {
	consumerID  int64
	year, month int
}

// MemoryStorage — in-memory реализация storage.Storage
type MemoryStorage struct {
	mu sync.RWMutex

	nextMenuID  int64
	nextBatchID int64
	nextItemID  int64

	menus      map[int64]storage.MonthlyMenu
	menuByKey  map[menuKey]int64
	batches    map[int64]storage.MenuBatch
	itemsBatch map[int64][]storage.MenuItem // key: batch_id

	now func() time.Time
}

// New создаёт пустой MemoryStorage
func New() *MemoryStorage {
	return &MemoryStorage{
		menus:      make(map[int64]storage.MonthlyMenu),
		menuByKey:  make(map[menuKey]int64),
		batches:    make(map[int64]storage.MenuBatch),
		itemsBatch: make(map[int64][]storage.MenuItem),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryStorage) Close() error {
	return nil
}

func (m *MemoryStorage) CreateBatch(ctx context.Context, b storage.BatchCreate, items []storage.MenuItemUpsert) (storage.MenuBatch, []storage.MenuItem, error) {
	if err := checkUnique(items); err != nil {
		return storage.MenuBatch{}, nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	key := menuKey{b.ConsumerID, b.Year, b.Month}
	menuID, ok := m.menuByKey[key]
	if !ok {
		m.nextMenuID++
		menuID = m.nextMenuID
		m.menus[menuID] = storage.MonthlyMenu{
			ID:           menuID,
			ConsumerID:   b.ConsumerID,
			Year:         b.Year,
			Month:        b.Month,
			DietaryNotes: cloneString(b.DietaryNotes),
			CreatedAt:    now,
		}
		m.menuByKey[key] = menuID
	}

	m.nextBatchID++
	batch := storage.MenuBatch{
		ID:           m.nextBatchID,
		MenuID:       menuID,
		ConsumerID:   b.ConsumerID,
		ProducerID:   b.ProducerID,
		Year:         b.Year,
		Month:        b.Month,
		DietaryNotes: cloneString(b.DietaryNotes),
		Status:       b.Status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	created := m.insertItemsLocked(batch.ID, items, now)
	batch.ItemCount = len(created)
	m.batches[batch.ID] = batch

	return batch, cloneItems(created), nil
}

func (m *MemoryStorage) GetBatch(ctx context.Context, batchID int64) (storage.MenuBatch, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.batches[batchID]
	return b, ok, nil
}

func (m *MemoryStorage) ListItems(ctx context.Context, batchID int64) ([]storage.MenuItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.batches[batchID]; !ok {
		return nil, storage.ErrBatchNotFound
	}
	return cloneItems(m.itemsBatch[batchID]), nil
}

func (m *MemoryStorage) ReplaceItems(ctx context.Context, batchID int64, from, to string, dietaryNotes *string, items []storage.MenuItemUpsert) (storage.MenuBatch, []storage.MenuItem, error) {
	if err := checkUnique(items); err != nil {
		return storage.MenuBatch{}, nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	batch, err := m.casLocked(batchID, from)
	if err != nil {
		return storage.MenuBatch{}, nil, err
	}

	now := m.now()
	delete(m.itemsBatch, batchID)
	created := m.insertItemsLocked(batchID, items, now)

	batch.Status = to
	batch.DietaryNotes = cloneString(dietaryNotes)
	batch.ItemCount = len(created)
	batch.UpdatedAt = now
	m.batches[batchID] = batch

	return batch, cloneItems(created), nil
}

func (m *MemoryStorage) TransitionStatus(ctx context.Context, batchID int64, from, to string, fields storage.StatusFields) (storage.MenuBatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	batch, err := m.casLocked(batchID, from)
	if err != nil {
		return storage.MenuBatch{}, err
	}
	if fields.RequireItems && len(m.itemsBatch[batchID]) == 0 {
		return storage.MenuBatch{}, storage.ErrNoItems
	}

	batch.Status = to
	if fields.ClearRejectionReason {
		batch.RejectionReason = nil
	}
	if fields.RejectionReason != nil {
		batch.RejectionReason = cloneString(fields.RejectionReason)
	}
	if fields.DeliveryNotes != nil {
		batch.DeliveryNotes = cloneString(fields.DeliveryNotes)
	}
	batch.UpdatedAt = m.now()
	m.batches[batchID] = batch

	return batch, nil
}

func (m *MemoryStorage) DeleteItems(ctx context.Context, batchID int64, from, to string, day *int, mealType *string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	batch, err := m.casLocked(batchID, from)
	if err != nil {
		return 0, err
	}

	kept := m.itemsBatch[batchID][:0:0]
	deleted := 0
	for _, it := range m.itemsBatch[batchID] {
		if (day == nil || it.Day == *day) && (mealType == nil || it.MealType == *mealType) {
			deleted++
			continue
		}
		kept = append(kept, it)
	}
	m.itemsBatch[batchID] = kept

	batch.Status = to
	batch.ItemCount = len(kept)
	batch.UpdatedAt = m.now()
	m.batches[batchID] = batch

	return deleted, nil
}

func (m *MemoryStorage) GetMonthlyMenu(ctx context.Context, consumerID int64, year, month int) (storage.MonthlyMenu, []storage.MenuBatch, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	menuID, ok := m.menuByKey[menuKey{consumerID, year, month}]
	if !ok {
		return storage.MonthlyMenu{}, nil, false, nil
	}

	var batches []storage.MenuBatch
	for _, b := range m.batches {
		if b.MenuID == menuID {
			batches = append(batches, b)
		}
	}
	sort.Slice(batches, func(i, j int) bool { return batches[i].ID < batches[j].ID })

	return m.menus[menuID], batches, true, nil
}

func (m *MemoryStorage) ListBatches(ctx context.Context, filter storage.BatchFilter) ([]storage.MenuBatch, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []storage.MenuBatch
	for _, b := range m.batches {
		if filter.ProducerID != "" && b.ProducerID != filter.ProducerID {
			continue
		}
		if filter.ConsumerID != 0 && b.ConsumerID != filter.ConsumerID {
			continue
		}
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		matched = append(matched, b)
	}

	// newest first, same as postgres
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].UpdatedAt.Equal(matched[j].UpdatedAt) {
			return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := len(matched)
	if filter.Offset >= total {
		return []storage.MenuBatch{}, total, nil
	}
	end := total
	if filter.Limit > 0 && filter.Offset+filter.Limit < end {
		end = filter.Offset + filter.Limit
	}

	return matched[filter.Offset:end], total, nil
}

func (m *MemoryStorage) CountByStatus(ctx context.Context, producerID string) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[string]int)
	for _, b := range m.batches {
		if producerID != "" && b.ProducerID != producerID {
			continue
		}
		counts[b.Status]++
	}
	return counts, nil
}

// Helper methods (must be called with lock held)

func (m *MemoryStorage) casLocked(batchID int64, from string) (storage.MenuBatch, error) {
	batch, ok := m.batches[batchID]
	if !ok {
		return storage.MenuBatch{}, storage.ErrBatchNotFound
	}
	if batch.Status != from {
		return storage.MenuBatch{}, storage.ErrStatusConflict
	}
	return batch, nil
}

func (m *MemoryStorage) insertItemsLocked(batchID int64, items []storage.MenuItemUpsert, now time.Time) []storage.MenuItem {
	created := make([]storage.MenuItem, 0, len(items))
	for _, in := range items {
		m.nextItemID++
		created = append(created, storage.MenuItem{
			ID:          m.nextItemID,
			BatchID:     batchID,
			Day:         in.Day,
			MealType:    in.MealType,
			Description: in.Description,
			Calories:    in.Calories,
			Protein:     in.Protein,
			Carbs:       in.Carbs,
			Fats:        in.Fats,
			CreatedAt:   now,
		})
	}
	sort.SliceStable(created, func(i, j int) bool {
		if created[i].Day != created[j].Day {
			return created[i].Day < created[j].Day
		}
		return storage.MealRank(created[i].MealType) < storage.MealRank(created[j].MealType)
	})
	m.itemsBatch[batchID] = created
	return created
}

func checkUnique(items []storage.MenuItemUpsert) error {
	type slot struct {
		day      int
		mealType string
	}
	seen := make(map[slot]bool, len(items))
	for _, it := range items {
		k := slot{it.Day, it.MealType}
		if seen[k] {
			return storage.ErrDuplicateItem
		}
		seen[k] = true
	}
	return nil
}

func cloneItems(items []storage.MenuItem) []storage.MenuItem {
	out := make([]storage.MenuItem, len(items))
	copy(out, items)
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
