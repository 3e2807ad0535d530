package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/fdg312/menu-batches/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const batchColumns = `
	b.id, b.menu_id, b.consumer_id, b.producer_id, b.year, b.month, b.dietary_notes,
	b.status, b.rejection_reason, b.delivery_notes,
	(SELECT COUNT(*) FROM menu_items i WHERE i.batch_id = b.id) AS item_count,
	b.created_at, b.updated_at`

const itemColumns = `id, batch_id, day, meal_type, description, calories, protein, carbs, fats, created_at`

// same order as storage.MealRank
const mealOrderSQL = `
	CASE meal_type
		WHEN 'BREAKFAST' THEN 0
		WHEN 'SNACK' THEN 1
		WHEN 'LUNCH' THEN 2
		WHEN 'DINNER' THEN 3
		ELSE 4
	END`

const uniqueViolation = "23505"

type batchesStorage struct {
	pool *pgxpool.Pool
}

func newBatchesStorage(pool *pgxpool.Pool) *batchesStorage {
	return &batchesStorage{pool: pool}
}

// rowScanner covers pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(row rowScanner) (storage.MenuBatch, error) {
	var b storage.MenuBatch
	err := row.Scan(
		&b.ID,
		&b.MenuID,
		&b.ConsumerID,
		&b.ProducerID,
		&b.Year,
		&b.Month,
		&b.DietaryNotes,
		&b.Status,
		&b.RejectionReason,
		&b.DeliveryNotes,
		&b.ItemCount,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	return b, err
}

func scanItem(row rowScanner) (storage.MenuItem, error) {
	var it storage.MenuItem
	err := row.Scan(
		&it.ID,
		&it.BatchID,
		&it.Day,
		&it.MealType,
		&it.Description,
		&it.Calories,
		&it.Protein,
		&it.Carbs,
		&it.Fats,
		&it.CreatedAt,
	)
	return it, err
}

func (s *batchesStorage) CreateBatch(ctx context.Context, b storage.BatchCreate, items []storage.MenuItemUpsert) (storage.MenuBatch, []storage.MenuItem, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storage.MenuBatch{}, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// monthly menu is created on first batch of the month
	var menuID int64
	menuQuery := `
		INSERT INTO monthly_menus (consumer_id, year, month, dietary_notes)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (consumer_id, year, month) DO UPDATE SET consumer_id = EXCLUDED.consumer_id
		RETURNING id
	`
	if err := tx.QueryRow(ctx, menuQuery, b.ConsumerID, b.Year, b.Month, b.DietaryNotes).Scan(&menuID); err != nil {
		return storage.MenuBatch{}, nil, fmt.Errorf("failed to upsert monthly menu: %w", err)
	}

	var batchID int64
	batchQuery := `
		INSERT INTO menu_batches (menu_id, consumer_id, producer_id, year, month, dietary_notes, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err = tx.QueryRow(ctx, batchQuery, menuID, b.ConsumerID, b.ProducerID, b.Year, b.Month, b.DietaryNotes, b.Status).Scan(&batchID)
	if err != nil {
		return storage.MenuBatch{}, nil, fmt.Errorf("failed to create batch: %w", err)
	}

	created, err := insertItems(ctx, tx, batchID, items)
	if err != nil {
		return storage.MenuBatch{}, nil, err
	}

	batch, err := getBatch(ctx, tx, batchID)
	if err != nil {
		return storage.MenuBatch{}, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return storage.MenuBatch{}, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return batch, created, nil
}

func (s *batchesStorage) GetBatch(ctx context.Context, batchID int64) (storage.MenuBatch, bool, error) {
	b, err := getBatch(ctx, s.pool, batchID)
	if errors.Is(err, storage.ErrBatchNotFound) {
		return storage.MenuBatch{}, false, nil
	}
	if err != nil {
		return storage.MenuBatch{}, false, err
	}
	return b, true, nil
}

func (s *batchesStorage) ListItems(ctx context.Context, batchID int64) ([]storage.MenuItem, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM menu_batches WHERE id = $1)`, batchID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check batch: %w", err)
	}
	if !exists {
		return nil, storage.ErrBatchNotFound
	}
	return listItems(ctx, s.pool, batchID)
}

func (s *batchesStorage) ReplaceItems(ctx context.Context, batchID int64, from, to string, dietaryNotes *string, items []storage.MenuItemUpsert) (storage.MenuBatch, []storage.MenuItem, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storage.MenuBatch{}, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockBatch(ctx, tx, batchID, from); err != nil {
		return storage.MenuBatch{}, nil, err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM menu_items WHERE batch_id = $1`, batchID); err != nil {
		return storage.MenuBatch{}, nil, fmt.Errorf("failed to delete batch items: %w", err)
	}

	created, err := insertItems(ctx, tx, batchID, items)
	if err != nil {
		return storage.MenuBatch{}, nil, err
	}

	updateQuery := `
		UPDATE menu_batches
		SET status = $2, dietary_notes = $3, updated_at = NOW()
		WHERE id = $1
	`
	if _, err := tx.Exec(ctx, updateQuery, batchID, to, dietaryNotes); err != nil {
		return storage.MenuBatch{}, nil, fmt.Errorf("failed to update batch: %w", err)
	}

	batch, err := getBatch(ctx, tx, batchID)
	if err != nil {
		return storage.MenuBatch{}, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return storage.MenuBatch{}, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return batch, created, nil
}

func (s *batchesStorage) TransitionStatus(ctx context.Context, batchID int64, from, to string, fields storage.StatusFields) (storage.MenuBatch, error) {
	query := `
		UPDATE menu_batches
		SET status = $3,
		    rejection_reason = CASE WHEN $4 THEN NULL ELSE COALESCE($5, rejection_reason) END,
		    delivery_notes = COALESCE($6, delivery_notes),
		    updated_at = NOW()
		WHERE id = $1 AND status = $2
		  AND (NOT $7 OR EXISTS (SELECT 1 FROM menu_items WHERE batch_id = $1))
	`

	tag, err := s.pool.Exec(ctx, query,
		batchID,
		from,
		to,
		fields.ClearRejectionReason && fields.RejectionReason == nil,
		fields.RejectionReason,
		fields.DeliveryNotes,
		fields.RequireItems,
	)
	if err != nil {
		return storage.MenuBatch{}, fmt.Errorf("failed to update batch status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		b, found, err := s.GetBatch(ctx, batchID)
		if err != nil {
			return storage.MenuBatch{}, err
		}
		if !found {
			return storage.MenuBatch{}, storage.ErrBatchNotFound
		}
		if b.Status == from && fields.RequireItems {
			return storage.MenuBatch{}, storage.ErrNoItems
		}
		return storage.MenuBatch{}, storage.ErrStatusConflict
	}

	return getBatch(ctx, s.pool, batchID)
}

func (s *batchesStorage) DeleteItems(ctx context.Context, batchID int64, from, to string, day *int, mealType *string) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockBatch(ctx, tx, batchID, from); err != nil {
		return 0, err
	}

	deleteQuery := `
		DELETE FROM menu_items
		WHERE batch_id = $1
		  AND ($2::int IS NULL OR day = $2)
		  AND ($3::text IS NULL OR meal_type = $3)
	`
	tag, err := tx.Exec(ctx, deleteQuery, batchID, day, mealType)
	if err != nil {
		return 0, fmt.Errorf("failed to delete batch content: %w", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE menu_batches SET status = $2, updated_at = NOW() WHERE id = $1`, batchID, to); err != nil {
		return 0, fmt.Errorf("failed to update batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

func (s *batchesStorage) GetMonthlyMenu(ctx context.Context, consumerID int64, year, month int) (storage.MonthlyMenu, []storage.MenuBatch, bool, error) {
	menuQuery := `
		SELECT id, consumer_id, year, month, dietary_notes, created_at
		FROM monthly_menus
		WHERE consumer_id = $1 AND year = $2 AND month = $3
	`

	var menu storage.MonthlyMenu
	err := s.pool.QueryRow(ctx, menuQuery, consumerID, year, month).Scan(
		&menu.ID,
		&menu.ConsumerID,
		&menu.Year,
		&menu.Month,
		&menu.DietaryNotes,
		&menu.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.MonthlyMenu{}, nil, false, nil
	}
	if err != nil {
		return storage.MonthlyMenu{}, nil, false, fmt.Errorf("failed to get monthly menu: %w", err)
	}

	rows, err := s.pool.Query(ctx, `SELECT `+batchColumns+` FROM menu_batches b WHERE b.menu_id = $1 ORDER BY b.id`, menu.ID)
	if err != nil {
		return storage.MonthlyMenu{}, nil, false, fmt.Errorf("failed to list menu batches: %w", err)
	}
	batches, err := collectBatches(rows)
	if err != nil {
		return storage.MonthlyMenu{}, nil, false, err
	}

	return menu, batches, true, nil
}

func (s *batchesStorage) ListBatches(ctx context.Context, filter storage.BatchFilter) ([]storage.MenuBatch, int, error) {
	where := `
		WHERE ($1 = '' OR b.producer_id = $1)
		  AND ($2::bigint = 0 OR b.consumer_id = $2)
		  AND ($3 = '' OR b.status = $3)
	`

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM menu_batches b`+where,
		filter.ProducerID, filter.ConsumerID, filter.Status,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count batches: %w", err)
	}

	// LIMIT NULL means no limit
	var limit *int
	if filter.Limit > 0 {
		limit = &filter.Limit
	}

	query := `SELECT ` + batchColumns + ` FROM menu_batches b` + where + `
		ORDER BY b.updated_at DESC, b.id DESC
		LIMIT $4 OFFSET $5
	`
	rows, err := s.pool.Query(ctx, query, filter.ProducerID, filter.ConsumerID, filter.Status, limit, filter.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list batches: %w", err)
	}
	batches, err := collectBatches(rows)
	if err != nil {
		return nil, 0, err
	}

	return batches, total, nil
}

func (s *batchesStorage) CountByStatus(ctx context.Context, producerID string) (map[string]int, error) {
	query := `
		SELECT status, COUNT(*)
		FROM menu_batches
		WHERE ($1 = '' OR producer_id = $1)
		GROUP BY status
	`

	rows, err := s.pool.Query(ctx, query, producerID)
	if err != nil {
		return nil, fmt.Errorf("failed to count batches: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = n
	}

	return counts, rows.Err()
}

// querier is satisfied by *pgxpool.Pool and pgx.Tx
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getBatch(ctx context.Context, q querier, batchID int64) (storage.MenuBatch, error) {
	b, err := scanBatch(q.QueryRow(ctx, `SELECT `+batchColumns+` FROM menu_batches b WHERE b.id = $1`, batchID))
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.MenuBatch{}, storage.ErrBatchNotFound
	}
	if err != nil {
		return storage.MenuBatch{}, fmt.Errorf("failed to get batch: %w", err)
	}
	return b, nil
}

func listItems(ctx context.Context, q querier, batchID int64) ([]storage.MenuItem, error) {
	query := `SELECT ` + itemColumns + ` FROM menu_items WHERE batch_id = $1 ORDER BY day, ` + mealOrderSQL

	rows, err := q.Query(ctx, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list batch items: %w", err)
	}
	defer rows.Close()

	items := []storage.MenuItem{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan menu item: %w", err)
		}
		items = append(items, it)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("error iterating menu items: %w", rows.Err())
	}

	return items, nil
}

// lockBatch takes a row lock and checks the expected status.
func lockBatch(ctx context.Context, tx pgx.Tx, batchID int64, from string) error {
	var status string
	err := tx.QueryRow(ctx, `SELECT status FROM menu_batches WHERE id = $1 FOR UPDATE`, batchID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrBatchNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock batch: %w", err)
	}
	if status != from {
		return storage.ErrStatusConflict
	}
	return nil
}

func insertItems(ctx context.Context, tx pgx.Tx, batchID int64, items []storage.MenuItemUpsert) ([]storage.MenuItem, error) {
	itemQuery := `
		INSERT INTO menu_items (batch_id, day, meal_type, description, calories, protein, carbs, fats)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	for _, in := range items {
		_, err := tx.Exec(ctx, itemQuery,
			batchID,
			in.Day,
			in.MealType,
			in.Description,
			in.Calories,
			in.Protein,
			in.Carbs,
			in.Fats,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return nil, storage.ErrDuplicateItem
			}
			return nil, fmt.Errorf("failed to insert menu item: %w", err)
		}
	}

	return listItems(ctx, tx, batchID)
}

func collectBatches(rows pgx.Rows) ([]storage.MenuBatch, error) {
	defer rows.Close()

	batches := []storage.MenuBatch{}
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		batches = append(batches, b)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("error iterating batches: %w", rows.Err())
	}

	return batches, nil
}
