package postgres

import (
	"context"

	"github.com/fdg312/menu-batches/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStorage — Postgres реализация storage.Storage
type PostgresStorage struct {
	pool    *pgxpool.Pool
	batches *batchesStorage
}

var _ storage.Storage = (*PostgresStorage)(nil)

// New открывает пул и проверяет соединение
func New(ctx context.Context, databaseURL string) (*PostgresStorage, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStorage{
		pool:    pool,
		batches: newBatchesStorage(pool),
	}, nil
}

func (p *PostgresStorage) Close() error {
	p.pool.Close()
	return nil
}

// BatchesStorage methods - delegate to embedded batches storage.

func (p *PostgresStorage) CreateBatch(ctx context.Context, b storage.BatchCreate, items []storage.MenuItemUpsert) (storage.MenuBatch, []storage.MenuItem, error) {
	return p.batches.CreateBatch(ctx, b, items)
}

func (p *PostgresStorage) GetBatch(ctx context.Context, batchID int64) (storage.MenuBatch, bool, error) {
	return p.batches.GetBatch(ctx, batchID)
}

func (p *PostgresStorage) ListItems(ctx context.Context, batchID int64) ([]storage.MenuItem, error) {
	return p.batches.ListItems(ctx, batchID)
}

func (p *PostgresStorage) ReplaceItems(ctx context.Context, batchID int64, from, to string, dietaryNotes *string, items []storage.MenuItemUpsert) (storage.MenuBatch, []storage.MenuItem, error) {
	return p.batches.ReplaceItems(ctx, batchID, from, to, dietaryNotes, items)
}

func (p *PostgresStorage) TransitionStatus(ctx context.Context, batchID int64, from, to string, fields storage.StatusFields) (storage.MenuBatch, error) {
	return p.batches.TransitionStatus(ctx, batchID, from, to, fields)
}

func (p *PostgresStorage) DeleteItems(ctx context.Context, batchID int64, from, to string, day *int, mealType *string) (int, error) {
	return p.batches.DeleteItems(ctx, batchID, from, to, day, mealType)
}

func (p *PostgresStorage) GetMonthlyMenu(ctx context.Context, consumerID int64, year, month int) (storage.MonthlyMenu, []storage.MenuBatch, bool, error) {
	return p.batches.GetMonthlyMenu(ctx, consumerID, year, month)
}

func (p *PostgresStorage) ListBatches(ctx context.Context, filter storage.BatchFilter) ([]storage.MenuBatch, int, error) {
	return p.batches.ListBatches(ctx, filter)
}

func (p *PostgresStorage) CountByStatus(ctx context.Context, producerID string) (map[string]int, error) {
	return p.batches.CountByStatus(ctx, producerID)
}
