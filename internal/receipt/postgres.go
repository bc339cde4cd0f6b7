package receipt

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS items (
	id          BIGSERIAL PRIMARY KEY,
	receipt_id  BIGINT,
	item_name   TEXT,
	quantity    DOUBLE PRECISION,
	unit_price  DOUBLE PRECISION,
	total_price DOUBLE PRECISION,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Postgres implements the DB interface on a pgx connection pool
type Postgres struct {
	pool *pgxpool.Pool
	time TimeSource
}

// NewPostgres connects to dsn and ensures the items table exists
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	return NewPostgresWithClock(ctx, dsn, &defaultTimeSource{})
}

// NewPostgresWithClock connects with a custom time source for testing
func NewPostgresWithClock(ctx context.Context, dsn string, ts TimeSource) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating items table: %w", err)
	}
	return &Postgres{pool: pool, time: ts}, nil
}

// SaveReceipt inserts all items in one transaction
func (p *Postgres) SaveReceipt(ctx context.Context, receipt *Receipt) error {
	createdAt := p.time.Now().UTC()
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, item := range receipt.Items {
			batch.Queue(`
				INSERT INTO items (receipt_id, item_name, quantity, unit_price, total_price, created_at)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				receipt.ReceiptID, item.ItemName, item.Quantity, item.UnitPrice, item.TotalPrice, createdAt)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("inserting items: %w", err)
		}
		return nil
	})
}

// QuerySpending sums total_price for names containing itemName
func (p *Postgres) QuerySpending(ctx context.Context, itemName string, days int) (float64, error) {
	query := `SELECT COALESCE(SUM(total_price), 0) FROM items WHERE item_name ILIKE $1 ESCAPE '\'`
	args := []any{likePattern(itemName)}
	if from := since(p.time, days); !from.IsZero() {
		query += ` AND created_at >= $2`
		args = append(args, from.UTC())
	}

	var total float64
	if err := p.pool.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("query spending: %w", err)
	}
	return total, nil
}

// GetItems returns items ordered by id
func (p *Postgres) GetItems(ctx context.Context, receiptID *int64) ([]Item, error) {
	query := `SELECT item_name, quantity, unit_price, total_price FROM items`
	var args []any
	if receiptID != nil {
		query += ` WHERE receipt_id = $1`
		args = append(args, *receiptID)
	}
	query += ` ORDER BY id ASC`

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Item, error) {
		var item Item
		err := row.Scan(&item.ItemName, &item.Quantity, &item.UnitPrice, &item.TotalPrice)
		return item, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan items: %w", err)
	}
	if items == nil {
		items = make([]Item, 0)
	}
	return items, nil
}

// Close releases the pool
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
