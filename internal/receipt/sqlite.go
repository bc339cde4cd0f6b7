package receipt

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS items (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	receipt_id  INTEGER,
	item_name   TEXT,
	quantity    REAL,
	unit_price  REAL,
	total_price REAL,
	created_at  INTEGER NOT NULL DEFAULT 0
)`

// Tables created before the created_at column existed get it added in place.
// Their rows keep 0 and only count toward all-time totals.
const sqliteCreatedAtColumn = `SELECT COUNT(*) FROM pragma_table_info('items') WHERE name = 'created_at'`

const sqliteAddCreatedAt = `ALTER TABLE items ADD COLUMN created_at INTEGER NOT NULL DEFAULT 0`

// SQLite's LOWER and LIKE only fold ASCII, so names are folded with the
// same Unicode rules the other stores use.
func init() {
	if err := sqlite.RegisterDeterministicScalarFunction("fold_lower", 1, foldLower); err != nil {
		panic(fmt.Sprintf("registering fold_lower: %v", err))
	}
}

func foldLower(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return strings.ToLower(fmt.Sprint(v)), nil
	}
}

// SQLite implements the DB interface on an items table
type SQLite struct {
	db   *sql.DB
	time TimeSource
}

// NewSQLite opens (and creates if absent) the database at path
func NewSQLite(path string) (*SQLite, error) {
	return NewSQLiteWithClock(path, &defaultTimeSource{})
}

// NewSQLiteWithClock opens the database with a custom time source for testing
func NewSQLiteWithClock(path string, ts TimeSource) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating items table: %w", err)
	}
	if err := migrateSQLite(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db, time: ts}, nil
}

func migrateSQLite(db *sql.DB) error {
	var n int
	if err := db.QueryRow(sqliteCreatedAtColumn).Scan(&n); err != nil {
		return fmt.Errorf("inspecting items table: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := db.Exec(sqliteAddCreatedAt); err != nil {
		return fmt.Errorf("adding created_at column: %w", err)
	}
	return nil
}

// SaveReceipt inserts all items in one transaction; any failure rolls back
// every row of the receipt.
func (s *SQLite) SaveReceipt(ctx context.Context, receipt *Receipt) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO items (receipt_id, item_name, quantity, unit_price, total_price, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	createdAt := s.time.Now().UnixMilli()
	for _, item := range receipt.Items {
		if _, err := stmt.ExecContext(ctx, receipt.ReceiptID, item.ItemName, item.Quantity,
			item.UnitPrice, item.TotalPrice, createdAt); err != nil {
			return fmt.Errorf("insert item %q: %w", item.ItemName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// QuerySpending sums total_price for names containing itemName
func (s *SQLite) QuerySpending(ctx context.Context, itemName string, days int) (float64, error) {
	query := `SELECT COALESCE(SUM(total_price), 0) FROM items WHERE fold_lower(item_name) LIKE ? ESCAPE '\'`
	args := []any{likePattern(itemName)}
	if from := since(s.time, days); !from.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, from.UnixMilli())
	}

	var total float64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("query spending: %w", err)
	}
	return total, nil
}

// GetItems returns items ordered by id
func (s *SQLite) GetItems(ctx context.Context, receiptID *int64) ([]Item, error) {
	query := `SELECT item_name, quantity, unit_price, total_price FROM items`
	var args []any
	if receiptID != nil {
		query += ` WHERE receipt_id = ?`
		args = append(args, *receiptID)
	}
	query += ` ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ItemName, &item.Quantity, &item.UnitPrice, &item.TotalPrice); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Close closes the database connection
func (s *SQLite) Close() error {
	return s.db.Close()
}

// likePattern lower-cases and escapes a substring for LIKE ... ESCAPE '\'.
func likePattern(substring string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(substring)) + "%"
}
