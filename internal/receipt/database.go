package receipt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

const itemsBucketName = "items"

// DB defines the structured store for receipt line items
type DB interface {
	// SaveReceipt writes every item of the receipt in one transaction
	SaveReceipt(ctx context.Context, receipt *Receipt) error

	// QuerySpending sums total_price of items whose name contains itemName
	// (case-insensitive) over the last days; days <= 0 means all time
	QuerySpending(ctx context.Context, itemName string, days int) (float64, error)

	// GetItems returns stored items in insertion order, optionally only
	// those tagged with receiptID
	GetItems(ctx context.Context, receiptID *int64) ([]Item, error)

	// Close closes the database connection
	Close() error
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// since returns the lower bound for a days window, or the zero time.
func since(ts TimeSource, days int) time.Time {
	if days <= 0 {
		return time.Time{}
	}
	return ts.Now().AddDate(0, 0, -days)
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db   *bbolt.DB
	time TimeSource
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	return NewBoltDBWithClock(path, &defaultTimeSource{})
}

// NewBoltDBWithClock creates a BoltDB with a custom time source for testing
func NewBoltDBWithClock(path string, ts TimeSource) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(itemsBucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db, time: ts}, nil
}

// SaveReceipt stores one row per item. bbolt commits the whole update or
// nothing.
func (b *BoltDB) SaveReceipt(_ context.Context, receipt *Receipt) error {
	now := b.time.Now().UTC()
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(itemsBucketName))
		for _, item := range receipt.Items {
			seq, err := bucket.NextSequence()
			if err != nil {
				return fmt.Errorf("allocating item id: %w", err)
			}
			row := Row{
				ID:         int64(seq),
				ReceiptID:  receipt.ReceiptID,
				ItemName:   item.ItemName,
				Quantity:   item.Quantity,
				UnitPrice:  item.UnitPrice,
				TotalPrice: item.TotalPrice,
				CreatedAt:  now,
			}
			data, err := json.Marshal(row)
			if err != nil {
				return fmt.Errorf("marshaling item: %w", err)
			}
			if err := bucket.Put(itob(seq), data); err != nil {
				return fmt.Errorf("inserting item %q: %w", item.ItemName, err)
			}
		}
		return nil
	})
}

// QuerySpending sums matching rows
func (b *BoltDB) QuerySpending(_ context.Context, itemName string, days int) (float64, error) {
	needle := strings.ToLower(itemName)
	from := since(b.time, days)

	var total float64
	err := b.forEachRow(func(row Row) {
		if !from.IsZero() && row.CreatedAt.Before(from) {
			return
		}
		if strings.Contains(strings.ToLower(row.ItemName), needle) {
			total += row.TotalPrice
		}
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// GetItems returns items in insertion order
func (b *BoltDB) GetItems(_ context.Context, receiptID *int64) ([]Item, error) {
	items := make([]Item, 0)
	err := b.forEachRow(func(row Row) {
		if receiptID != nil && row.ReceiptID != *receiptID {
			return
		}
		items = append(items, row.Item())
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (b *BoltDB) forEachRow(fn func(Row)) error {
	return b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(itemsBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var row Row
			if err := json.Unmarshal(v, &row); err != nil {
				return fmt.Errorf("unmarshaling item: %w", err)
			}
			fn(row)
			return nil
		})
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}

// itob encodes a sequence so that byte order matches insertion order.
func itob(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}
