package receipt

import "time"

// Item is one purchased line. TotalPrice is expected to be close to
// Quantity*UnitPrice but nothing enforces it.
type Item struct {
	ItemName   string  `json:"item_name"`
	Quantity   float64 `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	TotalPrice float64 `json:"total_price"`
}

// Receipt groups the items of one purchase under a caller-chosen ID.
// It only lives for one extraction turn; stores keep its rows.
type Receipt struct {
	ReceiptID int64  `json:"receipt_id"`
	Items     []Item `json:"items"`
}

// GrandTotal sums TotalPrice across all items.
func (r *Receipt) GrandTotal() float64 {
	var total float64
	for _, item := range r.Items {
		total += item.TotalPrice
	}
	return total
}

// Row is a stored item. ReceiptID is a tag, not a key: duplicates are legal.
type Row struct {
	ID         int64     `json:"id"`
	ReceiptID  int64     `json:"receipt_id"`
	ItemName   string    `json:"item_name"`
	Quantity   float64   `json:"quantity"`
	UnitPrice  float64   `json:"unit_price"`
	TotalPrice float64   `json:"total_price"`
	CreatedAt  time.Time `json:"created_at"`
}

// Item returns the row without its storage fields.
func (r Row) Item() Item {
	return Item{
		ItemName:   r.ItemName,
		Quantity:   r.Quantity,
		UnitPrice:  r.UnitPrice,
		TotalPrice: r.TotalPrice,
	}
}
