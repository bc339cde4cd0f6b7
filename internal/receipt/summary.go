package receipt

import (
	"fmt"
	"strconv"
	"strings"
)

// Summary renders the confirmation shown after a receipt was stored. All
// numbers come from the receipt itself, never from model prose.
func Summary(r *Receipt) string {
	var b strings.Builder
	b.WriteString("Purchase Successfully Saved!\n\n")
	fmt.Fprintf(&b, "Items Saved: %d\n\n", len(r.Items))
	b.WriteString("Saved Items:\n")
	for i, item := range r.Items {
		fmt.Fprintf(&b, "%d. %s\n", i+1, item.ItemName)
		fmt.Fprintf(&b, "   - Quantity: %s\n", formatQuantity(item.Quantity))
		fmt.Fprintf(&b, "   - Unit Price: $%.2f\n", item.UnitPrice)
		fmt.Fprintf(&b, "   - Total: $%.2f\n\n", item.TotalPrice)
	}
	fmt.Fprintf(&b, "Grand Total: $%.2f", r.GrandTotal())
	return b.String()
}

// SpokenSummary is a short sentence suitable for speech synthesis.
func SpokenSummary(r *Receipt) string {
	noun := "items"
	if len(r.Items) == 1 {
		noun = "item"
	}
	return fmt.Sprintf("Your purchase of %d %s totalling %.2f dollars has been recorded.", len(r.Items), noun, r.GrandTotal())
}

func formatQuantity(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}
