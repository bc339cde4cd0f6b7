package receipt

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Summary", func() {
	It("should list every item with the grand total", func() {
		Expect(Summary(groceryReceipt(1))).To(Equal(
			"Purchase Successfully Saved!\n\n" +
				"Items Saved: 2\n\n" +
				"Saved Items:\n" +
				"1. Milk\n   - Quantity: 2\n   - Unit Price: $3.50\n   - Total: $7.00\n\n" +
				"2. Apples\n   - Quantity: 3\n   - Unit Price: $2.00\n   - Total: $6.00\n\n" +
				"Grand Total: $13.00"))
	})

	It("should keep fractional quantities", func() {
		r := &Receipt{ReceiptID: 1, Items: []Item{{ItemName: "Bananas", Quantity: 1.5, UnitPrice: 2, TotalPrice: 3}}}
		Expect(Summary(r)).To(ContainSubstring("Quantity: 1.5\n"))
	})
})

var _ = Describe("SpokenSummary", func() {
	It("should mention the count and total", func() {
		Expect(SpokenSummary(groceryReceipt(1))).To(Equal("Your purchase of 2 items totalling 13.00 dollars has been recorded."))
	})

	It("should use the singular for one item", func() {
		r := &Receipt{ReceiptID: 1, Items: []Item{{ItemName: "Bread", Quantity: 1, UnitPrice: 4, TotalPrice: 4}}}
		Expect(SpokenSummary(r)).To(ContainSubstring("1 item totalling"))
	})
})
