package receipt

import (
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/receipt-assistant/internal/failure"
)

var _ = Describe("Parse", func() {
	var (
		raw    string
		parsed *Receipt
		err    error
	)

	JustBeforeEach(func() {
		parsed, err = Parse([]byte(raw))
	})

	When("the arguments are well formed", func() {
		BeforeEach(func() {
			raw = `{"receipt_id": 1, "items": [
				{"item_name": "Milk", "quantity": 2, "unit_price": 3.5, "total_price": 7.0},
				{"item_name": "Apples", "quantity": 3, "unit_price": 2, "total_price": 6}
			]}`
		})

		It("should decode the receipt", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(parsed).To(Equal(groceryReceipt(1)))
		})
	})

	When("the arithmetic does not add up", func() {
		BeforeEach(func() {
			raw = `{"receipt_id": 5, "items": [{"item_name": "Eggs", "quantity": 2, "unit_price": 3, "total_price": 5}]}`
		})

		It("should still accept it", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(parsed.Items[0].TotalPrice).To(Equal(5.0))
		})
	})

	When("receipt_id is an integral float", func() {
		BeforeEach(func() {
			raw = `{"receipt_id": 3.0, "items": [{"item_name": "Eggs", "quantity": 1, "unit_price": 3, "total_price": 3}]}`
		})

		It("should accept it", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(parsed.ReceiptID).To(Equal(int64(3)))
		})
	})

	When("receipt_id is the largest int64", func() {
		BeforeEach(func() {
			raw = `{"receipt_id": 9223372036854775807, "items": [{"item_name": "Eggs", "quantity": 1, "unit_price": 3, "total_price": 3}]}`
		})

		It("should keep every digit", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(parsed.ReceiptID).To(Equal(int64(9223372036854775807)))
		})
	})

	When("receipt_id is a large integral float", func() {
		BeforeEach(func() {
			raw = `{"receipt_id": 9007199254740993.0, "items": [{"item_name": "Eggs", "quantity": 1, "unit_price": 3, "total_price": 3}]}`
		})

		It("should not lose precision", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(parsed.ReceiptID).To(Equal(int64(9007199254740993)))
		})
	})

	DescribeTable("rejecting receipt ids outside the int64 range",
		func(id string) {
			_, err := Parse([]byte(`{"receipt_id": ` + id + `, "items": [{"item_name": "a", "quantity": 1, "unit_price": 1, "total_price": 1}]}`))
			var validationErr *failure.ValidationError
			Expect(errors.As(err, &validationErr)).To(BeTrue())
			Expect(validationErr.Reason).To(Equal("receipt_id out of range"))
		},
		Entry("above the maximum", "100000000000000000000"),
		Entry("just above the maximum", "9223372036854775808"),
		Entry("below the minimum", "-9223372036854775809"),
		Entry("exponent form", "1e30"),
	)

	DescribeTable("rejecting malformed arguments",
		func(input string) {
			_, err := Parse([]byte(input))
			var validationErr *failure.ValidationError
			Expect(errors.As(err, &validationErr)).To(BeTrue())
		},
		Entry("not JSON", `{"receipt_id": `),
		Entry("missing receipt_id", `{"items": [{"item_name": "a", "quantity": 1, "unit_price": 1, "total_price": 1}]}`),
		Entry("fractional receipt_id", `{"receipt_id": 1.5, "items": [{"item_name": "a", "quantity": 1, "unit_price": 1, "total_price": 1}]}`),
		Entry("string receipt_id", `{"receipt_id": "1", "items": [{"item_name": "a", "quantity": 1, "unit_price": 1, "total_price": 1}]}`),
		Entry("empty items", `{"receipt_id": 1, "items": []}`),
		Entry("missing total_price", `{"receipt_id": 1, "items": [{"item_name": "a", "quantity": 1, "unit_price": 1}]}`),
		Entry("string quantity", `{"receipt_id": 1, "items": [{"item_name": "a", "quantity": "two", "unit_price": 1, "total_price": 1}]}`),
		Entry("numeric item_name", `{"receipt_id": 1, "items": [{"item_name": 7, "quantity": 1, "unit_price": 1, "total_price": 1}]}`),
	)
})

var _ = Describe("Schema", func() {
	It("should be a JSON object requiring receipt_id and items", func() {
		var doc map[string]any
		Expect(json.Unmarshal(Schema(), &doc)).To(Succeed())
		Expect(doc["required"]).To(ConsistOf("receipt_id", "items"))
	})
})
