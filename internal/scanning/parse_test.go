package scanning

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("cleanResponse", func() {
	DescribeTable("stripping wrappers",
		func(input, expected string) {
			Expect(cleanResponse(input)).To(Equal(expected))
		},
		Entry("plain text", "  Milk 2 x 3.50  \n", "Milk 2 x 3.50"),
		Entry("fenced with language", "```text\nMilk 7.00\nApples 6.00\n```", "Milk 7.00\nApples 6.00"),
		Entry("bare fence", "```\nBread 4.25\n```\n", "Bread 4.25"),
		Entry("single line fence", "```Eggs```", "Eggs"),
		Entry("empty", "   ", ""),
	)
})
