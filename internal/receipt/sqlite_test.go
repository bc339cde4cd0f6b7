package receipt

import (
	"database/sql"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("SQLite", func() {
	storeContract(func(ts TimeSource) DB {
		db, err := NewSQLiteWithClock(filepath.Join(GinkgoT().TempDir(), "nested", "receipts.db"), ts)
		Expect(err).NotTo(HaveOccurred())
		return db
	})

	Describe("reopening", func() {
		It("should keep rows across connections", func(ctx SpecContext) {
			path := filepath.Join(GinkgoT().TempDir(), "receipts.db")
			db, err := NewSQLite(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(db.SaveReceipt(ctx, groceryReceipt(7))).To(Succeed())
			Expect(db.Close()).To(Succeed())

			db, err = NewSQLite(path)
			Expect(err).NotTo(HaveOccurred())
			defer db.Close()
			id := int64(7)
			items, err := db.GetItems(ctx, &id)
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(2))
		})
	})

	Describe("opening a table without created_at", func() {
		var path string

		BeforeEach(func() {
			path = filepath.Join(GinkgoT().TempDir(), "legacy.db")
			legacy, err := sql.Open("sqlite", path)
			Expect(err).NotTo(HaveOccurred())
			_, err = legacy.Exec(`CREATE TABLE items (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				receipt_id INTEGER,
				item_name TEXT,
				quantity REAL,
				unit_price REAL,
				total_price REAL
			)`)
			Expect(err).NotTo(HaveOccurred())
			_, err = legacy.Exec(`INSERT INTO items (receipt_id, item_name, quantity, unit_price, total_price) VALUES (1, 'Bread', 1, 2.5, 2.5)`)
			Expect(err).NotTo(HaveOccurred())
			Expect(legacy.Close()).To(Succeed())
		})

		It("should add the column and keep accepting receipts", func(ctx SpecContext) {
			db, err := NewSQLite(path)
			Expect(err).NotTo(HaveOccurred())
			defer db.Close()

			Expect(db.SaveReceipt(ctx, groceryReceipt(2))).To(Succeed())
			items, err := db.GetItems(ctx, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(3))
			Expect(items[0].ItemName).To(Equal("Bread"))
		})

		It("should count old rows only in all-time totals", func(ctx SpecContext) {
			db, err := NewSQLite(path)
			Expect(err).NotTo(HaveOccurred())
			defer db.Close()

			total, err := db.QuerySpending(ctx, "bread", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(BeNumerically("~", 2.50, 0.001))

			total, err = db.QuerySpending(ctx, "bread", 7)
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(BeZero())
		})

		It("should be safe to open twice", func() {
			db, err := NewSQLite(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(db.Close()).To(Succeed())

			db, err = NewSQLite(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(db.Close()).To(Succeed())
		})
	})

	Describe("likePattern", func() {
		It("should escape wildcards and lower-case", func() {
			Expect(likePattern(`50%_Off\`)).To(Equal(`%50\%\_off\\%`))
		})
	})
})
