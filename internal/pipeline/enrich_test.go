package pipeline

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/raseed/receipt-pipeline/internal/extraction"
	"github.com/raseed/receipt-pipeline/internal/normalize"
)

var _ = Describe("Enrich", func() {
	var (
		generator *mockGenerator
		wh        *mockWarehouse
		service   *Service
		raw       map[string]any
		err       error
	)

	cfg := Config{
		ReceiptsCollection: "receipts",
		RawTable:           "raw_receipts",
		EnrichedTable:      "enriched_receipts",
	}

	BeforeEach(func() {
		generator = &mockGenerator{}
		wh = newMockWarehouse()
		now := time.Date(2024, 3, 2, 10, 30, 0, 0, time.UTC)
		service = NewServiceWithDeps(newMockObjects(), extraction.NewPreparer(nil, false), generator, &mockDocs{}, wh, cfg, &fixedTime{t: now})
		raw = map[string]any{"receipt_id": "R42", "total": 7.0}
	})

	JustBeforeEach(func() {
		err = service.Enrich(context.Background(), raw)
	})

	When("the model returns clean enrichment JSON", func() {
		BeforeEach(func() {
			generator.responses = []string{enrichmentResponse}
		})

		It("sinks one normalized record", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(wh.inserted["enriched_receipts"]).To(HaveLen(1))
		})

		It("stamps receipt_id and enriched_timestamp", func() {
			record := wh.inserted["enriched_receipts"][0].(normalize.Record)
			Expect(*record.ReceiptID).To(Equal("R42"))
			Expect(*record.EnrichedTimestamp).To(Equal("2024-03-02T10:30:00Z"))
		})
	})

	When("the model call fails", func() {
		BeforeEach(func() {
			generator.errs = []error{errors.New("model unavailable")}
		})

		It("propagates the failure", func() {
			Expect(err).To(MatchError(ContainSubstring("calling enrichment model")))
		})
	})

	When("the model output is not JSON", func() {
		BeforeEach(func() {
			generator.responses = []string{"I enriched your receipt! Here it is: merchant=Acme"}
		})

		It("fails with the raw text attached", func() {
			var malformed *extraction.MalformedOutputError
			Expect(errors.As(err, &malformed)).To(BeTrue())
			Expect(malformed.RawText).To(ContainSubstring("merchant=Acme"))
		})
	})

	When("the model double-encodes the enrichment", func() {
		BeforeEach(func() {
			generator.responses = []string{`"{\"merchant\": {\"name\": \"Acme\"}, \"amount\": 7.0}"`}
		})

		It("unwraps and sinks the record", func() {
			Expect(err).NotTo(HaveOccurred())
			record := wh.inserted["enriched_receipts"][0].(normalize.Record)
			Expect(*record.MerchantName).To(Equal("Acme"))
		})
	})

	When("the double-encoded payload cannot be unwrapped", func() {
		BeforeEach(func() {
			generator.responses = []string{`"this is a plain sentence, not JSON"`}
		})

		It("returns quietly without an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("sinks nothing", func() {
			Expect(wh.inserted["enriched_receipts"]).To(BeEmpty())
		})
	})

	When("the enrichment decodes to a non-object", func() {
		BeforeEach(func() {
			generator.responses = []string{`[1, 2, 3]`}
		})

		It("returns quietly without an error", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(wh.inserted["enriched_receipts"]).To(BeEmpty())
		})
	})

	When("the warehouse reports a row error", func() {
		BeforeEach(func() {
			generator.responses = []string{enrichmentResponse}
			wh.insertErrs["enriched_receipts"] = errors.New("1 row insert error")
		})

		It("fails the whole operation", func() {
			Expect(err).To(MatchError(ContainSubstring("inserting enriched receipt")))
		})
	})
})
