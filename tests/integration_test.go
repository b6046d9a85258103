package tests

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/raseed/receipt-pipeline/internal/docstore"
	"github.com/raseed/receipt-pipeline/internal/extraction"
	"github.com/raseed/receipt-pipeline/internal/insights"
	"github.com/raseed/receipt-pipeline/internal/pipeline"
	"github.com/raseed/receipt-pipeline/internal/predictions"
	"github.com/raseed/receipt-pipeline/internal/server"
	"github.com/raseed/receipt-pipeline/internal/source"
	"github.com/raseed/receipt-pipeline/internal/warehouse"
)

func TestIntegration(t *testing.T) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))

	RegisterFailHandler(Fail)
	RunSpecs(t, "Integration Suite")
}

// MockGenerator replays canned model responses in call order
type MockGenerator struct {
	responses []string
	calls     int
}

func (m *MockGenerator) Generate(_ context.Context, _ string, _ ...extraction.Part) (string, error) {
	resp := m.responses[m.calls]
	m.calls++
	return resp, nil
}

func (m *MockGenerator) Close() error {
	return nil
}

// MemoryWarehouse keeps inserted rows in memory
type MemoryWarehouse struct {
	inserted map[string][]any
}

func (m *MemoryWarehouse) Insert(_ context.Context, table string, rows []any) error {
	m.inserted[table] = append(m.inserted[table], rows...)
	return nil
}

func (m *MemoryWarehouse) Query(_ context.Context, _ string) ([]warehouse.Row, error) {
	return nil, nil
}

func (m *MemoryWarehouse) Close() error {
	return nil
}

const extractionResponse = "```json\n" + `{
  "receipt_id": "R100",
  "merchant": {"name": "Corner Cafe", "category": "Food"},
  "amount": 12.75,
  "currency": "USD",
  "date": "03-20-2024",
  "items": [{"name": "Espresso", "quantity": 1, "price": 3.25}]
}` + "\n```"

const enrichmentResponse = `{
  "receipt_id": "R100",
  "merchant": {
    "name": "Corner Cafe",
    "category": "Food",
    "profile": {"website": "cornercafe.example", "country": "US", "tags": ["coffee"], "rank": 1}
  },
  "amount": 12.75,
  "currency": "USD",
  "subscription": false,
  "items": [{"name": "Espresso", "quantity": 1, "price": 3.25}]
}`

var _ = Describe("Integration", func() {
	var (
		tempDir   string
		objects   *source.Local
		docs      *docstore.BoltStore
		wh        *MemoryWarehouse
		generator *MockGenerator
		srv       *server.Server
		ghServer  *ghttp.Server
		err       error
	)

	BeforeEach(func() {
		tempDir, err = os.MkdirTemp("", "receipt-pipeline-test-*")
		Expect(err).NotTo(HaveOccurred())

		objects, err = source.NewLocal(filepath.Join(tempDir, "buckets"))
		Expect(err).NotTo(HaveOccurred())

		docs, err = docstore.NewBoltStore(filepath.Join(tempDir, "test.db"))
		Expect(err).NotTo(HaveOccurred())

		wh = &MemoryWarehouse{inserted: make(map[string][]any)}
		generator = &MockGenerator{responses: []string{extractionResponse, enrichmentResponse}}

		preparer := extraction.NewPreparer(nil, false)
		pipelineService := pipeline.NewService(objects, preparer, generator, docs, wh, pipeline.Config{
			ReceiptsCollection: "receipts",
			RawTable:           "raw_receipts",
			EnrichedTable:      "enriched_receipts",
		})
		insightService := insights.NewService(wh, docs, "proj.receipts.enriched_receipts", "insights")
		predictionService := predictions.NewService(wh, "proj.receipts.enriched_receipts", "proj.receipts", "prediction_results")

		srv = server.New(pipelineService, rejectMail{}, insightService, predictionService, server.BasicAuth{})
		ghServer = ghttp.NewServer()
	})

	AfterEach(func() {
		if ghServer != nil {
			ghServer.Close()
		}
		if docs != nil {
			docs.Close()
		}
		if tempDir != "" {
			os.RemoveAll(tempDir)
		}
	})

	It("processes an uploaded receipt end to end", func() {
		ghServer.AppendHandlers(srv.ServeHTTP)

		// Drop a receipt into the intake bucket the way an upload would.
		err = objects.Store(context.Background(), "raw-receipts", "cafe.html",
			[]byte("<html>Corner Cafe receipt</html>"), "text/html")
		Expect(err).NotTo(HaveOccurred())

		resp, err := http.Post(ghServer.URL()+"/events/storage", "application/json",
			strings.NewReader(`{"data": {"bucket": "raw-receipts", "name": "cafe.html"}}`))
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		// The raw extraction landed in the document store.
		saved, err := docs.List("receipts")
		Expect(err).NotTo(HaveOccurred())
		Expect(saved).To(HaveLen(1))
		for _, doc := range saved {
			Expect(doc).To(HaveKeyWithValue("receipt_id", "R100"))
		}

		// One raw row and one enriched row reached the warehouse.
		Expect(wh.inserted["raw_receipts"]).To(HaveLen(1))
		raw := wh.inserted["raw_receipts"][0].(map[string]any)
		Expect(raw).To(HaveKeyWithValue("date", "2024-03-20"))
		Expect(raw).To(HaveKey("timestamp"))

		Expect(wh.inserted["enriched_receipts"]).To(HaveLen(1))
	})
})

// rejectMail stands in for the Gmail handler, which this suite never exercises
type rejectMail struct{}

func (rejectMail) HandlePush(context.Context, []byte) error {
	return nil
}
