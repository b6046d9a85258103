package mailfetch

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"google.golang.org/api/gmail/v1"
)

func TestMailfetch(t *testing.T) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))

	RegisterFailHandler(Fail)
	RunSpecs(t, "Mailfetch Suite")
}

type fixedTime struct {
	t time.Time
}

func (f *fixedTime) Now() time.Time {
	return f.t
}

// mockMail is a mock implementation of MailSource
type mockMail struct {
	msg      *gmail.Message
	fetchErr error
}

func (m *mockMail) LatestMessage(_ context.Context) (*gmail.Message, error) {
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	return m.msg, nil
}

// mockObjects records stored objects
type mockObjects struct {
	stored   map[string][]byte
	storeErr error
}

func newMockObjects() *mockObjects {
	return &mockObjects{stored: make(map[string][]byte)}
}

func (m *mockObjects) Fetch(_ context.Context, _, _ string) ([]byte, error) {
	return nil, errors.New("not used")
}

func (m *mockObjects) Store(_ context.Context, bucket, object string, data []byte, _ string) error {
	if m.storeErr != nil {
		return m.storeErr
	}
	m.stored[bucket+"/"+object] = data
	return nil
}

func (m *mockObjects) Close() error {
	return nil
}

func envelope(emailAddress string) []byte {
	payload, err := json.Marshal(map[string]any{"emailAddress": emailAddress, "historyId": 42})
	Expect(err).NotTo(HaveOccurred())
	body, err := json.Marshal(map[string]any{
		"message": map[string]any{
			"data": base64.StdEncoding.EncodeToString(payload),
		},
	})
	Expect(err).NotTo(HaveOccurred())
	return body
}

func bodyPart(content string) *gmail.MessagePartBody {
	return &gmail.MessagePartBody{Data: base64.URLEncoding.EncodeToString([]byte(content))}
}

var _ = Describe("Service", func() {
	var (
		mail    *mockMail
		objects *mockObjects
		service *Service
		body    []byte
		err     error
	)

	BeforeEach(func() {
		mail = &mockMail{}
		objects = newMockObjects()
		now := time.Date(2024, 3, 2, 10, 30, 0, 0, time.UTC)
		service = NewServiceWithDeps(mail, objects, "raw-receipts", &fixedTime{t: now})
		body = envelope("user@example.com")
	})

	JustBeforeEach(func() {
		err = service.HandlePush(context.Background(), body)
	})

	When("a message with a flat HTML body arrives", func() {
		BeforeEach(func() {
			mail.msg = &gmail.Message{
				Id:      "msg123",
				Payload: &gmail.MessagePart{MimeType: "text/html", Body: bodyPart("<html>Total: $9.99</html>")},
			}
		})

		It("uploads the body under the timestamped object name", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(objects.stored).To(HaveKey("raw-receipts/email-20240302-103000-msg123.html"))
			Expect(string(objects.stored["raw-receipts/email-20240302-103000-msg123.html"])).To(ContainSubstring("$9.99"))
		})
	})

	When("the body is split across nested parts", func() {
		BeforeEach(func() {
			mail.msg = &gmail.Message{
				Id: "msg456",
				Payload: &gmail.MessagePart{
					MimeType: "multipart/alternative",
					Parts: []*gmail.MessagePart{
						{MimeType: "text/plain", Body: bodyPart("Receipt ")},
						{
							MimeType: "multipart/related",
							Parts: []*gmail.MessagePart{
								{MimeType: "text/html", Body: bodyPart("<b>Total: $5</b>")},
							},
						},
					},
				},
			}
		})

		It("concatenates every decodable part in order", func() {
			Expect(err).NotTo(HaveOccurred())
			stored := objects.stored["raw-receipts/email-20240302-103000-msg456.html"]
			Expect(string(stored)).To(Equal("Receipt <b>Total: $5</b>"))
		})
	})

	When("the envelope is not valid JSON", func() {
		BeforeEach(func() {
			body = []byte("{not json")
		})

		It("reports an invalid envelope", func() {
			Expect(errors.Is(err, ErrInvalidEnvelope)).To(BeTrue())
		})
	})

	When("the envelope has no message data", func() {
		BeforeEach(func() {
			body = []byte(`{"message": {}}`)
		})

		It("reports an invalid envelope", func() {
			Expect(errors.Is(err, ErrInvalidEnvelope)).To(BeTrue())
		})
	})

	When("the inbox is empty", func() {
		It("is a no-op", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(objects.stored).To(BeEmpty())
		})
	})

	When("the message has no readable body", func() {
		BeforeEach(func() {
			mail.msg = &gmail.Message{
				Id:      "msg789",
				Payload: &gmail.MessagePart{MimeType: "text/html"},
			}
		})

		It("uploads nothing", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(objects.stored).To(BeEmpty())
		})
	})

	When("the mailbox fetch fails", func() {
		BeforeEach(func() {
			mail.fetchErr = errors.New("token expired")
		})

		It("propagates the failure", func() {
			Expect(err).To(MatchError(ContainSubstring("fetching latest message")))
		})
	})
})
