package mailfetch

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/api/gmail/v1"

	"github.com/raseed/receipt-pipeline/internal/source"
)

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// ErrInvalidEnvelope reports a push request that is not a well-formed
// Pub/Sub message.
var ErrInvalidEnvelope = fmt.Errorf("invalid Pub/Sub message format")

// MailSource fetches messages from a mailbox.
type MailSource interface {
	// LatestMessage returns the most recent inbox message in full form, or
	// nil when the inbox is empty.
	LatestMessage(ctx context.Context) (*gmail.Message, error)
}

// pushEnvelope is the Pub/Sub push request body.
type pushEnvelope struct {
	Message struct {
		Data string `json:"data"`
	} `json:"message"`
}

// pushPayload is the Gmail notification carried in the envelope data.
type pushPayload struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// Service turns Gmail push notifications into receipt documents in the
// intake bucket, where the storage trigger picks them up like any other
// upload.
type Service struct {
	mail       MailSource
	objects    source.ObjectStore
	bucket     string
	timeSource TimeSource
}

// NewService creates a mail intake Service.
func NewService(mail MailSource, objects source.ObjectStore, bucket string) *Service {
	return NewServiceWithDeps(mail, objects, bucket, &defaultTimeSource{})
}

// NewServiceWithDeps creates a Service with a custom time source for testing.
func NewServiceWithDeps(mail MailSource, objects source.ObjectStore, bucket string, timeSource TimeSource) *Service {
	return &Service{
		mail:       mail,
		objects:    objects,
		bucket:     bucket,
		timeSource: timeSource,
	}
}

// HandlePush processes one Pub/Sub push request body. The notification only
// tells us the mailbox changed; the newest inbox message is fetched rather
// than walking the history feed.
func (s *Service) HandlePush(ctx context.Context, body []byte) error {
	var envelope pushEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if envelope.Message.Data == "" {
		return ErrInvalidEnvelope
	}

	data, err := base64.StdEncoding.DecodeString(envelope.Message.Data)
	if err != nil {
		return fmt.Errorf("%w: decoding data: %v", ErrInvalidEnvelope, err)
	}

	var payload pushPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("%w: decoding payload: %v", ErrInvalidEnvelope, err)
	}
	slog.Info("Received Gmail push", "email_address", payload.EmailAddress)

	msg, err := s.mail.LatestMessage(ctx)
	if err != nil {
		return fmt.Errorf("fetching latest message: %w", err)
	}
	if msg == nil {
		slog.Info("No new messages found")
		return nil
	}

	body2 := extractBody(msg.Payload)
	if body2 == "" {
		slog.Info("No readable body found", "message_id", msg.Id)
		return nil
	}

	object := fmt.Sprintf("email-%s-%s.html",
		s.timeSource.Now().UTC().Format("20060102-150405"), msg.Id)
	if err := s.objects.Store(ctx, s.bucket, object, []byte(body2), "text/html"); err != nil {
		return fmt.Errorf("uploading email body: %w", err)
	}

	slog.Info("Uploaded email body", "object", object, "bucket", s.bucket)
	return nil
}

// extractBody concatenates every decodable body part, depth first. Parts
// that fail to decode are skipped.
func extractBody(part *gmail.MessagePart) string {
	if part == nil {
		return ""
	}

	var body string
	if part.Body != nil && part.Body.Data != "" {
		if decoded, err := base64.URLEncoding.DecodeString(part.Body.Data); err == nil {
			body = string(decoded)
		} else if decoded, err := base64.RawURLEncoding.DecodeString(part.Body.Data); err == nil {
			body = string(decoded)
		}
	}
	for _, sub := range part.Parts {
		body += extractBody(sub)
	}
	return body
}
