package mailfetch

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// GmailSource implements MailSource against the Gmail API using an
// authorized-user token file. The oauth2 token source refreshes the access
// token transparently.
type GmailSource struct {
	svc *gmail.Service
}

// NewGmailSource creates a Gmail-backed mail source from a token file
// (authorized_user JSON with a refresh token).
func NewGmailSource(ctx context.Context, tokenFile string) (*GmailSource, error) {
	data, err := os.ReadFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("reading token file: %w", err)
	}

	creds, err := google.CredentialsFromJSON(ctx, data, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}

	svc, err := gmail.NewService(ctx, option.WithTokenSource(creds.TokenSource))
	if err != nil {
		return nil, fmt.Errorf("creating gmail service: %w", err)
	}

	return &GmailSource{svc: svc}, nil
}

// LatestMessage returns the newest inbox message in full form, or nil when
// the inbox is empty.
func (g *GmailSource) LatestMessage(ctx context.Context) (*gmail.Message, error) {
	list, err := g.svc.Users.Messages.List("me").
		LabelIds("INBOX").
		MaxResults(1).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	if len(list.Messages) == 0 {
		return nil, nil
	}

	msg, err := g.svc.Users.Messages.Get("me", list.Messages[0].Id).
		Format("full").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("getting message %s: %w", list.Messages[0].Id, err)
	}
	return msg, nil
}
