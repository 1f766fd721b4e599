package connectors

import (
	"context"

	"waxscore/internal"
)

// MailConnector fetches raw vendor mails from one mailbox folder or label.
type MailConnector interface {
	FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error)
}
