package connectors

import (
	"fmt"
	"strings"

	"waxscore/internal/config"
	gmailconnector "waxscore/internal/connectors/gmail"
	imapconnector "waxscore/internal/connectors/imap"
)

func New(cfg config.Config, provider string) (MailConnector, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gmail":
		return gmailconnector.NewConnector(cfg)
	case "imap":
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported mail provider: %s", provider)
	}
}
