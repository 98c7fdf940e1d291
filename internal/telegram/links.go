package telegram

import (
	"fmt"
	"net/url"
)

// DefaultLinkHost is the public Telegram deep-link host.
const DefaultLinkHost = "t.me"

// ShareLink builds the deep link that opens bot with tok as the start parameter.
func ShareLink(host, bot, tok string) string {
	if host == "" {
		host = DefaultLinkHost
	}
	return fmt.Sprintf("https://%s/%s?start=%s", host, bot, url.QueryEscape(tok))
}
