package notify

import (
	"context"
	"fmt"
	"html"
	"net/http"
)

// telegramMaxLen is the Bot API limit for a message text.
const telegramMaxLen = 4096

// TelegramSender delivers notifications via the Telegram Bot API.
type TelegramSender struct {
	apiBase string
	token   string
	chatID  string
	client  *http.Client
}

// NewTelegramSender creates a TelegramSender for the given bot token and chat
// ID.
func NewTelegramSender(token, chatID string) *TelegramSender {
	return &TelegramSender{
		apiBase: "https://api.telegram.org",
		token:   token,
		chatID:  chatID,
		client:  newHTTPClient(),
	}
}

// Send posts the title in bold and the message as preformatted text, so
// addresses and hashes survive intact.
func (t *TelegramSender) Send(ctx context.Context, title, message string) error {
	text := fmt.Sprintf("<b>%s</b>\n<pre>%s</pre>", html.EscapeString(title), html.EscapeString(message))
	payload := map[string]any{
		"chat_id":                  t.chatID,
		"text":                     truncate(text, telegramMaxLen),
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.token)
	if err := postJSON(ctx, t.client, url, payload); err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	return nil
}

// Name returns the sender identifier.
func (t *TelegramSender) Name() string {
	return "telegram"
}
