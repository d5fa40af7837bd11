// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package notify delivers fire-and-forget operator notifications.
// Delivery failure is never a task failure.
package notify

import (
	"net/http"
	"net/url"
	"time"

	"github.com/clearfeed/gatekeeper/internal/log"
)

// Notifier posts messages to a Telegram bot chat.
type Notifier struct {
	client *http.Client
}

// New returns a notifier with the 10 s delivery budget.
func New() *Notifier {
	return &Notifier{client: &http.Client{Timeout: 10 * time.Second}}
}

// Send dispatches one message asynchronously. No-ops unless both the bot
// token and the chat id are configured.
func (n *Notifier) Send(botToken, chatID, msg string) {
	if botToken == "" || chatID == "" {
		return
	}
	go func() {
		endpoint := "https://api.telegram.org/bot" + botToken + "/sendMessage"
		resp, err := n.client.PostForm(endpoint, url.Values{
			"chat_id": {chatID},
			"text":    {msg},
		})
		if err != nil {
			logger := log.WithComponent("notify")
			logger.Debug().Err(err).Msg("notification delivery failed")
			return
		}
		_ = resp.Body.Close()
	}()
}
