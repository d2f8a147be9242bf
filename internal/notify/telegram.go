// Package notify is the Telegram boundary adapter: the
// outbound sender and the inbound bot command poller.
package notify

import (
	"log"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/killmongerinheret/vinted-watch/internal/ingest"
)

// Message is the minimal outbound shape the sender drains (mirrors
// ingest.Notification to keep packages decoupled).
type Message struct {
	Text       string
	URL        string
	ButtonText string
	ThreadID   *int64
	PhotoURL   string
}

func FromNotification(n ingest.Notification) Message {
	return Message{Text: n.Text, URL: n.URL, ButtonText: n.ButtonText, ThreadID: n.ThreadID, PhotoURL: n.PhotoURL}
}

// Sender drains the notifier channel single-flight.
type Sender struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewSender wraps an authenticated bot API client.
func NewSender(bot *tgbotapi.BotAPI, chatID int64) *Sender {
	return &Sender{bot: bot, chatID: chatID}
}

// Run drains messages until the channel closes or ctx is cancelled.
func (s *Sender) Run(ctx <-chan struct{}, messages <-chan Message) {
	for {
		select {
		case <-ctx:
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			s.send(msg)
		}
	}
}

func (s *Sender) send(msg Message) {
	if err := s.attempt(msg, msg.ThreadID); err != nil {
		if isRateLimited(err) {
			wait := retryAfter(err) + 2*time.Second
			log.Printf("notify: rate limited, waiting %s before retry", wait)
			time.Sleep(wait)
			if err := s.attempt(msg, msg.ThreadID); err == nil {
				return
			}
		}

		if msg.ThreadID != nil {
			log.Printf("⚠️ notify: send to thread failed, retrying on main chat: %v", err)
			if err := s.attempt(msg, nil); err != nil {
				log.Printf("⚠️ notify: fallback send failed: %v", err)
			}
			return
		}

		log.Printf("⚠️ notify: send failed: %v", err)
	}
}

// attempt issues one sendMessage/sendPhoto call. Parameters are built by
// hand rather than through the typed MessageConfig helpers because the
// message_thread_id field postdates the typed configs in this bot API
// library version.
func (s *Sender) attempt(msg Message, threadID *int64) error {
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL(msg.ButtonText, msg.URL),
		),
	)

	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", s.chatID)
	params["parse_mode"] = tgbotapi.ModeHTML
	if err := params.AddInterface("reply_markup", keyboard); err != nil {
		return err
	}
	if threadID != nil {
		params.AddNonZero64("message_thread_id", *threadID)
	}

	endpoint := "sendMessage"
	if msg.PhotoURL != "" {
		endpoint = "sendPhoto"
		params["photo"] = msg.PhotoURL
		params["caption"] = msg.Text
	} else {
		params["text"] = msg.Text
	}

	_, err := s.bot.MakeRequest(endpoint, params)
	return err
}

func isRateLimited(err error) bool {
	apiErr, ok := err.(*tgbotapi.Error)
	return ok && apiErr.Code == 429
}

func retryAfter(err error) time.Duration {
	apiErr, ok := err.(*tgbotapi.Error)
	if !ok || apiErr.ResponseParameters.RetryAfter == 0 {
		return 0
	}
	return time.Duration(apiErr.ResponseParameters.RetryAfter) * time.Second
}
