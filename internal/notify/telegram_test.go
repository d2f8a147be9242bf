package notify

import (
	"testing"

	"github.com/stretchr/testify/require"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/killmongerinheret/vinted-watch/internal/ingest"
)

func TestFromNotificationCopiesFields(t *testing.T) {
	thread := int64(42)
	n := ingest.Notification{
		Text:       "hello",
		URL:        "https://www.vinted.de/items/1",
		ButtonText: "Open Vinted",
		ThreadID:   &thread,
		PhotoURL:   "https://img/1.jpg",
	}

	msg := FromNotification(n)
	require.Equal(t, n.Text, msg.Text)
	require.Equal(t, n.URL, msg.URL)
	require.Equal(t, n.ButtonText, msg.ButtonText)
	require.Equal(t, *n.ThreadID, *msg.ThreadID)
	require.Equal(t, n.PhotoURL, msg.PhotoURL)
}

func TestIsRateLimitedOnlyMatchesAPIError(t *testing.T) {
	require.False(t, isRateLimited(nil))

	apiErr := &tgbotapi.Error{Code: 429, Message: "Too Many Requests"}
	require.True(t, isRateLimited(apiErr))

	apiErr.Code = 500
	require.False(t, isRateLimited(apiErr))
}

func TestRetryAfterReadsResponseParameters(t *testing.T) {
	apiErr := &tgbotapi.Error{
		Code:               429,
		ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 5},
	}
	require.Equal(t, 5e9, float64(retryAfter(apiErr)))
}
