package notify

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text string
		cmd  string
		args string
	}{
		{"/hello", "hello", ""},
		{"/add_query https://www.vinted.de/catalog?search_text=boots", "add_query", "https://www.vinted.de/catalog?search_text=boots"},
		{"/queries@vintedwatchbot", "queries", ""},
		{"/remove_query 7", "remove_query", "7"},
		{"not a command", "", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		cmd, args := parseCommand(tt.text)
		require.Equal(t, tt.cmd, cmd, tt.text)
		require.Equal(t, tt.args, args, tt.text)
	}
}

func TestThreadIDEcho(t *testing.T) {
	p := &CommandPoller{}

	require.Equal(t, "this chat has no thread (main chat)", p.threadID(&rawMessage{}))
	require.Equal(t, "thread_id: 99", p.threadID(&rawMessage{MessageThreadID: 99}))
}
