package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/killmongerinheret/vinted-watch/internal/catalog"
	"github.com/killmongerinheret/vinted-watch/internal/model"
)

// CommandStore is the subset of store.Store the bot command surface
// needs.
type CommandStore interface {
	AddQuery(ctx context.Context, q model.Query) (int64, error)
	RemoveQuery(ctx context.Context, id int64) error
	Queries(ctx context.Context) ([]model.Query, error)
	Allowlist(ctx context.Context) ([]string, error)
	AddCountry(ctx context.Context, code string) error
	RemoveCountry(ctx context.Context, code string) error
	ClearAllowlist(ctx context.Context) error
}

// rawUpdate is the slice of the getUpdates payload the poller needs.
// Decoded by hand because message_thread_id is newer than the typed
// Update struct in this bot API library version.
type rawUpdate struct {
	UpdateID int64       `json:"update_id"`
	Message  *rawMessage `json:"message"`
}

type rawMessage struct {
	MessageID       int64  `json:"message_id"`
	MessageThreadID int64  `json:"message_thread_id"`
	Text            string `json:"text"`
	Chat            struct {
		ID int64 `json:"id"`
	} `json:"chat"`
}

// CommandPoller handles the inbound /commands surface, restricted to a
// single configured chat.
type CommandPoller struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	webURL string
	store  CommandStore
}

// NewCommandPoller constructs a poller bound to one chat and store.
func NewCommandPoller(bot *tgbotapi.BotAPI, chatID int64, webURL string, store CommandStore) *CommandPoller {
	return &CommandPoller{bot: bot, chatID: chatID, webURL: webURL, store: store}
}

// Run long-polls getUpdates, advancing the offset past every update it
// has seen, until ctx is cancelled. Cancellation is observed between
// polls; an in-flight long poll is bounded by its own timeout.
func (p *CommandPoller) Run(ctx context.Context) {
	var offset int64
	for ctx.Err() == nil {
		updates, err := p.poll(offset)
		if err != nil {
			log.Printf("⚠️ notify: getUpdates failed: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			if u.Message == nil || u.Message.Chat.ID != p.chatID {
				continue
			}
			p.handle(ctx, u.Message)
		}
	}
}

func (p *CommandPoller) poll(offset int64) ([]rawUpdate, error) {
	params := tgbotapi.Params{}
	params.AddNonZero64("offset", offset)
	params.AddNonZero("limit", 100)
	params.AddNonZero("timeout", 30)

	resp, err := p.bot.MakeRequest("getUpdates", params)
	if err != nil {
		return nil, err
	}

	var updates []rawUpdate
	if err := json.Unmarshal(resp.Result, &updates); err != nil {
		return nil, fmt.Errorf("decode updates: %w", err)
	}
	return updates, nil
}

// parseCommand splits "/cmd@botname args" into its command and argument
// parts. A non-command message returns ("", "").
func parseCommand(text string) (cmd, args string) {
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}
	rest := text[1:]
	if i := strings.IndexAny(rest, " \n"); i >= 0 {
		rest, args = rest[:i], strings.TrimSpace(text[1+i:])
	}
	if j := strings.IndexByte(rest, '@'); j >= 0 {
		rest = rest[:j]
	}
	return rest, args
}

func (p *CommandPoller) handle(ctx context.Context, msg *rawMessage) {
	cmd, args := parseCommand(msg.Text)
	if cmd == "" {
		return
	}

	var reply string
	switch cmd {
	case "hello":
		reply = "vinted-watch is running"
	case "app":
		reply = p.webURL
	case "queries", "queries_list":
		reply = p.formatQueries(ctx)
	case "add_query":
		reply = p.addQuery(ctx, args)
	case "remove_query":
		reply = p.removeQuery(ctx, args)
	case "allowlist":
		reply = p.formatAllowlist(ctx)
	case "add_country":
		reply = p.addCountry(ctx, args)
	case "remove_country":
		reply = p.removeCountry(ctx, args)
	case "clear_allowlist":
		reply = p.clearAllowlist(ctx)
	case "thread_id":
		reply = p.threadID(msg)
	default:
		return
	}

	p.reply(msg, reply)
}

// reply answers in the same thread the command arrived on, if any.
func (p *CommandPoller) reply(msg *rawMessage, text string) {
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", msg.Chat.ID)
	params["text"] = text
	params["parse_mode"] = tgbotapi.ModeHTML
	params.AddNonZero64("message_thread_id", msg.MessageThreadID)

	if _, err := p.bot.MakeRequest("sendMessage", params); err != nil {
		log.Printf("⚠️ notify: command reply failed: %v", err)
	}
}

func (p *CommandPoller) formatQueries(ctx context.Context) string {
	queries, err := p.store.Queries(ctx)
	if err != nil {
		return "failed to list queries"
	}
	if len(queries) == 0 {
		return "no saved queries"
	}
	var b strings.Builder
	for _, q := range queries {
		fmt.Fprintf(&b, "#%d %s — %s\n", q.ID, q.Name, q.URL)
	}
	return b.String()
}

func (p *CommandPoller) addQuery(ctx context.Context, args string) string {
	url := strings.TrimSpace(args)
	if url == "" {
		return "usage: /add_query <url>"
	}
	canon, err := catalog.Canonicalize(url)
	if err != nil {
		return "invalid query url"
	}
	id, err := p.store.AddQuery(ctx, model.Query{URL: canon.String()})
	if err != nil {
		return "failed to add query"
	}
	return fmt.Sprintf("added query #%d", id)
}

func (p *CommandPoller) removeQuery(ctx context.Context, args string) string {
	id, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil {
		return "usage: /remove_query <id>"
	}
	if err := p.store.RemoveQuery(ctx, id); err != nil {
		return "failed to remove query"
	}
	return fmt.Sprintf("removed query #%d", id)
}

func (p *CommandPoller) formatAllowlist(ctx context.Context) string {
	codes, err := p.store.Allowlist(ctx)
	if err != nil {
		return "failed to read allowlist"
	}
	if len(codes) == 0 {
		return "allowlist is empty"
	}
	return strings.Join(codes, ", ")
}

func (p *CommandPoller) addCountry(ctx context.Context, args string) string {
	code := strings.TrimSpace(args)
	if code == "" {
		return "usage: /add_country <code>"
	}
	if err := p.store.AddCountry(ctx, code); err != nil {
		return "failed to add country"
	}
	return fmt.Sprintf("added %s to allowlist", strings.ToUpper(code))
}

func (p *CommandPoller) removeCountry(ctx context.Context, args string) string {
	code := strings.TrimSpace(args)
	if code == "" {
		return "usage: /remove_country <code>"
	}
	if err := p.store.RemoveCountry(ctx, code); err != nil {
		return "failed to remove country"
	}
	return fmt.Sprintf("removed %s from allowlist", strings.ToUpper(code))
}

func (p *CommandPoller) clearAllowlist(ctx context.Context) string {
	if err := p.store.ClearAllowlist(ctx); err != nil {
		return "failed to clear allowlist"
	}
	return "allowlist cleared"
}

// threadID echoes the thread id of the current message.
func (p *CommandPoller) threadID(msg *rawMessage) string {
	if msg.MessageThreadID == 0 {
		return "this chat has no thread (main chat)"
	}
	return fmt.Sprintf("thread_id: %d", msg.MessageThreadID)
}
