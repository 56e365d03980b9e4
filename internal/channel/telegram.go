package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// MaxTelegramText is the longest reply sent before truncation.
const MaxTelegramText = 4000

// TelegramConfig configures the Telegram bot channel.
type TelegramConfig struct {
	Token       string
	APIBase     string
	PollTimeout time.Duration
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

// Telegram is a bot channel using Bot API long polling.
type Telegram struct {
	api         *telegramAPI
	pollTimeout time.Duration
	logger      *slog.Logger

	messages chan *Message
	done     chan struct{}
	cancel   context.CancelFunc

	mu           sync.Mutex
	started      bool
	placeholders map[string]int64 // placeholderKey -> "Thinking..." message id
	wg           sync.WaitGroup
}

// NewTelegram creates a Telegram channel.
func NewTelegram(cfg TelegramConfig) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram: bot token is required")
	}
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.telegram.org"
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Telegram{
		api:          newTelegramAPI(cfg.HTTPClient, cfg.APIBase, cfg.Token),
		pollTimeout:  cfg.PollTimeout,
		logger:       cfg.Logger,
		messages:     make(chan *Message, 32),
		done:         make(chan struct{}),
		placeholders: make(map[string]int64),
	}, nil
}

func (t *Telegram) Name() string {
	return "telegram"
}

// Start checks the token with getMe and begins polling for updates.
func (t *Telegram) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return nil
	}
	t.started = true
	ctx, t.cancel = context.WithCancel(ctx)
	t.mu.Unlock()

	me, err := t.api.getMe(ctx)
	if err != nil {
		return fmt.Errorf("telegram getMe: %w", err)
	}
	t.logger.Info("telegram_connected", "bot", me.Username)

	t.wg.Add(1)
	go t.pollLoop(ctx)
	return nil
}

func (t *Telegram) pollLoop(ctx context.Context) {
	defer t.wg.Done()
	defer close(t.messages)

	var offset int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.done:
			return
		default:
		}

		updates, next, err := t.api.getUpdates(ctx, offset, t.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if isPollTimeout(err) {
				continue
			}
			t.logger.Warn("telegram_poll_error", "error", err.Error())
			select {
			case <-time.After(2 * time.Second):
			case <-ctx.Done():
				return
			case <-t.done:
				return
			}
			continue
		}
		offset = next

		for _, u := range updates {
			msg := u.toMessage()
			if msg == nil {
				continue
			}
			t.logger.Debug("telegram_update", "update_id", u.UpdateID, "chat_id", msg.Metadata[MetaChatID])
			select {
			case t.messages <- msg:
			case <-ctx.Done():
				return
			case <-t.done:
				return
			}
		}
	}
}

// Send delivers a message to the chat named in its metadata. A "status"
// message is remembered and replaced by the next assistant reply.
func (t *Telegram) Send(ctx context.Context, msg *Message) error {
	switch msg.Role {
	case "assistant", "status", "reminder", "error":
	default:
		return nil
	}
	if msg.Content == "" {
		return nil
	}
	chatID, err := strconv.ParseInt(msg.ChatID(), 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid chat id %q", msg.ChatID())
	}
	text := TruncateText(msg.Content, MaxTelegramText)

	key := placeholderKey(chatID, msg)
	if msg.Role == "status" {
		id, err := t.api.sendMessage(ctx, chatID, text)
		if err != nil {
			return err
		}
		t.mu.Lock()
		t.placeholders[key] = id
		t.mu.Unlock()
		return nil
	}

	if msg.Role == "reminder" {
		_, err = t.api.sendMessage(ctx, chatID, text)
		return err
	}

	t.mu.Lock()
	placeholder, ok := t.placeholders[key]
	delete(t.placeholders, key)
	t.mu.Unlock()

	if ok {
		err := t.api.editMessageText(ctx, chatID, placeholder, text)
		if err == nil {
			return nil
		}
		t.logger.Debug("telegram_edit_failed", "chat_id", chatID, "error", err.Error())
	}
	_, err = t.api.sendMessage(ctx, chatID, text)
	return err
}

// placeholderKey ties a placeholder to the message it answers, so two
// questions in flight from one chat each get their own placeholder.
func placeholderKey(chatID int64, msg *Message) string {
	if id := msg.Meta(MetaReplyTo); id != "" {
		return id
	}
	return "chat:" + strconv.FormatInt(chatID, 10)
}

func (t *Telegram) Receive() <-chan *Message {
	return t.messages
}

// Stop ends polling and waits for the poll loop to exit.
func (t *Telegram) Stop() error {
	t.mu.Lock()
	if !t.started {
		t.mu.Unlock()
		return nil
	}
	select {
	case <-t.done:
	default:
		close(t.done)
		t.cancel()
	}
	t.mu.Unlock()
	t.wg.Wait()
	return nil
}

// TruncateText cuts s to max runes, marking the cut.
func TruncateText(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "... (message truncated)"
}

// Telegram API

type telegramAPI struct {
	http    *http.Client
	baseURL string
	token   string
}

func newTelegramAPI(httpClient *http.Client, baseURL, token string) *telegramAPI {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &telegramAPI{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

type telegramUpdate struct {
	UpdateID int64            `json:"update_id"`
	Message  *telegramMessage `json:"message,omitempty"`
}

type telegramMessage struct {
	MessageID int64         `json:"message_id"`
	Date      int64         `json:"date,omitempty"`
	Chat      *telegramChat `json:"chat,omitempty"`
	From      *telegramUser `json:"from,omitempty"`
	Text      string        `json:"text,omitempty"`
}

type telegramChat struct {
	ID   int64  `json:"id"`
	Type string `json:"type,omitempty"`
}

type telegramUser struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot,omitempty"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

func (u *telegramUser) displayName() string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" && u.Username != "" {
		name = "@" + u.Username
	}
	return name
}

func (u telegramUpdate) toMessage() *Message {
	m := u.Message
	if m == nil || m.Chat == nil || strings.TrimSpace(m.Text) == "" {
		return nil
	}
	if m.From != nil && m.From.IsBot {
		return nil
	}
	meta := map[string]any{
		MetaChatID:   strconv.FormatInt(m.Chat.ID, 10),
		MetaChatType: m.Chat.Type,
	}
	if m.From != nil {
		meta[MetaUserID] = strconv.FormatInt(m.From.ID, 10)
		meta[MetaUserName] = m.From.displayName()
		if m.From.Username != "" {
			meta[MetaUsername] = m.From.Username
		}
	}
	ts := time.Now()
	if m.Date > 0 {
		ts = time.Unix(m.Date, 0)
	}
	return &Message{
		ID:        uuid.New().String(),
		Role:      "user",
		Content:   strings.TrimSpace(m.Text),
		Timestamp: ts,
		Metadata:  meta,
	}
}

func (api *telegramAPI) call(ctx context.Context, method string, body any) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/bot%s/%s", api.baseURL, api.token, method)
	var req *http.Request
	var err error
	if body == nil {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	} else {
		b, merr := json.Marshal(body)
		if merr != nil {
			return nil, merr
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
		}
	}
	if err != nil {
		return nil, err
	}

	resp, err := api.http.Do(req)
	if err != nil {
		return nil, err
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !gjson.GetBytes(raw, "ok").Bool() {
		desc := gjson.GetBytes(raw, "description").String()
		if desc == "" {
			desc = strings.TrimSpace(string(raw))
		}
		return nil, fmt.Errorf("telegram %s: http %d: %s", method, resp.StatusCode, desc)
	}
	return raw, nil
}

func (api *telegramAPI) getMe(ctx context.Context) (*telegramUser, error) {
	raw, err := api.call(ctx, "getMe", nil)
	if err != nil {
		return nil, err
	}
	var out telegramUser
	if err := json.Unmarshal([]byte(gjson.GetBytes(raw, "result").Raw), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (api *telegramAPI) getUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]telegramUpdate, int64, error) {
	secs := int(timeout.Seconds())
	if secs < 1 {
		secs = 1
	}
	method := fmt.Sprintf("getUpdates?timeout=%d", secs)
	if offset > 0 {
		method += fmt.Sprintf("&offset=%d", offset)
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout+5*time.Second)
	defer cancel()
	raw, err := api.call(reqCtx, method, nil)
	if err != nil {
		return nil, offset, err
	}

	var updates []telegramUpdate
	if err := json.Unmarshal([]byte(gjson.GetBytes(raw, "result").Raw), &updates); err != nil {
		return nil, offset, err
	}
	next := offset
	for _, u := range updates {
		if u.UpdateID >= next {
			next = u.UpdateID + 1
		}
	}
	return updates, next, nil
}

type telegramSendMessageRequest struct {
	ChatID                int64  `json:"chat_id"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview,omitempty"`
}

type telegramEditMessageRequest struct {
	ChatID    int64  `json:"chat_id"`
	MessageID int64  `json:"message_id"`
	Text      string `json:"text"`
}

func (api *telegramAPI) sendMessage(ctx context.Context, chatID int64, text string) (int64, error) {
	raw, err := api.call(ctx, "sendMessage", telegramSendMessageRequest{
		ChatID:                chatID,
		Text:                  text,
		DisableWebPagePreview: true,
	})
	if err != nil {
		return 0, err
	}
	return gjson.GetBytes(raw, "result.message_id").Int(), nil
}

func (api *telegramAPI) editMessageText(ctx context.Context, chatID, messageID int64, text string) error {
	_, err := api.call(ctx, "editMessageText", telegramEditMessageRequest{
		ChatID:    chatID,
		MessageID: messageID,
		Text:      text,
	})
	return err
}

func isPollTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
