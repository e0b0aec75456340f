package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/whatsapp_relay/internal/relay"
	"github.com/lewisedginton/whatsapp_relay/pkg/logger"
)

type sentMessage struct {
	method          string
	chatID          string
	text            string
	replyParameters string
}

// fakeAPI records Bot API calls and answers them successfully
type fakeAPI struct {
	mu   sync.Mutex
	sent []sentMessage
	srv  *httptest.Server
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{}
	api.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			_ = r.ParseForm()
		}
		if path.Base(r.URL.Path) == "getUpdates" {
			select {
			case <-r.Context().Done():
			case <-time.After(50 * time.Millisecond):
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"ok":true,"result":[]}`))
			return
		}
		api.mu.Lock()
		api.sent = append(api.sent, sentMessage{
			method:          path.Base(r.URL.Path),
			chatID:          r.FormValue("chat_id"),
			text:            r.FormValue("text"),
			replyParameters: r.FormValue("reply_parameters"),
		})
		api.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":100,"date":1700000000,"chat":{"id":42,"type":"private"}}}`))
	}))
	t.Cleanup(api.srv.Close)
	return api
}

func (a *fakeAPI) calls() []sentMessage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]sentMessage(nil), a.sent...)
}

type recordingDispatcher struct {
	mu       sync.Mutex
	messages []relay.Message
	repliers []relay.Replier
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, msg relay.Message, replier relay.Replier) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = append(d.messages, msg)
	d.repliers = append(d.repliers, replier)
	return nil
}

func newTestConnector(t *testing.T, api *fakeAPI, d relay.Dispatcher) *Connector {
	t.Helper()
	c, err := NewConnector(Config{
		BotToken: "123:test-token",
		Options:  []bot.Option{bot.WithSkipGetMe(), bot.WithServerURL(api.srv.URL)},
	}, d, logger.NewNop())
	require.NoError(t, err)
	return c
}

func textUpdate(text string, isBot bool) *models.Update {
	return &models.Update{
		Message: &models.Message{
			ID:   7,
			Date: 1700000000,
			Chat: models.Chat{ID: 42, Type: "private"},
			From: &models.User{ID: 1001, IsBot: isBot, Username: "dana"},
			Text: text,
		},
	}
}

func TestNewConnector_Validation(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		dispatcher relay.Dispatcher
	}{
		{name: "missing token", dispatcher: &recordingDispatcher{}},
		{name: "missing dispatcher", token: "123:test-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConnector(Config{BotToken: tt.token}, tt.dispatcher, logger.NewNop())
			if err == nil {
				t.Errorf("NewConnector() expected error")
			}
		})
	}
}

func TestHandleUpdate_DispatchesText(t *testing.T) {
	api := newFakeAPI(t)
	d := &recordingDispatcher{}
	c := newTestConnector(t, api, d)

	c.handleUpdate(context.Background(), c.bot, textUpdate("Hello", false))

	require.Len(t, d.messages, 1)
	msg := d.messages[0]
	assert.Equal(t, relay.PlatformTelegram, msg.Platform)
	assert.Equal(t, "7", msg.ID)
	assert.Equal(t, "42", msg.ChatID)
	assert.Equal(t, "1001", msg.SenderID)
	assert.Equal(t, "dana", msg.SenderName)
	assert.Equal(t, "Hello", msg.Body)

	require.NoError(t, d.repliers[0].Reply(context.Background(), "Hi there!"))
	calls := api.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "sendMessage", calls[0].method)
	assert.Equal(t, "42", calls[0].chatID)
	assert.Equal(t, "Hi there!", calls[0].text)
	assert.Contains(t, calls[0].replyParameters, `"message_id":7`)
}

func TestHandleUpdate_Skips(t *testing.T) {
	tests := []struct {
		name   string
		update *models.Update
	}{
		{name: "no message", update: &models.Update{}},
		{name: "empty text", update: textUpdate("", false)},
		{name: "bot sender", update: textUpdate("Hello", true)},
		{name: "no sender", update: &models.Update{Message: &models.Message{ID: 1, Chat: models.Chat{ID: 42}, Text: "Hello"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI(t)
			d := &recordingDispatcher{}
			c := newTestConnector(t, api, d)

			c.handleUpdate(context.Background(), c.bot, tt.update)

			assert.Empty(t, d.messages)
			assert.Empty(t, api.calls())
		})
	}
}

func TestHandleUpdate_Commands(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{text: "/help", want: helpText},
		{text: "/start", want: helpText},
		{text: "/help@relay_bot", want: helpText},
		{text: "/weather tomorrow", want: "Unknown command: /weather"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			api := newFakeAPI(t)
			d := &recordingDispatcher{}
			c := newTestConnector(t, api, d)

			c.handleUpdate(context.Background(), c.bot, textUpdate(tt.text, false))

			assert.Empty(t, d.messages, "commands are not relayed")
			calls := api.calls()
			require.Len(t, calls, 1)
			assert.Equal(t, tt.want, calls[0].text)
		})
	}
}

func TestConnector_StartStop(t *testing.T) {
	api := newFakeAPI(t)
	c := newTestConnector(t, api, &recordingDispatcher{})

	assert.ErrorIs(t, c.Ready(), ErrNotRunning)

	done := make(chan error, 1)
	go func() { done <- c.Start(context.Background()) }()
	require.Eventually(t, func() bool { return c.Ready() == nil }, testTimeout, tick)

	require.NoError(t, c.Stop())
	require.Eventually(t, func() bool {
		select {
		case err := <-done:
			return err == nil
		default:
			return false
		}
	}, testTimeout, tick)
	assert.ErrorIs(t, c.Ready(), ErrNotRunning)
	assert.Equal(t, "telegram", c.Name())
}

const (
	testTimeout = 5 * time.Second
	tick        = 10 * time.Millisecond
)
