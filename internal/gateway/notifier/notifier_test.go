package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"pricewatch/internal/config"
	"pricewatch/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

func sampleAlert() Alert {
	return Alert{
		Product:     types.Product{SKU: "12345", Name: "Example Product 1", Locator: "https://www.example.com/product/12345"},
		Price:       40,
		Site:        "example.com",
		PreviousLow: 50,
		HadPrevious: true,
		ObservedAt:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		RunID:       "run-1",
	}
}

func TestAlertText(t *testing.T) {
	assert.Equal(t,
		"Price alert: 'Example Product 1' (SKU 12345) has a new low price of 40.00. See https://www.example.com/product/12345 for details.",
		sampleAlert().Text())
}

func TestAlertChatAndPayload(t *testing.T) {
	a := sampleAlert()
	md := a.chat().Markdown()
	assert.Contains(t, md, a.Text())
	assert.Contains(t, md, "Previous low: 50.00")
	assert.Contains(t, md, "Time: 2024-03-01 12:00:00 UTC")

	p := a.Payload()
	assert.Equal(t, 50.0, p["previous_low"])
	assert.Equal(t, "run-1", p["run_id"])

	a.HadPrevious = false
	assert.NotContains(t, a.Payload(), "previous_low")
	assert.Contains(t, a.chat().Markdown(), "none recorded")
}

func TestChatMessageTruncatesOnRuneBoundary(t *testing.T) {
	m := chatMessage{Header: strings.Repeat("📉", maxChatMessageLen+10)}
	md := m.Markdown()
	assert.True(t, utf8.ValidString(md))
	assert.True(t, strings.HasSuffix(md, "..."))

	fenced := chatMessage{Details: []string{"name ``` break", "  "}}
	assert.Equal(t, "```\n- name ''' break\n```", fenced.Markdown())
}

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)
	require.NoError(t, c.Notify(context.Background(), sampleAlert()))
	assert.Equal(t, "[NOTIFICATION] "+sampleAlert().Text()+"\n", buf.String())
	assert.Equal(t, "console", c.Name())
}

func TestTelegramNotify(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tg := NewTelegram("TOKEN", "42")
	tg.BaseURL = srv.URL
	require.NoError(t, tg.Notify(context.Background(), sampleAlert()))
	assert.Equal(t, "42", got["chat_id"])
	assert.True(t, strings.Contains(got["text"].(string), "new low price of 40.00"))
}

func TestTelegramSingleAttemptOnFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	tg := NewTelegram("TOKEN", "42")
	tg.BaseURL = srv.URL
	err := tg.Notify(context.Background(), sampleAlert())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=502")
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "a failed send is not retried")
}

func TestTelegramIncompleteConfig(t *testing.T) {
	assert.Error(t, NewTelegram("", "42").Notify(context.Background(), sampleAlert()))
}

type fakeMessages struct {
	params *openapi.CreateMessageParams
	err    error
}

func (f *fakeMessages) CreateMessage(p *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error) {
	f.params = p
	return &openapi.ApiV2010Message{}, f.err
}

func TestTwilioNotify(t *testing.T) {
	fake := &fakeMessages{}
	tw := &Twilio{From: "+15550000000", To: "+15551111111", api: fake}
	require.NoError(t, tw.Notify(context.Background(), sampleAlert()))
	require.NotNil(t, fake.params)
	assert.Equal(t, "+15551111111", *fake.params.To)
	assert.Equal(t, "+15550000000", *fake.params.From)
	assert.Equal(t, sampleAlert().Text(), *fake.params.Body)

	fake.err = errors.New("boom")
	assert.ErrorContains(t, tw.Notify(context.Background(), sampleAlert()), "boom")
}

func TestFromConfig(t *testing.T) {
	assert.Equal(t, "console", FromConfig(config.NotifyConfig{}, &bytes.Buffer{}).Name())

	cfg := config.NotifyConfig{}
	cfg.Twilio = config.TwilioConfig{Enabled: true, AccountSID: "AC1", AuthToken: "t", From: "+1", To: "+15551234567"}
	assert.Equal(t, "twilio", FromConfig(cfg, nil).Name())

	cfg.Telegram = config.TelegramConfig{Enabled: true, BotToken: "x", ChatID: "1"}
	assert.Equal(t, "telegram", FromConfig(cfg, nil).Name())

	assert.Equal(t, "***4567", maskNumber("+15551234567"))
}
