package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/realityarb/internal/domain"
)

type recordingSender struct {
	name   string
	err    error
	titles []string
}

func (s *recordingSender) Send(_ context.Context, title, _ string) error {
	s.titles = append(s.titles, title)
	return s.err
}

func (s *recordingSender) Name() string { return s.name }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifierFilters(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, []string{" LogFinalize ", ""}, discardLogger())

	require.NoError(t, n.Notify(context.Background(), "LogNewAnswer", "skip", ""))
	require.NoError(t, n.Notify(context.Background(), "LogFinalize", "keep", ""))
	require.NoError(t, n.NotifyAll(context.Background(), "always", ""))

	assert.Equal(t, []string{"keep", "always"}, s.titles)
	assert.True(t, n.Enabled())
}

func TestNotifierNoFilterAllowsEverything(t *testing.T) {
	n := NewNotifier(nil, nil, discardLogger())
	assert.True(t, n.Allows("anything"))
	assert.False(t, n.Enabled())
	require.NoError(t, n.Notify(context.Background(), "x", "y", "z"))
}

func TestNotifierCollectsSenderErrors(t *testing.T) {
	bad := &recordingSender{name: "bad", err: errors.New("down")}
	good := &recordingSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, discardLogger())

	err := n.NotifyAll(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: down")
	assert.Equal(t, []string{"t"}, good.titles, "later senders still run")
}

func TestNotifyEventFormats(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, []string{string(domain.EventMarketCreated)}, discardLogger())

	ev := domain.Event{
		Type:       domain.EventMarketCreated,
		QuestionID: common.HexToHash("0x01"),
		Data: domain.MarketCreatedData{
			Market: common.HexToAddress("0xbeef"),
			Owner:  common.HexToAddress("0xa1"),
		},
	}
	require.NoError(t, n.NotifyEvent(context.Background(), ev))
	assert.Equal(t, []string{"Arbitration market created"}, s.titles)
}

func TestFormatEvent(t *testing.T) {
	title, msg := FormatEvent(domain.Event{
		Type:       domain.EventClaim,
		QuestionID: common.HexToHash("0x02"),
		Data:       domain.ClaimData{User: common.HexToAddress("0xa3"), Amount: uint256.NewInt(2363)},
	})
	assert.Equal(t, "Winnings claimed", title)
	assert.Contains(t, msg, "question: "+common.HexToHash("0x02").Hex())
	assert.Contains(t, msg, "amount: 2363")

	title, msg = FormatEvent(domain.Event{Type: domain.EventNewTemplate})
	assert.Equal(t, "LogNewTemplate", title)
	assert.Empty(t, msg)
}

func TestTelegramSender(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("TOKEN", "42")
	s.baseURL = srv.URL
	require.NoError(t, s.Send(context.Background(), "Title", "body"))
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "*Title*\nbody", got["text"])
}

func TestDiscordSenderStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "discord: unexpected status 400")
}

func TestDiscordSenderEmbedsFields(t *testing.T) {
	var got discordMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	title, message := FormatEvent(domain.Event{
		Type:       domain.EventNotifyOfArbitrationRequest,
		QuestionID: common.HexToHash("0x01"),
		Data: domain.ArbitrationRequestData{
			Requester:   common.HexToAddress("0x02"),
			MaxPrevious: uint256.NewInt(5),
		},
	})
	require.NoError(t, NewDiscordSender(srv.URL).Send(context.Background(), title, message))

	assert.Equal(t, "realityarb", got.Username)
	require.Len(t, got.Embeds, 1)
	embed := got.Embeds[0]
	assert.Equal(t, "Arbitration requested", embed.Title)
	assert.Equal(t, colorArbitration, embed.Color)
	require.Len(t, embed.Fields, 3)
	assert.Equal(t, "question", embed.Fields[0].Name)
	assert.Equal(t, "5", embed.Fields[2].Value)
	assert.True(t, embed.Fields[2].Inline)
	assert.Empty(t, embed.Description)
}
