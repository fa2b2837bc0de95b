package telegram

import (
	"context"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"

	app "board-vision/internal/application"
	"board-vision/internal/domain/entity"
	"board-vision/internal/infrastructure/storage"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []tgbotapi.MessageConfig
}

func (s *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		s.sent = append(s.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func (s *fakeSender) chats() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int64
	for _, m := range s.sent {
		out = append(out, m.ChatID)
	}
	return out
}

func (s *fakeSender) lastText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent[len(s.sent)-1].Text
}

type fakeStream struct {
	last   *entity.PipelineUpdate
	resets int
}

func (f *fakeStream) Last(ctx context.Context) (*entity.PipelineUpdate, error) { return f.last, nil }
func (f *fakeStream) Reset()                                                    { f.resets++ }
func (f *fakeStream) Stats() app.PipelineStats                                  { return app.PipelineStats{Processed: 12, Dropped: 3} }

func newTestBot(chatID int64, stream StreamController) (*Bot, *fakeSender) {
	out := &fakeSender{}
	return &Bot{
		out:         out,
		chatID:      chatID,
		subscribers: app.NewSubscriberService(storage.NewMemorySubscriberRepository()),
		stream:      stream,
	}, out
}

func command(userID, chatID int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}},
		From:     &tgbotapi.User{ID: userID},
		Chat:     &tgbotapi.Chat{ID: chatID},
	}
}

var moveUpdate = entity.PipelineUpdate{
	FEN:       "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR w - - 0 1",
	Change:    entity.Move,
	Timestamp: time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC),
	Performance: entity.Performance{
		AvgConfidence:      0.934,
		LowConfidenceCount: 2,
		Source:             entity.SourceModel,
	},
}

func TestNotify_SkipsNoChange(t *testing.T) {
	b, out := newTestBot(99, nil)
	u := moveUpdate
	u.Change = entity.NoChange
	require.NoError(t, b.Notify(context.Background(), u))
	require.Empty(t, out.chats())
}

func TestNotify_SendsToPrimaryAndWatchers(t *testing.T) {
	b, out := newTestBot(10, nil)
	ctx := context.Background()

	b.handleMessage(ctx, command(1, 10, "/watch"))
	b.handleMessage(ctx, command(2, 20, "/watch"))
	b.handleMessage(ctx, command(3, 30, "/watch"))
	b.handleMessage(ctx, command(3, 30, "/stop"))
	out.sent = nil

	require.NoError(t, b.Notify(ctx, moveUpdate))
	require.Equal(t, []int64{10, 20}, out.chats())
	require.Contains(t, out.lastText(), moveUpdate.FEN)
}

func TestCommands_StatusAndReset(t *testing.T) {
	stream := &fakeStream{}
	b, out := newTestBot(0, stream)
	ctx := context.Background()

	b.handleMessage(ctx, command(1, 10, "/status"))
	require.Equal(t, msgNoPosition, out.lastText())

	u := moveUpdate
	stream.last = &u
	b.handleMessage(ctx, command(1, 10, "/status"))
	require.Contains(t, out.lastText(), "15:04:05")
	require.Contains(t, out.lastText(), "12 обработано, 3 пропущено")

	b.handleMessage(ctx, command(1, 10, "/reset"))
	require.Equal(t, 1, stream.resets)
	require.Equal(t, msgReset, out.lastText())

	b.handleMessage(ctx, command(1, 10, "/nope"))
	require.Equal(t, msgUnknownCommand, out.lastText())
}

func TestCommands_CheckSetsState(t *testing.T) {
	b, out := newTestBot(0, nil)
	ctx := context.Background()

	b.handleMessage(ctx, command(1, 10, "/check"))
	require.Equal(t, msgAwaitingPhoto, out.lastText())
	sub, err := b.subscribers.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateAwaitingPhoto, sub.State)

	b.handleMessage(ctx, command(1, 10, "/cancel"))
	sub, err = b.subscribers.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateIdle, sub.State)

	b.handleMessage(ctx, &tgbotapi.Message{Text: "hi", From: &tgbotapi.User{ID: 1}, Chat: &tgbotapi.Chat{ID: 10}})
	require.Equal(t, msgSendPhoto, out.lastText())
}

func TestFormatUpdate(t *testing.T) {
	text := formatUpdate(moveUpdate)
	require.Contains(t, text, "♟ Ход")
	require.Contains(t, text, "93% (модель)")
	require.Contains(t, text, "https://lichess.org/analysis/rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR_w_-_-_0_1")

	u := moveUpdate
	u.Change = entity.NewGame
	u.WasFlipped = true
	u.Performance.Source = entity.SourceHeuristic
	text = formatUpdate(u)
	require.Contains(t, text, "Новая партия")
	require.Contains(t, text, "эвристика")
	require.Contains(t, text, "доска развёрнута")
}

func TestRecipients(t *testing.T) {
	require.Equal(t, []int64{5, 1, 2}, recipients(5, []int64{1, 5, 2, 1}))
	require.Equal(t, []int64{1}, recipients(0, []int64{1}))
	require.Empty(t, recipients(0, nil))
}
