package telegram

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	app "board-vision/internal/application"
	"board-vision/internal/domain/entity"
	"board-vision/internal/domain/port"
)

const (
	msgStart = `👋 Привет! Я слежу за шахматной доской на видео и пересказываю ходы.

📋 Команды:
/watch — присылать ходы в этот чат
/stop — перестать присылать ходы
/status — текущая позиция
/check — распознать позицию по фото
/reset — начать отслеживание заново
/help — справка`

	msgHelp = `ℹ️ Как пользоваться ботом:

1️⃣ /watch — и бот будет присылать каждый ход и каждую новую партию
2️⃣ /status — последняя распознанная позиция со ссылкой на анализ
3️⃣ /check и фото доски — разовое распознавание

💡 Рекомендации для фото:
• Доска целиком в кадре
• Ровное освещение без бликов
• Снимок сверху, без сильного наклона`

	msgAwaitingPhoto   = "📸 Отправьте фото шахматной доски."
	msgCancelled       = "❌ Операция отменена."
	msgSendPhoto       = "📸 Отправьте /check и фото доски или /help для справки."
	msgUnknownCommand  = "❓ Неизвестная команда. Используйте /help для справки."
	msgProcessing      = "⏳ Распознаю позицию..."
	msgNoBoard         = "🔍 Доска на фото не найдена."
	msgProcessingError = "⚠️ Не удалось обработать изображение. Попробуйте сделать другое фото."
	msgWatching        = "👀 Буду присылать ходы в этот чат."
	msgStopped         = "🔕 Больше не присылаю ходы."
	msgNoPosition      = "🤷 Позиция ещё не распознана."
	msgReset           = "🔄 Отслеживание начато заново."
)

// StreamController живой поток, которым управляет бот
type StreamController interface {
	Last(ctx context.Context) (*entity.PipelineUpdate, error)
	Reset()
	Stats() app.PipelineStats
}

// Highlighter рисует найденную область на фото
type Highlighter func(photo []byte, region entity.Region) ([]byte, error)

// sender часть BotAPI, через которую уходят сообщения
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot представляет Telegram-бота
type Bot struct {
	api         *tgbotapi.BotAPI
	out         sender
	chatID      int64
	subscribers *app.SubscriberService
	inspections *app.InspectionService
	stream      StreamController
	highlight   Highlighter
}

// NewBot создаёт нового бота. chatID, если не ноль, получает обновления всегда.
func NewBot(token string, chatID int64, subscribers *app.SubscriberService, inspections *app.InspectionService, stream StreamController, highlight Highlighter) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	log.Printf("Authorized on account %s", api.Self.UserName)

	return &Bot{
		api:         api,
		out:         api,
		chatID:      chatID,
		subscribers: subscribers,
		inspections: inspections,
		stream:      stream,
		highlight:   highlight,
	}, nil
}

// Notify пересылает ходы и новые партии подписанным чатам.
func (b *Bot) Notify(ctx context.Context, update entity.PipelineUpdate) error {
	if update.Change == entity.NoChange {
		return nil
	}

	var watching []int64
	if b.subscribers != nil {
		var err error
		if watching, err = b.subscribers.WatchingChats(ctx); err != nil {
			return fmt.Errorf("list subscribers: %w", err)
		}
	}

	text := formatUpdate(update)
	for _, chatID := range recipients(b.chatID, watching) {
		b.sendMessage(chatID, text)
	}
	return nil
}

// Run запускает основной цикл обработки сообщений до отмены ctx
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

// handleMessage обрабатывает входящее сообщение
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	sub, err := b.subscribers.Get(ctx, msg.From.ID, msg.Chat.ID)
	if err != nil {
		log.Printf("Error getting subscriber: %v", err)
		return
	}

	// Обработка команд
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	// Обработка фото
	if len(msg.Photo) > 0 && sub.State == entity.StateAwaitingPhoto {
		b.handlePhoto(ctx, msg)
		return
	}

	b.sendMessage(msg.Chat.ID, msgSendPhoto)
}

// handleCommand обрабатывает команды бота
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	userID, chatID := msg.From.ID, msg.Chat.ID

	switch msg.Command() {
	case "start":
		b.logIfErr(b.subscribers.Cancel(ctx, userID, chatID))
		b.sendMessage(chatID, msgStart)

	case "help":
		b.sendMessage(chatID, msgHelp)

	case "check":
		b.logIfErr(b.subscribers.BeginCheck(ctx, userID, chatID))
		b.sendMessage(chatID, msgAwaitingPhoto)

	case "cancel":
		b.logIfErr(b.subscribers.Cancel(ctx, userID, chatID))
		b.sendMessage(chatID, msgCancelled)

	case "watch":
		b.logIfErr(b.subscribers.Watch(ctx, userID, chatID, true))
		b.sendMessage(chatID, msgWatching)

	case "stop":
		b.logIfErr(b.subscribers.Watch(ctx, userID, chatID, false))
		b.sendMessage(chatID, msgStopped)

	case "status":
		b.sendMessage(chatID, b.status(ctx))

	case "reset":
		if b.stream != nil {
			b.stream.Reset()
		}
		b.sendMessage(chatID, msgReset)

	default:
		b.sendMessage(chatID, msgUnknownCommand)
	}
}

// status текст для /status
func (b *Bot) status(ctx context.Context) string {
	if b.stream == nil {
		return msgNoPosition
	}
	last, err := b.stream.Last(ctx)
	if err != nil {
		log.Printf("Error loading last update: %v", err)
	}
	if last == nil {
		return msgNoPosition
	}
	return formatStatus(*last, b.stream.Stats())
}

// handlePhoto распознаёт позицию на присланном фото
func (b *Bot) handlePhoto(ctx context.Context, msg *tgbotapi.Message) {
	b.sendMessage(msg.Chat.ID, msgProcessing)

	// Получаем файл с максимальным разрешением
	photo := msg.Photo[len(msg.Photo)-1]

	imageData, err := b.downloadFile(photo.FileID)
	if err != nil {
		log.Printf("Error downloading photo: %v", err)
		b.sendMessage(msg.Chat.ID, msgProcessingError)
		b.logIfErr(b.subscribers.Cancel(ctx, msg.From.ID, msg.Chat.ID))
		return
	}

	res, err := b.inspections.AcceptPhoto(ctx, msg.From.ID, msg.Chat.ID, imageData)
	if err != nil {
		log.Printf("Error inspecting photo: %v", err)
		b.sendMessage(msg.Chat.ID, msgProcessingError)
		return
	}
	if !res.Found || res.Classification == nil {
		b.sendMessage(msg.Chat.ID, msgNoBoard)
		return
	}

	text := formatInspection(res)
	if b.highlight != nil {
		if highlighted, err := b.highlight(imageData, res.Region); err == nil {
			b.sendPhoto(msg.Chat.ID, highlighted, text)
			return
		}
	}
	b.sendMessage(msg.Chat.ID, text)
}

// downloadFile скачивает файл из Telegram
func (b *Bot) downloadFile(fileID string) ([]byte, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	fileURL := file.Link(b.api.Token)

	resp, err := http.Get(fileURL)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}

// sendMessage отправляет текстовое сообщение
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.out.Send(msg); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}

// sendPhoto отправляет фото с подписью
func (b *Bot) sendPhoto(chatID int64, data []byte, caption string) {
	msg := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "board.jpg", Bytes: data})
	msg.Caption = caption
	if _, err := b.out.Send(msg); err != nil {
		log.Printf("Error sending photo: %v", err)
	}
}

func (b *Bot) logIfErr(_ *entity.Subscriber, err error) {
	if err != nil {
		log.Printf("Error saving subscriber: %v", err)
	}
}

// recipients объединяет основной чат и подписчиков без повторов.
func recipients(primary int64, watching []int64) []int64 {
	seen := make(map[int64]bool, len(watching)+1)
	var out []int64
	if primary != 0 {
		out = append(out, primary)
		seen[primary] = true
	}
	for _, id := range watching {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// analysisLink ссылка на позицию в анализе lichess.
func analysisLink(fen string) string {
	return "https://lichess.org/analysis/" + strings.ReplaceAll(fen, " ", "_")
}

func sourceName(source string) string {
	if source == entity.SourceModel {
		return "модель"
	}
	return "эвристика"
}

func formatUpdate(u entity.PipelineUpdate) string {
	title := "♟ Ход"
	if u.Change == entity.NewGame {
		title = "🆕 Новая партия"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n", title)
	fmt.Fprintf(&sb, "FEN: %s\n", u.FEN)
	fmt.Fprintf(&sb, "Уверенность: %.0f%% (%s)", u.Performance.AvgConfidence*100, sourceName(u.Performance.Source))
	if u.WasFlipped {
		sb.WriteString(", доска развёрнута")
	}
	fmt.Fprintf(&sb, "\n%s", analysisLink(u.FEN))
	return sb.String()
}

func formatStatus(u entity.PipelineUpdate, stats app.PipelineStats) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📍 Позиция на %s\n", u.Timestamp.Format("15:04:05"))
	fmt.Fprintf(&sb, "FEN: %s\n", u.FEN)
	fmt.Fprintf(&sb, "Уверенность: %.0f%% (%s), сомнительных клеток: %d\n",
		u.Performance.AvgConfidence*100, sourceName(u.Performance.Source), u.Performance.LowConfidenceCount)
	fmt.Fprintf(&sb, "Кадров: %d обработано, %d пропущено, %d с ошибкой\n",
		stats.Processed, stats.Dropped+stats.Suppressed, stats.Failed)
	sb.WriteString(analysisLink(u.FEN))
	return sb.String()
}

func formatInspection(res *entity.Inspection) string {
	cls := res.Classification
	var sb strings.Builder
	fmt.Fprintf(&sb, "✅ Позиция распознана\nFEN: %s\n", cls.FEN)
	fmt.Fprintf(&sb, "Уверенность: %.0f%% (%s)\n", cls.AvgConfidence*100, sourceName(cls.Source))
	sb.WriteString(analysisLink(cls.FEN))
	return sb.String()
}

var _ port.UpdateNotifier = (*Bot)(nil)
