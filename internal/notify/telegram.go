package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"staybook/internal/config"
	"staybook/internal/domain"
	"staybook/internal/events"
	"staybook/internal/logging"
	"staybook/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Sender is the subset of *tgbotapi.BotAPI the notifier needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

const (
	// queueSize bounds events waiting for delivery; overflow is dropped.
	queueSize    = 64
	sendTimeout  = 15 * time.Second
	clientTimeout = 10 * time.Second
)

// TelegramNotifier forwards reservation events to admin chats. Bus
// handlers only enqueue; Start delivers in the background.
type TelegramNotifier struct {
	sender      Sender
	chatIDs     []int64
	queue       chan string
	sendTimeout time.Duration
	logger      zerolog.Logger
}

var _ domain.Notifier = (*TelegramNotifier)(nil)

// NewTelegramBot connects to the Bot API with the configured token.
func NewTelegramBot(cfg config.TelegramConfig) (*tgbotapi.BotAPI, error) {
	if strings.TrimSpace(cfg.BotToken) == "" {
		return nil, errors.New("telegram bot token is empty")
	}
	// у http.DefaultClient нет таймаута, зависший Bot API держал бы доставку
	client := &http.Client{Timeout: clientTimeout}
	bot, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	bot.Debug = cfg.Debug
	return bot, nil
}

func NewTelegramNotifier(sender Sender, chatIDs []int64, logger *zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		sender:  sender,
		chatIDs:     append([]int64(nil), chatIDs...),
		queue:       make(chan string, queueSize),
		sendTimeout: sendTimeout,
		logger:      logging.Component(logger, "telegram"),
	}
}

// Start delivers queued messages until ctx is done.
func (n *TelegramNotifier) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-n.queue:
			n.deliver(ctx, text)
		}
	}
}

func (n *TelegramNotifier) deliver(ctx context.Context, text string) {
	sendCtx, cancel := context.WithTimeout(ctx, n.sendTimeout)
	defer cancel()
	if err := n.Notify(sendCtx, text); err != nil {
		n.logger.Warn().Err(err).Msg("notification not fully delivered")
	}
}

// Enqueue schedules text for delivery without blocking. It reports false
// when the queue is full and the message was dropped.
func (n *TelegramNotifier) Enqueue(text string) bool {
	select {
	case n.queue <- text:
		return true
	default:
		n.logger.Warn().Msg("telegram queue full, notification dropped")
		return false
	}
}

// Notify sends text to every admin chat. Delivery continues past a failed
// chat; the errors are joined.
func (n *TelegramNotifier) Notify(ctx context.Context, text string) error {
	var errs []error
	for _, chatID := range n.chatIDs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = tgbotapi.ModeMarkdown
		if _, err := n.sender.Send(msg); err != nil {
			n.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("telegram send failed")
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
		}
	}
	return errors.Join(errs...)
}

// Subscribe hooks the notifier to reservation events on the bus. The
// handlers never wait on the Bot API.
func (n *TelegramNotifier) Subscribe(bus *events.EventBus) {
	handler := func(event *events.Event) error {
		var p events.ReservationEventPayload
		if err := event.Decode(&p); err != nil {
			return err
		}
		n.Enqueue(FormatEvent(event.Type, p))
		return nil
	}
	bus.Subscribe(events.EventReservationCreated, handler)
	bus.Subscribe(events.EventReservationCanceled, handler)
}

// FormatEvent renders a reservation event as a Markdown message.
func FormatEvent(eventType string, p events.ReservationEventPayload) string {
	var b strings.Builder
	switch eventType {
	case events.EventReservationCreated:
		b.WriteString("*Новая бронь*\n")
	case events.EventReservationCanceled:
		b.WriteString("*Бронь отменена*\n")
	default:
		fmt.Fprintf(&b, "*%s*\n", eventType)
	}
	fmt.Fprintf(&b, "Reservation: #%d\n", p.ReservationID)
	fmt.Fprintf(&b, "Room: %d (accommodation %d)\n", p.RoomID, p.AccommodationID)
	fmt.Fprintf(&b, "Dates: %s → %s\n", p.StartDate.Format(models.DateTimeLayout), p.EndDate.Format(models.DateTimeLayout))
	fmt.Fprintf(&b, "User: %d\n", p.UserID)
	if p.RoomAvailability != "" {
		fmt.Fprintf(&b, "Room is now: %s\n", p.RoomAvailability)
	}
	if p.ChangedBy != "" {
		fmt.Fprintf(&b, "By: %s %d", p.ChangedBy, p.ChangedByID)
	}
	return strings.TrimRight(b.String(), "\n")
}
