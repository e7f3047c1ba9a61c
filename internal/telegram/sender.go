package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bridgelet/bridgelet/internal/content"
)

// Sender dispatches outbound messages to the channel Bot API and resolves
// channel-internal file handles to bytes. Bot clients are cached per token.
type Sender struct {
	mu     sync.RWMutex
	bots   map[string]*tgbotapi.BotAPI
	http   *http.Client
	logger *slog.Logger
}

func NewSender(log *slog.Logger) *Sender {
	if log == nil {
		log = slog.Default()
	}
	return &Sender{
		bots:   make(map[string]*tgbotapi.BotAPI),
		http:   &http.Client{Timeout: 60 * time.Second},
		logger: log.With(slog.String("component", "telegram")),
	}
}

func (s *Sender) bot(token string) (*tgbotapi.BotAPI, error) {
	s.mu.RLock()
	bot, ok := s.bots[token]
	s.mu.RUnlock()
	if ok {
		return bot, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if bot, ok := s.bots[token]; ok {
		return bot, nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	s.bots[token] = bot
	return bot, nil
}

// SendText delivers a plain text message to a conversation.
func (s *Sender) SendText(ctx context.Context, botToken string, chatID int64, text string) error {
	bot, err := s.bot(botToken)
	if err != nil {
		return err
	}
	_, err = bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

// SendItem delivers a single content item through its category-specific
// channel endpoint, attaching the caption only when text accompanies it.
func (s *Sender) SendItem(ctx context.Context, botToken string, chatID int64, item content.Item, caption string) error {
	bot, err := s.bot(botToken)
	if err != nil {
		return err
	}
	switch item.Category {
	case content.CategoryContact:
		_, err = bot.Send(tgbotapi.NewContact(chatID, item.PhoneNumber, item.FirstName))
		return err
	case content.CategoryLocation:
		_, err = bot.Send(tgbotapi.NewLocation(chatID, item.Latitude, item.Longitude))
		return err
	case content.CategoryImage:
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(item.URL))
		photo.Caption = caption
		_, err = bot.Send(photo)
		return err
	case content.CategoryVideo:
		video := tgbotapi.NewVideo(chatID, tgbotapi.FileURL(item.URL))
		video.Caption = caption
		_, err = bot.Send(video)
		return err
	case content.CategoryAudio:
		audio := tgbotapi.NewAudio(chatID, tgbotapi.FileURL(item.URL))
		audio.Caption = caption
		_, err = bot.Send(audio)
		return err
	case content.CategoryGIF:
		animation := tgbotapi.NewAnimation(chatID, tgbotapi.FileURL(item.URL))
		animation.Caption = caption
		_, err = bot.Send(animation)
		return err
	case content.CategorySticker:
		_, err = bot.Send(tgbotapi.NewSticker(chatID, tgbotapi.FileURL(item.URL)))
		return err
	default:
		document := tgbotapi.NewDocument(chatID, tgbotapi.FileURL(item.URL))
		document.Caption = caption
		_, err = bot.Send(document)
		return err
	}
}

// SendGroup delivers 2..10 content items as a single grouped call. The
// caption rides on the first item only.
func (s *Sender) SendGroup(ctx context.Context, botToken string, chatID int64, items []content.Item, caption string) error {
	bot, err := s.bot(botToken)
	if err != nil {
		return err
	}
	media := make([]interface{}, 0, len(items))
	for i, item := range items {
		itemCaption := ""
		if i == 0 {
			itemCaption = caption
		}
		file := tgbotapi.FileURL(item.URL)
		switch item.Category {
		case content.CategoryImage, content.CategorySticker:
			input := tgbotapi.NewInputMediaPhoto(file)
			input.Caption = itemCaption
			media = append(media, input)
		case content.CategoryVideo, content.CategoryGIF:
			input := tgbotapi.NewInputMediaVideo(file)
			input.Caption = itemCaption
			media = append(media, input)
		case content.CategoryAudio:
			input := tgbotapi.NewInputMediaAudio(file)
			input.Caption = itemCaption
			media = append(media, input)
		default:
			input := tgbotapi.NewInputMediaDocument(file)
			input.Caption = itemCaption
			media = append(media, input)
		}
	}
	_, err = bot.SendMediaGroup(tgbotapi.NewMediaGroup(chatID, media))
	return err
}

// ResolveFile exchanges a channel file handle for the file bytes and the
// reported mime type.
func (s *Sender) ResolveFile(ctx context.Context, botToken, fileID string) ([]byte, string, error) {
	bot, err := s.bot(botToken)
	if err != nil {
		return nil, "", err
	}
	downloadURL, err := bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, "", fmt.Errorf("resolve file url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build download request: %w", err)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download file: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, "", fmt.Errorf("download status: %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read file: %w", err)
	}
	mime := strings.TrimSpace(resp.Header.Get("Content-Type"))
	if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = strings.TrimSpace(mime[:idx])
	}
	return data, mime, nil
}
